package rtm

import (
	"context"

	"github.com/danmuck/rtmctl/internal/logging"
	"github.com/danmuck/rtmctl/internal/orb"
)

// DefaultConfigurationSet is the set id activated after every write.
const DefaultConfigurationSet = "default"

// ReadProperty returns name from configuration set index 0. ok is false when
// the component has no sets or the set lacks name.
func ReadProperty(ctx context.Context, comp orb.Component, name string) (string, bool, error) {
	cfg, err := comp.Configuration(ctx)
	if err != nil {
		return "", false, err
	}
	sets, err := cfg.ConfigurationSets(ctx)
	if err != nil {
		return "", false, err
	}
	if len(sets) == 0 {
		logging.Warnf("rtm.config configuration set is not found component=%q", comp.ObjectID())
		return "", false, nil
	}
	for _, d := range sets[0].Data {
		if d.Name == name {
			return d.Value, true, nil
		}
	}
	return "", false, nil
}

// WriteConfiguration edits configuration set index 0 in place, pushing the set
// after each matched pair, then activates the set named "default".
//
// Set 0 is assumed to be "default". Nothing checks that, and the activation
// targets the literal name regardless of which set was edited.
func WriteConfiguration(ctx context.Context, comp orb.Component, pairs []orb.NameValue) error {
	cfg, err := comp.Configuration(ctx)
	if err != nil {
		return err
	}
	sets, err := cfg.ConfigurationSets(ctx)
	if err != nil {
		return err
	}
	if len(sets) == 0 {
		logging.Warnf("rtm.config configuration set is not found component=%q", comp.ObjectID())
		return nil
	}
	set := sets[0].Clone()
	for _, nv := range pairs {
		for i := range set.Data {
			if set.Data[i].Name != nv.Name {
				continue
			}
			set.Data[i].Value = nv.Value
			if err := cfg.SetConfigurationSetValues(ctx, set); err != nil {
				return err
			}
			break
		}
	}
	return cfg.ActivateConfigurationSet(ctx, DefaultConfigurationSet)
}
