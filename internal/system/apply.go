package system

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/danmuck/rtmctl/internal/logging"
	"github.com/danmuck/rtmctl/internal/naming"
	"github.com/danmuck/rtmctl/internal/orb"
	"github.com/danmuck/rtmctl/internal/rtm"
)

// Report lists what Apply did, in execution order.
type Report struct {
	Host         string            `json:"host"`
	Loaded       []string          `json:"loaded,omitempty"`
	LoadWarnings []string          `json:"load_warnings,omitempty"`
	Found        []string          `json:"found,omitempty"`
	Created      map[string]string `json:"created,omitempty"`
	Configured   []string          `json:"configured,omitempty"`
	Connected    []string          `json:"connected,omitempty"`
	Serialized   []string          `json:"serialized,omitempty"`
	Activated    []string          `json:"activated,omitempty"`
}

// Apply brings the host described by plan to the planned state. Steps run in
// order and the first hard failure stops the run; the partial report is
// still returned. Module load failures are only recorded.
func Apply(ctx context.Context, client *rtm.Client, plan *Plan) (Report, error) {
	report := Report{Host: plan.Host, Created: make(map[string]string)}
	if report.Host == "" {
		report.Host = rtm.DefaultHostName()
	}
	if err := plan.Validate(); err != nil {
		return report, err
	}

	mgr, err := client.FindManager(ctx, report.Host)
	if err != nil {
		return report, err
	}

	for _, module := range plan.Modules {
		if err := mgr.Load(ctx, module); err != nil {
			var loadErr *rtm.LoadError
			if !errors.As(err, &loadErr) {
				return report, err
			}
			logging.Warnf("system.apply module load failed host=%q module=%q err=%v", report.Host, module, err)
			report.LoadWarnings = append(report.LoadWarnings, err.Error())
			continue
		}
		report.Loaded = append(report.Loaded, module)
	}

	comps := make(map[string]*rtm.Component, len(plan.Components))
	for _, spec := range plan.Components {
		comp, created, err := findOrCreate(ctx, client, mgr, report.Host, spec)
		if err != nil {
			return report, err
		}
		comps[spec.Name] = comp
		if created {
			instance, err := comp.Name(ctx)
			if err != nil {
				return report, err
			}
			report.Created[spec.Name] = instance
		} else {
			report.Found = append(report.Found, spec.Name)
		}

		if len(spec.Properties) == 0 {
			continue
		}
		keys := make([]string, 0, len(spec.Properties))
		for k := range spec.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]orb.NameValue, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, orb.NameValue{Name: k, Value: spec.Properties[k]})
		}
		if err := comp.SetConfiguration(ctx, pairs); err != nil {
			return report, fmt.Errorf("system: configure %s: %w", spec.Name, err)
		}
		report.Configured = append(report.Configured, spec.Name)
	}

	for _, conn := range plan.Connections {
		outName, outPort, _ := rtm.SplitPortSelector(conn.From)
		inName, inPort, _ := rtm.SplitPortSelector(conn.To)
		out, err := lookup(comps, outName)
		if err != nil {
			return report, err
		}
		in, err := lookup(comps, inName)
		if err != nil {
			return report, err
		}
		if err := rtm.ConnectNamed(ctx, out, outPort, in, inPort); err != nil {
			return report, fmt.Errorf("system: connect %s -> %s: %w", conn.From, conn.To, err)
		}
		report.Connected = append(report.Connected, conn.From+" -> "+conn.To)
	}

	if len(plan.Serialize) > 0 {
		group := make([]*rtm.Component, 0, len(plan.Serialize))
		for _, name := range plan.Serialize {
			comp, err := lookup(comps, name)
			if err != nil {
				return report, err
			}
			group = append(group, comp)
		}
		if err := rtm.SerializeComponents(ctx, group); err != nil {
			return report, fmt.Errorf("system: serialize: %w", err)
		}
		report.Serialized = append(report.Serialized, plan.Serialize...)
	}

	for _, name := range plan.Activate {
		comp, err := lookup(comps, name)
		if err != nil {
			return report, err
		}
		if err := comp.Start(ctx); err != nil {
			return report, fmt.Errorf("system: activate %s: %w", name, err)
		}
		report.Activated = append(report.Activated, name)
	}
	logging.Infof("system.apply done host=%q components=%d connections=%d", report.Host, len(comps), len(report.Connected))
	return report, nil
}

func lookup(comps map[string]*rtm.Component, name string) (*rtm.Component, error) {
	comp, ok := comps[name]
	if !ok || comp == nil {
		return nil, fmt.Errorf("%w: component %q is not declared", ErrInvalidPlan, name)
	}
	return comp, nil
}

func findOrCreate(ctx context.Context, client *rtm.Client, mgr *rtm.Manager, host string, spec ComponentSpec) (*rtm.Component, bool, error) {
	comp, err := client.FindComponentOnHost(ctx, host, spec.Name)
	if err == nil {
		return comp, false, nil
	}
	if !errors.Is(err, naming.ErrNameNotFound) || spec.Factory == "" {
		return nil, false, err
	}
	comp, err = mgr.Create(ctx, spec.Factory)
	if err != nil {
		return nil, false, err
	}
	if comp == nil {
		return nil, false, fmt.Errorf("%w: %s (factory %s)", rtm.ErrComponentDeclined, spec.Name, spec.Factory)
	}
	return comp, true, nil
}
