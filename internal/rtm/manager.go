package rtm

import (
	"context"
	"fmt"

	"github.com/danmuck/rtmctl/internal/logging"
	"github.com/danmuck/rtmctl/internal/orb"
)

const (
	// ModuleSuffix and InitSuffix derive the shared library path and the
	// initializer symbol from a module basename.
	ModuleSuffix = ".so"
	InitSuffix   = "Init"

	// ImplementationIDProperty names a factory in its profile.
	ImplementationIDProperty = "implementation_id"
)

// Manager wraps one remote manager reference.
type Manager struct {
	ref orb.Manager
	orb orb.ORB
}

func NewManager(o orb.ORB, ref orb.Manager) *Manager {
	return &Manager{ref: ref, orb: o}
}

func (m *Manager) Ref() orb.Manager {
	return m.ref
}

// ModulePaths returns the library path and initializer name for basename.
func ModulePaths(basename string) (path, initFunc string) {
	return basename + ModuleSuffix, basename + InitSuffix
}

// Load asks the manager to load basename.so and call basenameInit. Any failure
// comes back as *LoadError; callers decide whether it matters.
func (m *Manager) Load(ctx context.Context, basename string) error {
	path, initFunc := ModulePaths(basename)
	rc, err := m.ref.LoadModule(ctx, path, initFunc)
	if err != nil {
		return &LoadError{Path: path, InitFunc: initFunc, Code: rc, Err: err}
	}
	if rc != orb.RTCOK {
		return &LoadError{Path: path, InitFunc: initFunc, Code: rc}
	}
	logging.Debugf("rtm.manager loaded path=%q init=%q", path, initFunc)
	return nil
}

// Create instantiates module. A nil handle with a nil error means the factory declined.
func (m *Manager) Create(ctx context.Context, module string) (*Component, error) {
	ref, err := m.ref.CreateComponent(ctx, module)
	if err != nil {
		return nil, fmt.Errorf("rtm: create %s: %w", module, err)
	}
	if ref == nil {
		logging.Debugf("rtm.manager create declined module=%q", module)
		return nil, nil
	}
	return NewComponent(ctx, m.orb, ref)
}

// FactoryNames returns implementation ids in factory-profile order. Profiles
// without the property are skipped.
func (m *Manager) FactoryNames(ctx context.Context) ([]string, error) {
	profiles, err := m.ref.FactoryProfiles(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(profiles))
	for _, fp := range profiles {
		for _, p := range fp.Properties {
			if p.Name == ImplementationIDProperty {
				names = append(names, p.Value)
			}
		}
	}
	return names, nil
}

// Components wraps every component the manager currently owns.
func (m *Manager) Components(ctx context.Context) ([]*Component, error) {
	refs, err := m.ref.Components(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Component, 0, len(refs))
	for _, ref := range refs {
		c, err := NewComponent(ctx, m.orb, ref)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
