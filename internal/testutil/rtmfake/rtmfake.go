// Package rtmfake provides in-memory call-counting implementations of the orb
// capability interfaces for tests.
package rtmfake

import (
	"context"
	"fmt"
	"sync"

	"github.com/danmuck/rtmctl/internal/orb"
)

// Port is a fake data or service port.
type Port struct {
	id    string
	owner *Component
	short string

	mu         sync.Mutex
	interfaces []orb.PortInterfaceProfile
	connectors []orb.ConnectorProfile
	calls      int

	// ConnectHook replaces the default connect behavior when set.
	ConnectHook func(prof orb.ConnectorProfile) (orb.ReturnCode, orb.ConnectorProfile, error)
}

var _ orb.Port = (*Port)(nil)

func (p *Port) ObjectID() string { return p.id }

// ShortName is the port name without the owner instance prefix.
func (p *Port) ShortName() string { return p.short }

func (p *Port) PortProfile(_ context.Context) (orb.PortProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return orb.PortProfile{
		Name:              p.owner.instanceName() + "." + p.short,
		Interfaces:        append([]orb.PortInterfaceProfile(nil), p.interfaces...),
		PortRef:           p,
		ConnectorProfiles: append([]orb.ConnectorProfile(nil), p.connectors...),
	}, nil
}

// Connect records the profile on every fake port it lists.
func (p *Port) Connect(_ context.Context, prof orb.ConnectorProfile) (orb.ReturnCode, orb.ConnectorProfile, error) {
	p.mu.Lock()
	p.calls++
	hook := p.ConnectHook
	p.mu.Unlock()
	if hook != nil {
		return hook(prof)
	}
	if prof.ConnectorID == "" {
		prof.ConnectorID = orb.NewObjectID("conn")
	}
	for _, ref := range prof.Ports {
		if fp, ok := ref.(*Port); ok {
			fp.mu.Lock()
			fp.connectors = append(fp.connectors, prof)
			fp.mu.Unlock()
		}
	}
	return orb.RTCOK, prof, nil
}

// ConnectCalls counts Connect invocations on this port.
func (p *Port) ConnectCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// ExecutionContext is a fake scheduling group.
type ExecutionContext struct {
	id string

	mu      sync.Mutex
	states  map[string]orb.LifeCycleState
	members []orb.Component
	added   []orb.Component

	// Err makes every call fail when set.
	Err error
	// AddLimit, when positive, makes AddComponent return RTCError once that
	// many components were added.
	AddLimit int
}

var _ orb.ExecutionContext = (*ExecutionContext)(nil)

func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{
		id:     orb.NewObjectID("ec"),
		states: make(map[string]orb.LifeCycleState),
	}
}

func (e *ExecutionContext) ObjectID() string { return e.id }

func (e *ExecutionContext) ActivateComponent(_ context.Context, comp orb.Component) (orb.ReturnCode, error) {
	return e.transition(comp, orb.StateActive)
}

func (e *ExecutionContext) DeactivateComponent(_ context.Context, comp orb.Component) (orb.ReturnCode, error) {
	return e.transition(comp, orb.StateInactive)
}

func (e *ExecutionContext) ComponentState(_ context.Context, comp orb.Component) (orb.LifeCycleState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Err != nil {
		return orb.StateError, e.Err
	}
	state, ok := e.states[comp.ObjectID()]
	if !ok {
		return orb.StateInactive, nil
	}
	return state, nil
}

func (e *ExecutionContext) AddComponent(_ context.Context, comp orb.Component) (orb.ReturnCode, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Err != nil {
		return orb.RTCError, e.Err
	}
	if e.AddLimit > 0 && len(e.added) >= e.AddLimit {
		return orb.RTCError, nil
	}
	e.members = append(e.members, comp)
	e.added = append(e.added, comp)
	if _, ok := e.states[comp.ObjectID()]; !ok {
		e.states[comp.ObjectID()] = orb.StateInactive
	}
	return orb.RTCOK, nil
}

// SetState forces the reported state for comp.
func (e *ExecutionContext) SetState(comp orb.Component, state orb.LifeCycleState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.states[comp.ObjectID()] = state
}

// Added returns components attached through AddComponent, in call order.
func (e *ExecutionContext) Added() []orb.Component {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]orb.Component(nil), e.added...)
}

func (e *ExecutionContext) transition(comp orb.Component, state orb.LifeCycleState) (orb.ReturnCode, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Err != nil {
		return orb.RTCError, e.Err
	}
	e.states[comp.ObjectID()] = state
	return orb.RTCOK, nil
}

// Configuration is a fake configuration admin.
type Configuration struct {
	id string

	mu          sync.Mutex
	sets        []orb.ConfigurationSet
	pushed      []orb.ConfigurationSet
	activations []string
}

var _ orb.Configuration = (*Configuration)(nil)

func NewConfiguration(sets ...orb.ConfigurationSet) *Configuration {
	c := &Configuration{id: orb.NewObjectID("config")}
	for _, s := range sets {
		c.sets = append(c.sets, s.Clone())
	}
	return c
}

func (c *Configuration) ObjectID() string { return c.id }

func (c *Configuration) ConfigurationSets(_ context.Context) ([]orb.ConfigurationSet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]orb.ConfigurationSet, len(c.sets))
	for i := range c.sets {
		out[i] = c.sets[i].Clone()
	}
	return out, nil
}

func (c *Configuration) SetConfigurationSetValues(_ context.Context, set orb.ConfigurationSet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pushed = append(c.pushed, set.Clone())
	for i := range c.sets {
		if c.sets[i].ID == set.ID {
			c.sets[i] = set.Clone()
			return nil
		}
	}
	return fmt.Errorf("rtmfake: unknown configuration set %q", set.ID)
}

func (c *Configuration) ActivateConfigurationSet(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activations = append(c.activations, id)
	return nil
}

// Pushed returns every set sent through SetConfigurationSetValues.
func (c *Configuration) Pushed() []orb.ConfigurationSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]orb.ConfigurationSet(nil), c.pushed...)
}

// Activations returns the ids passed to ActivateConfigurationSet.
func (c *Configuration) Activations() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.activations...)
}

// Component is a fake runtime component.
type Component struct {
	id       string
	typeName string

	mu       sync.Mutex
	name     string
	ports    []*Port
	config   *Configuration
	contexts []orb.ExecutionContext
}

var _ orb.Component = (*Component)(nil)

// NewComponent builds a component owning one execution context and a
// configuration with a single "default" set.
func NewComponent(name, typeName string) *Component {
	return &Component{
		id:       orb.NewObjectID("rtc"),
		typeName: typeName,
		name:     name,
		config:   NewConfiguration(orb.ConfigurationSet{ID: "default"}),
		contexts: []orb.ExecutionContext{NewExecutionContext()},
	}
}

func (c *Component) ObjectID() string { return c.id }

func (c *Component) instanceName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

// Rename changes the instance name reported by later profile reads.
func (c *Component) Rename(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = name
}

// SetConfig replaces the configuration object.
func (c *Component) SetConfig(cfg *Configuration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.config = cfg
}

func (c *Component) Config() *Configuration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config
}

// SetContexts replaces the owned execution contexts; nil leaves none.
func (c *Component) SetContexts(ecs ...orb.ExecutionContext) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contexts = ecs
}

// Context returns the first owned context as a fake, or nil.
func (c *Component) Context() *ExecutionContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.contexts) == 0 {
		return nil
	}
	ec, _ := c.contexts[0].(*ExecutionContext)
	return ec
}

// AddPort attaches a data port named short.
func (c *Component) AddPort(short string) *Port {
	p := &Port{id: orb.NewObjectID("port"), owner: c, short: short}
	c.mu.Lock()
	c.ports = append(c.ports, p)
	c.mu.Unlock()
	return p
}

// AddServicePort attaches a port exposing one service interface. Connecting to
// it returns the stringified reference of target as the first property.
func (c *Component) AddServicePort(short, instance, typeName, ior string) *Port {
	p := c.AddPort(short)
	p.interfaces = []orb.PortInterfaceProfile{{InstanceName: instance, TypeName: typeName, Polarity: "PROVIDED"}}
	p.ConnectHook = func(prof orb.ConnectorProfile) (orb.ReturnCode, orb.ConnectorProfile, error) {
		prof.ConnectorID = orb.NewObjectID("conn")
		prof.Properties = append([]orb.NameValue{{Name: "port." + typeName + "." + instance, Value: ior}}, prof.Properties...)
		return orb.RTCOK, prof, nil
	}
	return p
}

func (c *Component) ComponentProfile(ctx context.Context) (orb.ComponentProfile, error) {
	c.mu.Lock()
	ports := append([]*Port(nil), c.ports...)
	prof := orb.ComponentProfile{InstanceName: c.name, TypeName: c.typeName, Category: "example"}
	c.mu.Unlock()
	for _, p := range ports {
		pp, err := p.PortProfile(ctx)
		if err != nil {
			return orb.ComponentProfile{}, err
		}
		prof.PortProfiles = append(prof.PortProfiles, pp)
	}
	return prof, nil
}

func (c *Component) Ports(_ context.Context) ([]orb.Port, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]orb.Port, len(c.ports))
	for i, p := range c.ports {
		out[i] = p
	}
	return out, nil
}

func (c *Component) Configuration(_ context.Context) (orb.Configuration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config, nil
}

func (c *Component) OwnedContexts(_ context.Context) ([]orb.ExecutionContext, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]orb.ExecutionContext(nil), c.contexts...), nil
}

// LoadCall records one LoadModule request.
type LoadCall struct {
	Path     string
	InitFunc string
}

// Manager is a fake component host.
type Manager struct {
	id string

	mu         sync.Mutex
	factories  []orb.FactoryProfile
	builders   map[string]func(instance string) *Component
	components []*Component
	loads      []LoadCall
	created    map[string]int

	// LoadErr is returned from LoadModule when set.
	LoadErr error
	// CreateErr is returned from CreateComponent when set.
	CreateErr error
}

var _ orb.Manager = (*Manager)(nil)

func NewManager() *Manager {
	return &Manager{
		id:       orb.NewObjectID("mgr"),
		builders: make(map[string]func(string) *Component),
		created:  make(map[string]int),
	}
}

func (m *Manager) ObjectID() string { return m.id }

// AddFactory registers a factory profile; build may be nil to make creation decline.
func (m *Manager) AddFactory(prof orb.FactoryProfile, build func(instance string) *Component) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factories = append(m.factories, prof)
	if id, ok := orb.LookupValue(prof.Properties, "implementation_id"); ok && build != nil {
		m.builders[id] = build
	}
}

// Adopt makes comp part of the manager's component list.
func (m *Manager) Adopt(comp *Component) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components = append(m.components, comp)
}

func (m *Manager) LoadModule(_ context.Context, path, initFunc string) (orb.ReturnCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads = append(m.loads, LoadCall{Path: path, InitFunc: initFunc})
	if m.LoadErr != nil {
		return orb.RTCError, m.LoadErr
	}
	return orb.RTCOK, nil
}

func (m *Manager) CreateComponent(_ context.Context, moduleName string) (orb.Component, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	build, ok := m.builders[moduleName]
	if !ok {
		return nil, nil
	}
	instance := fmt.Sprintf("%s%d", moduleName, m.created[moduleName])
	m.created[moduleName]++
	comp := build(instance)
	if comp == nil {
		return nil, nil
	}
	m.components = append(m.components, comp)
	return comp, nil
}

func (m *Manager) FactoryProfiles(_ context.Context) ([]orb.FactoryProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]orb.FactoryProfile(nil), m.factories...), nil
}

func (m *Manager) Components(_ context.Context) ([]orb.Component, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]orb.Component, len(m.components))
	for i, c := range m.components {
		out[i] = c
	}
	return out, nil
}

// Loads returns recorded LoadModule calls.
func (m *Manager) Loads() []LoadCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LoadCall(nil), m.loads...)
}
