package rtm

import (
	"context"
	"fmt"
	"strings"

	"github.com/danmuck/rtmctl/internal/logging"
	"github.com/danmuck/rtmctl/internal/orb"
)

// Component wraps one remote component reference and its primary execution context.
type Component struct {
	ref orb.Component
	ec  orb.ExecutionContext
	orb orb.ORB
}

// NewComponent wraps ref, binding the first owned execution context when one exists.
func NewComponent(ctx context.Context, o orb.ORB, ref orb.Component) (*Component, error) {
	if ref == nil {
		return nil, fmt.Errorf("%w: nil component reference", orb.ErrInvalidObjectRef)
	}
	ecs, err := ref.OwnedContexts(ctx)
	if err != nil {
		return nil, fmt.Errorf("rtm: owned contexts of %s: %w", ref.ObjectID(), err)
	}
	c := &Component{ref: ref, orb: o}
	if len(ecs) > 0 {
		c.ec = ecs[0]
	}
	return c, nil
}

func (c *Component) Ref() orb.Component {
	return c.ref
}

// ExecutionContext returns the bound context, or nil.
func (c *Component) ExecutionContext() orb.ExecutionContext {
	return c.ec
}

// Name fetches the instance name from the remote profile on every call.
func (c *Component) Name(ctx context.Context) (string, error) {
	prof, err := c.ref.ComponentProfile(ctx)
	if err != nil {
		return "", err
	}
	return prof.InstanceName, nil
}

// Port finds the port named "<instance>.<name>". ok is false when no port matches.
func (c *Component) Port(ctx context.Context, name string) (orb.Port, bool, error) {
	ports, err := c.ref.Ports(ctx)
	if err != nil {
		return nil, false, err
	}
	instance, err := c.Name(ctx)
	if err != nil {
		return nil, false, err
	}
	full := instance + "." + name
	for _, p := range ports {
		prof, err := p.PortProfile(ctx)
		if err != nil {
			return nil, false, err
		}
		if prof.Name == full {
			return p, true, nil
		}
	}
	return nil, false, nil
}

// PortNames lists short port names in profile order.
func (c *Component) PortNames(ctx context.Context) ([]string, error) {
	prof, err := c.ref.ComponentProfile(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(prof.PortProfiles))
	for _, pp := range prof.PortProfiles {
		out = append(out, strings.TrimPrefix(pp.Name, prof.InstanceName+"."))
	}
	return out, nil
}

// Service locates a service endpoint through the port side channel: connect a
// single-port profile to the port exposing the interface instance and turn the
// first returned property back into a reference.
func (c *Component) Service(ctx context.Context, name string) (orb.Object, error) {
	prof, err := c.ref.ComponentProfile(ctx)
	if err != nil {
		return nil, err
	}
	logging.Debugf("rtm.service component=%q want=%q", prof.InstanceName, name)
	var port orb.Port
	for _, pp := range prof.PortProfiles {
		for _, iface := range pp.Interfaces {
			logging.Tracef("rtm.service port=%q if_name=%q if_type=%q", pp.Name, iface.InstanceName, iface.TypeName)
			if iface.InstanceName == name {
				port = pp.PortRef
			}
		}
	}
	if port == nil {
		return nil, fmt.Errorf("%w: %s on %s", ErrServiceNotFound, name, prof.InstanceName)
	}

	req := orb.ConnectorProfile{Name: "noname", Ports: []orb.Port{port}}
	rc, got, err := port.Connect(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: service %s: %w", ErrConnect, name, err)
	}
	if rc != orb.RTCOK {
		return nil, fmt.Errorf("%w: service %s: %s", ErrConnect, name, rc)
	}
	if len(got.Properties) == 0 {
		return nil, fmt.Errorf("%w: service %s: no properties returned", ErrConnect, name)
	}
	if c.orb == nil {
		return nil, fmt.Errorf("rtm: service %s: no ORB bound to component handle", name)
	}
	return c.orb.StringToObject(ctx, got.Properties[0].Value)
}

// SetConfiguration updates the default configuration set.
func (c *Component) SetConfiguration(ctx context.Context, pairs []orb.NameValue) error {
	return WriteConfiguration(ctx, c.ref, pairs)
}

func (c *Component) SetProperty(ctx context.Context, name, value string) error {
	return c.SetConfiguration(ctx, []orb.NameValue{{Name: name, Value: value}})
}

// Property reads name from the default configuration set.
func (c *Component) Property(ctx context.Context, name string) (string, bool, error) {
	return ReadProperty(ctx, c.ref, name)
}

// Start requests activation on the bound context. Without a context it does nothing.
func (c *Component) Start(ctx context.Context) error {
	if c.ec == nil {
		return nil
	}
	rc, err := c.ec.ActivateComponent(ctx, c.ref)
	return lifecycleResult("activate", c.ref, rc, err)
}

// Stop requests deactivation on the bound context. Without a context it does nothing.
func (c *Component) Stop(ctx context.Context) error {
	if c.ec == nil {
		return nil
	}
	rc, err := c.ec.DeactivateComponent(ctx, c.ref)
	return lifecycleResult("deactivate", c.ref, rc, err)
}

// LifeCycleState queries the bound context. ok is false when none is bound.
func (c *Component) LifeCycleState(ctx context.Context) (orb.LifeCycleState, bool, error) {
	if c.ec == nil {
		return 0, false, nil
	}
	state, err := c.ec.ComponentState(ctx, c.ref)
	if err != nil {
		return 0, false, err
	}
	return state, true, nil
}

// IsActive is true only when a context is bound and reports ACTIVE.
func (c *Component) IsActive(ctx context.Context) (bool, error) {
	state, ok, err := c.LifeCycleState(ctx)
	if err != nil {
		return false, err
	}
	return ok && state == orb.StateActive, nil
}

func lifecycleResult(op string, ref orb.Component, rc orb.ReturnCode, err error) error {
	if err != nil {
		return fmt.Errorf("rtm: %s %s: %w", op, ref.ObjectID(), err)
	}
	if rc != orb.RTCOK {
		return fmt.Errorf("%w: %s %s returned %s", ErrLifecycle, op, ref.ObjectID(), rc)
	}
	return nil
}
