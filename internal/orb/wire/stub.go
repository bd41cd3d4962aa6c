package wire

import (
	"context"
	"fmt"
	"slices"

	"github.com/danmuck/rtmctl/internal/orb"
)

// Stub is a client-side reference to a remote object. It satisfies every role
// interface in Go; Capabilities limits which roles narrowing accepts.
type Stub struct {
	client *Client
	ref    ObjectRef
}

var (
	_ orb.NamingContext    = (*Stub)(nil)
	_ orb.Manager          = (*Stub)(nil)
	_ orb.Component        = (*Stub)(nil)
	_ orb.ExecutionContext = (*Stub)(nil)
	_ orb.Configuration    = (*Stub)(nil)
	_ orb.Port             = (*Stub)(nil)
	_ orb.CapabilitySet    = (*Stub)(nil)
)

func (s *Stub) ObjectID() string { return s.ref.ID }

func (s *Stub) Capabilities() []orb.Capability {
	return append([]orb.Capability(nil), s.ref.Caps...)
}

// Addr is the server hosting the object.
func (s *Stub) Addr() string { return s.ref.Addr }

func (s *Stub) Ref() ObjectRef { return s.ref }

func (s *Stub) String() string { return FormatIOR(s.ref) }

func (s *Stub) invoke(ctx context.Context, role orb.Capability, op string, args, out any) error {
	if !slices.Contains(s.ref.Caps, role) {
		return fmt.Errorf("%w: %s is not a %s", orb.ErrNarrow, s.ref.ID, role)
	}
	return s.client.call(ctx, s.ref.Addr, s.ref.ID, role, string(role)+"."+op, args, out)
}

func (s *Stub) objectResult(ctx context.Context, role orb.Capability, op string, args any) (orb.Object, error) {
	var ref *ObjectRef
	if err := s.invoke(ctx, role, op, args, &ref); err != nil {
		return nil, err
	}
	return s.client.decodeRef(ref)
}

func (s *Stub) objectList(ctx context.Context, role orb.Capability, op string) ([]orb.Object, error) {
	var refs []*ObjectRef
	if err := s.invoke(ctx, role, op, nil, &refs); err != nil {
		return nil, err
	}
	out := make([]orb.Object, 0, len(refs))
	for _, ref := range refs {
		obj, err := s.client.decodeRef(ref)
		if err != nil {
			return nil, err
		}
		if obj != nil {
			out = append(out, obj)
		}
	}
	return out, nil
}

// naming context

func (s *Stub) Resolve(ctx context.Context, path []orb.NameComponent) (orb.Object, error) {
	return s.objectResult(ctx, orb.CapNamingContext, "resolve", pathArgs{Path: path})
}

func (s *Stub) Bind(ctx context.Context, path []orb.NameComponent, obj orb.Object) error {
	return s.bind(ctx, "bind", path, obj)
}

func (s *Stub) Rebind(ctx context.Context, path []orb.NameComponent, obj orb.Object) error {
	return s.bind(ctx, "rebind", path, obj)
}

func (s *Stub) bind(ctx context.Context, op string, path []orb.NameComponent, obj orb.Object) error {
	ref, err := s.client.encodeRef(obj)
	if err != nil {
		return err
	}
	return s.invoke(ctx, orb.CapNamingContext, op, pathArgs{Path: path, Obj: ref}, nil)
}

func (s *Stub) BindNewContext(ctx context.Context, path []orb.NameComponent) (orb.NamingContext, error) {
	obj, err := s.objectResult(ctx, orb.CapNamingContext, "bind_new_context", pathArgs{Path: path})
	if err != nil {
		return nil, err
	}
	return orb.NarrowNamingContext(obj)
}

func (s *Stub) Unbind(ctx context.Context, path []orb.NameComponent) error {
	return s.invoke(ctx, orb.CapNamingContext, "unbind", pathArgs{Path: path}, nil)
}

func (s *Stub) List(ctx context.Context) ([]orb.Binding, error) {
	var out []orb.Binding
	if err := s.invoke(ctx, orb.CapNamingContext, "list", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// manager

func (s *Stub) LoadModule(ctx context.Context, path, initFunc string) (orb.ReturnCode, error) {
	var res codeResult
	if err := s.invoke(ctx, orb.CapManager, "load_module", loadArgs{Path: path, InitFunc: initFunc}, &res); err != nil {
		return orb.RTCError, err
	}
	return res.Code, nil
}

func (s *Stub) CreateComponent(ctx context.Context, moduleName string) (orb.Component, error) {
	obj, err := s.objectResult(ctx, orb.CapManager, "create_component", moduleArgs{Module: moduleName})
	if err != nil || obj == nil {
		return nil, err
	}
	return orb.NarrowComponent(obj)
}

func (s *Stub) FactoryProfiles(ctx context.Context) ([]orb.FactoryProfile, error) {
	var out []orb.FactoryProfile
	if err := s.invoke(ctx, orb.CapManager, "factory_profiles", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Stub) Components(ctx context.Context) ([]orb.Component, error) {
	objs, err := s.objectList(ctx, orb.CapManager, "components")
	if err != nil {
		return nil, err
	}
	out := make([]orb.Component, 0, len(objs))
	for _, obj := range objs {
		c, err := orb.NarrowComponent(obj)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// component

func (s *Stub) ComponentProfile(ctx context.Context) (orb.ComponentProfile, error) {
	var prof componentProfile
	if err := s.invoke(ctx, orb.CapComponent, "component_profile", nil, &prof); err != nil {
		return orb.ComponentProfile{}, err
	}
	return decodeComponentProfile(s.client, prof)
}

func (s *Stub) Ports(ctx context.Context) ([]orb.Port, error) {
	objs, err := s.objectList(ctx, orb.CapComponent, "ports")
	if err != nil {
		return nil, err
	}
	out := make([]orb.Port, 0, len(objs))
	for _, obj := range objs {
		p, err := orb.NarrowPort(obj)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Stub) Configuration(ctx context.Context) (orb.Configuration, error) {
	obj, err := s.objectResult(ctx, orb.CapComponent, "configuration", nil)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: %s has no configuration", orb.ErrObjectNotExist, s.ref.ID)
	}
	return orb.NarrowConfiguration(obj)
}

func (s *Stub) OwnedContexts(ctx context.Context) ([]orb.ExecutionContext, error) {
	objs, err := s.objectList(ctx, orb.CapComponent, "owned_contexts")
	if err != nil {
		return nil, err
	}
	out := make([]orb.ExecutionContext, 0, len(objs))
	for _, obj := range objs {
		ec, err := orb.NarrowExecutionContext(obj)
		if err != nil {
			return nil, err
		}
		out = append(out, ec)
	}
	return out, nil
}

// execution context

func (s *Stub) componentCall(ctx context.Context, op string, comp orb.Component, out any) error {
	ref, err := s.client.encodeRef(comp)
	if err != nil {
		return err
	}
	return s.invoke(ctx, orb.CapExecutionContext, op, componentArgs{Component: ref}, out)
}

func (s *Stub) ActivateComponent(ctx context.Context, comp orb.Component) (orb.ReturnCode, error) {
	var res codeResult
	if err := s.componentCall(ctx, "activate_component", comp, &res); err != nil {
		return orb.RTCError, err
	}
	return res.Code, nil
}

func (s *Stub) DeactivateComponent(ctx context.Context, comp orb.Component) (orb.ReturnCode, error) {
	var res codeResult
	if err := s.componentCall(ctx, "deactivate_component", comp, &res); err != nil {
		return orb.RTCError, err
	}
	return res.Code, nil
}

func (s *Stub) ComponentState(ctx context.Context, comp orb.Component) (orb.LifeCycleState, error) {
	var res stateResult
	if err := s.componentCall(ctx, "component_state", comp, &res); err != nil {
		return orb.StateError, err
	}
	return res.State, nil
}

func (s *Stub) AddComponent(ctx context.Context, comp orb.Component) (orb.ReturnCode, error) {
	var res codeResult
	if err := s.componentCall(ctx, "add_component", comp, &res); err != nil {
		return orb.RTCError, err
	}
	return res.Code, nil
}

// configuration

func (s *Stub) ConfigurationSets(ctx context.Context) ([]orb.ConfigurationSet, error) {
	var out []orb.ConfigurationSet
	if err := s.invoke(ctx, orb.CapConfiguration, "configuration_sets", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Stub) SetConfigurationSetValues(ctx context.Context, set orb.ConfigurationSet) error {
	return s.invoke(ctx, orb.CapConfiguration, "set_configuration_set_values", setArgs{Set: set}, nil)
}

func (s *Stub) ActivateConfigurationSet(ctx context.Context, id string) error {
	return s.invoke(ctx, orb.CapConfiguration, "activate_configuration_set", idArgs{ID: id}, nil)
}

// port

func (s *Stub) PortProfile(ctx context.Context) (orb.PortProfile, error) {
	var prof portProfile
	if err := s.invoke(ctx, orb.CapPort, "port_profile", nil, &prof); err != nil {
		return orb.PortProfile{}, err
	}
	return decodePortProfile(s.client, prof)
}

func (s *Stub) Connect(ctx context.Context, prof orb.ConnectorProfile) (orb.ReturnCode, orb.ConnectorProfile, error) {
	wp, err := encodeConnector(s.client, prof)
	if err != nil {
		return orb.RTCError, orb.ConnectorProfile{}, err
	}
	var res connectResult
	if err := s.invoke(ctx, orb.CapPort, "connect", connectArgs{Profile: wp}, &res); err != nil {
		return orb.RTCError, orb.ConnectorProfile{}, err
	}
	got, err := decodeConnector(s.client, res.Profile)
	if err != nil {
		return res.Code, orb.ConnectorProfile{}, err
	}
	return res.Code, got, nil
}
