package wire

import (
	"context"
	"fmt"
	"strings"

	"github.com/danmuck/rtmctl/internal/orb"
)

// dispatch routes one request to the target object. Methods are named
// "<role>.<operation>"; the target is narrowed to the role first.
func (s *Server) dispatch(ctx context.Context, req request) (any, error) {
	switch req.Method {
	case methodInitial:
		var args nameArgs
		if err := decodeArgs(req.Args, &args); err != nil {
			return nil, err
		}
		obj, err := s.broker.ResolveInitialReferences(ctx, args.Name)
		if err != nil {
			return nil, err
		}
		return s.encodeRef(obj)
	case methodDescribe:
		obj, ok := s.broker.Lookup(req.Object)
		if !ok {
			return nil, fmt.Errorf("%w: %s", orb.ErrObjectNotExist, req.Object)
		}
		return s.encodeRef(obj)
	}

	obj, ok := s.broker.Lookup(req.Object)
	if !ok {
		return nil, fmt.Errorf("%w: %s", orb.ErrObjectNotExist, req.Object)
	}
	role, op, found := strings.Cut(req.Method, ".")
	if !found {
		return nil, fmt.Errorf("%w: method %q", errBadRequest, req.Method)
	}
	switch orb.Capability(role) {
	case orb.CapNamingContext:
		nc, err := orb.NarrowNamingContext(obj)
		if err != nil {
			return nil, err
		}
		return s.namingCall(ctx, nc, op, req)
	case orb.CapManager:
		m, err := orb.NarrowManager(obj)
		if err != nil {
			return nil, err
		}
		return s.managerCall(ctx, m, op, req)
	case orb.CapComponent:
		c, err := orb.NarrowComponent(obj)
		if err != nil {
			return nil, err
		}
		return s.componentCall(ctx, c, op)
	case orb.CapExecutionContext:
		ec, err := orb.NarrowExecutionContext(obj)
		if err != nil {
			return nil, err
		}
		return s.contextCall(ctx, ec, op, req)
	case orb.CapConfiguration:
		cfg, err := orb.NarrowConfiguration(obj)
		if err != nil {
			return nil, err
		}
		return s.configurationCall(ctx, cfg, op, req)
	case orb.CapPort:
		p, err := orb.NarrowPort(obj)
		if err != nil {
			return nil, err
		}
		return s.portCall(ctx, p, op, req)
	default:
		return nil, fmt.Errorf("%w: unknown role %q", errBadRequest, role)
	}
}

func unknownOp(role orb.Capability, op string) error {
	return fmt.Errorf("%w: unknown operation %s.%s", errBadRequest, role, op)
}

func (s *Server) namingCall(ctx context.Context, nc orb.NamingContext, op string, req request) (any, error) {
	var args pathArgs
	if err := decodeArgs(req.Args, &args); err != nil {
		return nil, err
	}
	switch op {
	case "resolve":
		obj, err := nc.Resolve(ctx, args.Path)
		if err != nil {
			return nil, err
		}
		return s.encodeRef(obj)
	case "bind", "rebind":
		obj, err := s.decodeRef(args.Obj)
		if err != nil {
			return nil, err
		}
		if op == "bind" {
			return nil, nc.Bind(ctx, args.Path, obj)
		}
		return nil, nc.Rebind(ctx, args.Path, obj)
	case "bind_new_context":
		child, err := nc.BindNewContext(ctx, args.Path)
		if err != nil {
			return nil, err
		}
		return s.encodeRef(child)
	case "unbind":
		return nil, nc.Unbind(ctx, args.Path)
	case "list":
		return nc.List(ctx)
	default:
		return nil, unknownOp(orb.CapNamingContext, op)
	}
}

func (s *Server) managerCall(ctx context.Context, m orb.Manager, op string, req request) (any, error) {
	switch op {
	case "load_module":
		var args loadArgs
		if err := decodeArgs(req.Args, &args); err != nil {
			return nil, err
		}
		rc, err := m.LoadModule(ctx, args.Path, args.InitFunc)
		if err != nil {
			return nil, err
		}
		return codeResult{Code: rc}, nil
	case "create_component":
		var args moduleArgs
		if err := decodeArgs(req.Args, &args); err != nil {
			return nil, err
		}
		comp, err := m.CreateComponent(ctx, args.Module)
		if err != nil {
			return nil, err
		}
		if comp == nil {
			return nil, nil
		}
		return s.encodeRef(comp)
	case "factory_profiles":
		return m.FactoryProfiles(ctx)
	case "components":
		comps, err := m.Components(ctx)
		if err != nil {
			return nil, err
		}
		refs := make([]*ObjectRef, 0, len(comps))
		for _, c := range comps {
			ref, err := s.encodeRef(c)
			if err != nil {
				return nil, err
			}
			refs = append(refs, ref)
		}
		return refs, nil
	default:
		return nil, unknownOp(orb.CapManager, op)
	}
}

func (s *Server) componentCall(ctx context.Context, c orb.Component, op string) (any, error) {
	switch op {
	case "component_profile":
		prof, err := c.ComponentProfile(ctx)
		if err != nil {
			return nil, err
		}
		return encodeComponentProfile(s, prof)
	case "ports":
		ports, err := c.Ports(ctx)
		if err != nil {
			return nil, err
		}
		refs := make([]*ObjectRef, 0, len(ports))
		for _, p := range ports {
			ref, err := s.encodeRef(p)
			if err != nil {
				return nil, err
			}
			refs = append(refs, ref)
		}
		return refs, nil
	case "configuration":
		cfg, err := c.Configuration(ctx)
		if err != nil {
			return nil, err
		}
		if cfg == nil {
			return nil, nil
		}
		return s.encodeRef(cfg)
	case "owned_contexts":
		ecs, err := c.OwnedContexts(ctx)
		if err != nil {
			return nil, err
		}
		refs := make([]*ObjectRef, 0, len(ecs))
		for _, ec := range ecs {
			ref, err := s.encodeRef(ec)
			if err != nil {
				return nil, err
			}
			refs = append(refs, ref)
		}
		return refs, nil
	default:
		return nil, unknownOp(orb.CapComponent, op)
	}
}

func (s *Server) contextCall(ctx context.Context, ec orb.ExecutionContext, op string, req request) (any, error) {
	var args componentArgs
	if err := decodeArgs(req.Args, &args); err != nil {
		return nil, err
	}
	comp, err := decodeComponent(s, args.Component)
	if err != nil {
		return nil, err
	}
	if comp == nil {
		return nil, fmt.Errorf("%w: component reference required", orb.ErrInvalidObjectRef)
	}
	switch op {
	case "activate_component":
		rc, err := ec.ActivateComponent(ctx, comp)
		return codeResult{Code: rc}, err
	case "deactivate_component":
		rc, err := ec.DeactivateComponent(ctx, comp)
		return codeResult{Code: rc}, err
	case "component_state":
		state, err := ec.ComponentState(ctx, comp)
		return stateResult{State: state}, err
	case "add_component":
		rc, err := ec.AddComponent(ctx, comp)
		return codeResult{Code: rc}, err
	default:
		return nil, unknownOp(orb.CapExecutionContext, op)
	}
}

func (s *Server) configurationCall(ctx context.Context, cfg orb.Configuration, op string, req request) (any, error) {
	switch op {
	case "configuration_sets":
		return cfg.ConfigurationSets(ctx)
	case "set_configuration_set_values":
		var args setArgs
		if err := decodeArgs(req.Args, &args); err != nil {
			return nil, err
		}
		return nil, cfg.SetConfigurationSetValues(ctx, args.Set)
	case "activate_configuration_set":
		var args idArgs
		if err := decodeArgs(req.Args, &args); err != nil {
			return nil, err
		}
		return nil, cfg.ActivateConfigurationSet(ctx, args.ID)
	default:
		return nil, unknownOp(orb.CapConfiguration, op)
	}
}

func (s *Server) portCall(ctx context.Context, p orb.Port, op string, req request) (any, error) {
	switch op {
	case "port_profile":
		prof, err := p.PortProfile(ctx)
		if err != nil {
			return nil, err
		}
		return encodePortProfile(s, prof)
	case "connect":
		var args connectArgs
		if err := decodeArgs(req.Args, &args); err != nil {
			return nil, err
		}
		prof, err := decodeConnector(s, args.Profile)
		if err != nil {
			return nil, err
		}
		rc, got, err := p.Connect(ctx, prof)
		if err != nil {
			return nil, err
		}
		wp, err := encodeConnector(s, got)
		if err != nil {
			return nil, err
		}
		return connectResult{Code: rc, Profile: wp}, nil
	default:
		return nil, unknownOp(orb.CapPort, op)
	}
}
