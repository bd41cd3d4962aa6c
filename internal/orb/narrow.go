package orb

import (
	"fmt"
	"slices"
)

func supports(obj Object, want Capability) bool {
	set, ok := obj.(CapabilitySet)
	if !ok {
		return true
	}
	return slices.Contains(set.Capabilities(), want)
}

func narrowError(obj Object, want Capability) error {
	if obj == nil {
		return fmt.Errorf("%w: nil reference to %s", ErrNarrow, want)
	}
	return fmt.Errorf("%w: %s is not a %s", ErrNarrow, obj.ObjectID(), want)
}

func NarrowNamingContext(obj Object) (NamingContext, error) {
	nc, ok := obj.(NamingContext)
	if !ok || !supports(obj, CapNamingContext) {
		return nil, narrowError(obj, CapNamingContext)
	}
	return nc, nil
}

func NarrowManager(obj Object) (Manager, error) {
	m, ok := obj.(Manager)
	if !ok || !supports(obj, CapManager) {
		return nil, narrowError(obj, CapManager)
	}
	return m, nil
}

func NarrowComponent(obj Object) (Component, error) {
	c, ok := obj.(Component)
	if !ok || !supports(obj, CapComponent) {
		return nil, narrowError(obj, CapComponent)
	}
	return c, nil
}

func NarrowExecutionContext(obj Object) (ExecutionContext, error) {
	ec, ok := obj.(ExecutionContext)
	if !ok || !supports(obj, CapExecutionContext) {
		return nil, narrowError(obj, CapExecutionContext)
	}
	return ec, nil
}

func NarrowConfiguration(obj Object) (Configuration, error) {
	c, ok := obj.(Configuration)
	if !ok || !supports(obj, CapConfiguration) {
		return nil, narrowError(obj, CapConfiguration)
	}
	return c, nil
}

func NarrowPort(obj Object) (Port, error) {
	p, ok := obj.(Port)
	if !ok || !supports(obj, CapPort) {
		return nil, narrowError(obj, CapPort)
	}
	return p, nil
}

// CapabilitiesOf lists the roles obj can be narrowed to.
func CapabilitiesOf(obj Object) []Capability {
	if set, ok := obj.(CapabilitySet); ok {
		return append([]Capability(nil), set.Capabilities()...)
	}
	var out []Capability
	if _, ok := obj.(NamingContext); ok {
		out = append(out, CapNamingContext)
	}
	if _, ok := obj.(Manager); ok {
		out = append(out, CapManager)
	}
	if _, ok := obj.(Component); ok {
		out = append(out, CapComponent)
	}
	if _, ok := obj.(ExecutionContext); ok {
		out = append(out, CapExecutionContext)
	}
	if _, ok := obj.(Configuration); ok {
		out = append(out, CapConfiguration)
	}
	if _, ok := obj.(Port); ok {
		out = append(out, CapPort)
	}
	return out
}
