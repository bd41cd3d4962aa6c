package orb

import "context"

// Object is any remote reference. ObjectID is its stable identity.
type Object interface {
	ObjectID() string
}

// Capability names one remote role an object can be narrowed to.
type Capability string

const (
	CapNamingContext    Capability = "naming_context"
	CapManager          Capability = "manager"
	CapComponent        Capability = "component"
	CapExecutionContext Capability = "execution_context"
	CapConfiguration    Capability = "configuration"
	CapPort             Capability = "port"
)

// CapabilitySet is implemented by stubs that satisfy every role interface
// in Go but only support some roles remotely.
type CapabilitySet interface {
	Capabilities() []Capability
}

// NamingContext is the hierarchical (name, kind) -> reference registry.
type NamingContext interface {
	Object
	Resolve(ctx context.Context, path []NameComponent) (Object, error)
	Bind(ctx context.Context, path []NameComponent, obj Object) error
	Rebind(ctx context.Context, path []NameComponent, obj Object) error
	BindNewContext(ctx context.Context, path []NameComponent) (NamingContext, error)
	Unbind(ctx context.Context, path []NameComponent) error
	List(ctx context.Context) ([]Binding, error)
}

// Binding is one entry returned by NamingContext.List.
type Binding struct {
	Name      NameComponent `json:"name"`
	IsContext bool          `json:"is_context"`
}

// Manager hosts component factories and instances.
type Manager interface {
	Object
	LoadModule(ctx context.Context, path, initFunc string) (ReturnCode, error)
	CreateComponent(ctx context.Context, moduleName string) (Component, error)
	FactoryProfiles(ctx context.Context) ([]FactoryProfile, error)
	Components(ctx context.Context) ([]Component, error)
}

// Component is one instantiated runtime unit.
type Component interface {
	Object
	ComponentProfile(ctx context.Context) (ComponentProfile, error)
	Ports(ctx context.Context) ([]Port, error)
	Configuration(ctx context.Context) (Configuration, error)
	OwnedContexts(ctx context.Context) ([]ExecutionContext, error)
}

// ExecutionContext schedules and drives component lifecycle.
type ExecutionContext interface {
	Object
	ActivateComponent(ctx context.Context, comp Component) (ReturnCode, error)
	DeactivateComponent(ctx context.Context, comp Component) (ReturnCode, error)
	ComponentState(ctx context.Context, comp Component) (LifeCycleState, error)
	AddComponent(ctx context.Context, comp Component) (ReturnCode, error)
}

// Configuration administers a component's configuration sets.
type Configuration interface {
	Object
	ConfigurationSets(ctx context.Context) ([]ConfigurationSet, error)
	SetConfigurationSetValues(ctx context.Context, set ConfigurationSet) error
	ActivateConfigurationSet(ctx context.Context, id string) error
}

// Port is one connection endpoint on a component.
type Port interface {
	Object
	PortProfile(ctx context.Context) (PortProfile, error)
	Connect(ctx context.Context, prof ConnectorProfile) (ReturnCode, ConnectorProfile, error)
}

// ORB resolves bootstrap references and converts references to and from strings.
type ORB interface {
	ResolveInitialReferences(ctx context.Context, name string) (Object, error)
	StringToObject(ctx context.Context, ior string) (Object, error)
	ObjectToString(obj Object) (string, error)
}

// SameObject reports whether a and b reference the same remote object.
func SameObject(a, b Object) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ObjectID() == b.ObjectID()
}
