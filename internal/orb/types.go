package orb

import "fmt"

// NameComponent is one (name, kind) segment of a naming path.
type NameComponent struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
}

func (n NameComponent) String() string {
	if n.Kind == "" {
		return n.ID
	}
	return n.ID + "." + n.Kind
}

// NameValue is one negotiated or configured property.
type NameValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// LookupValue returns the first value named name.
func LookupValue(props []NameValue, name string) (string, bool) {
	for _, p := range props {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// LifeCycleState is the component state reported by an execution context.
type LifeCycleState int

const (
	StateCreated LifeCycleState = iota
	StateInactive
	StateActive
	StateError
)

func (s LifeCycleState) String() string {
	switch s {
	case StateCreated:
		return "CREATED"
	case StateInactive:
		return "INACTIVE"
	case StateActive:
		return "ACTIVE"
	case StateError:
		return "ERROR"
	default:
		return fmt.Sprintf("LifeCycleState(%d)", int(s))
	}
}

// ReturnCode is the status returned by remote lifecycle and port calls.
type ReturnCode int

const (
	RTCOK ReturnCode = iota
	RTCError
	RTCBadParameter
	RTCUnsupported
	RTCOutOfResources
	RTCPreconditionNotMet
)

func (r ReturnCode) String() string {
	switch r {
	case RTCOK:
		return "RTC_OK"
	case RTCError:
		return "RTC_ERROR"
	case RTCBadParameter:
		return "BAD_PARAMETER"
	case RTCUnsupported:
		return "UNSUPPORTED"
	case RTCOutOfResources:
		return "OUT_OF_RESOURCES"
	case RTCPreconditionNotMet:
		return "PRECONDITION_NOT_MET"
	default:
		return fmt.Sprintf("ReturnCode(%d)", int(r))
	}
}

// PortInterfaceProfile describes one service interface exposed on a port.
type PortInterfaceProfile struct {
	InstanceName string `json:"instance_name"`
	TypeName     string `json:"type_name"`
	Polarity     string `json:"polarity"`
}

// ConnectorProfile is the negotiated record of one port connection.
type ConnectorProfile struct {
	Name        string
	ConnectorID string
	Ports       []Port
	Properties  []NameValue
}

// PortProfile is the introspection record of one port.
type PortProfile struct {
	Name              string
	Interfaces        []PortInterfaceProfile
	PortRef           Port
	ConnectorProfiles []ConnectorProfile
}

// ComponentProfile is the introspection record of one component.
type ComponentProfile struct {
	InstanceName string
	TypeName     string
	Category     string
	PortProfiles []PortProfile
}

// FactoryProfile describes one component factory known to a manager.
type FactoryProfile struct {
	Properties []NameValue `json:"properties"`
}

// ConfigurationSet is one named bundle of configuration values.
type ConfigurationSet struct {
	ID          string      `json:"id"`
	Description string      `json:"description,omitempty"`
	Data        []NameValue `json:"data"`
}

// Clone returns a deep copy so callers can edit values without aliasing.
func (c ConfigurationSet) Clone() ConfigurationSet {
	out := c
	out.Data = append([]NameValue(nil), c.Data...)
	return out
}
