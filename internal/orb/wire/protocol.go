package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/danmuck/rtmctl/internal/orb"
)

// Meta methods not bound to a role.
const (
	methodInitial  = "_initial"
	methodDescribe = "_describe"
)

// ErrRemote marks a failure reported by the serving side that has no sentinel mapping.
var ErrRemote = errors.New("wire: remote call failed")

// request is one invocation envelope, one JSON document per line.
type request struct {
	ID     uint64          `json:"id"`
	Object string          `json:"object,omitempty"`
	Method string          `json:"method"`
	Args   json.RawMessage `json:"args,omitempty"`
}

// response is one invocation result envelope.
type response struct {
	ID    uint64          `json:"id"`
	OK    bool            `json:"ok"`
	Error string          `json:"error,omitempty"`
	Code  string          `json:"code,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ObjectRef is a reference as it travels on the wire: object id, the address
// of the server hosting it and the roles it can be narrowed to.
type ObjectRef struct {
	ID   string           `json:"id"`
	Addr string           `json:"addr,omitempty"`
	Caps []orb.Capability `json:"caps,omitempty"`
}

// FormatIOR stringifies ref as IOR:<id>@<addr>.
func FormatIOR(ref ObjectRef) string {
	if ref.Addr == "" {
		return orb.IORPrefix + ref.ID
	}
	return orb.IORPrefix + ref.ID + "@" + ref.Addr
}

// ParseIOR reverses FormatIOR. Addr is empty when the string names no server.
func ParseIOR(ior string) (ObjectRef, error) {
	raw := strings.TrimSpace(ior)
	if !strings.HasPrefix(raw, orb.IORPrefix) {
		return ObjectRef{}, fmt.Errorf("%w: %q", orb.ErrInvalidObjectRef, ior)
	}
	raw = strings.TrimPrefix(raw, orb.IORPrefix)
	id, addr := raw, ""
	if i := strings.LastIndex(raw, "@"); i >= 0 {
		id, addr = raw[:i], raw[i+1:]
	}
	if _, err := orb.ParseIOR(orb.IORPrefix + id); err != nil {
		return ObjectRef{}, err
	}
	return ObjectRef{ID: id, Addr: addr}, nil
}

// refCodec converts references at a wire boundary. Server and client encode
// differently: the server registers local objects, the client only sends stubs.
type refCodec interface {
	encodeRef(obj orb.Object) (*ObjectRef, error)
	decodeRef(ref *ObjectRef) (orb.Object, error)
}

type connectorProfile struct {
	Name        string          `json:"name"`
	ConnectorID string          `json:"connector_id"`
	Ports       []*ObjectRef    `json:"ports"`
	Properties  []orb.NameValue `json:"properties"`
}

type portProfile struct {
	Name              string                     `json:"name"`
	Interfaces        []orb.PortInterfaceProfile `json:"interfaces"`
	PortRef           *ObjectRef                 `json:"port_ref"`
	ConnectorProfiles []connectorProfile         `json:"connector_profiles"`
}

type componentProfile struct {
	InstanceName string        `json:"instance_name"`
	TypeName     string        `json:"type_name"`
	Category     string        `json:"category"`
	PortProfiles []portProfile `json:"port_profiles"`
}

type nameArgs struct {
	Name string `json:"name"`
}

type pathArgs struct {
	Path []orb.NameComponent `json:"path"`
	Obj  *ObjectRef          `json:"obj,omitempty"`
}

type loadArgs struct {
	Path     string `json:"path"`
	InitFunc string `json:"init_func"`
}

type moduleArgs struct {
	Module string `json:"module"`
}

type componentArgs struct {
	Component *ObjectRef `json:"component"`
}

type setArgs struct {
	Set orb.ConfigurationSet `json:"set"`
}

type idArgs struct {
	ID string `json:"id"`
}

type connectArgs struct {
	Profile connectorProfile `json:"profile"`
}

type codeResult struct {
	Code orb.ReturnCode `json:"code"`
}

type stateResult struct {
	State orb.LifeCycleState `json:"state"`
}

type connectResult struct {
	Code    orb.ReturnCode   `json:"code"`
	Profile connectorProfile `json:"profile"`
}

func encodeConnector(c refCodec, prof orb.ConnectorProfile) (connectorProfile, error) {
	out := connectorProfile{
		Name:        prof.Name,
		ConnectorID: prof.ConnectorID,
		Properties:  prof.Properties,
	}
	for _, p := range prof.Ports {
		ref, err := c.encodeRef(p)
		if err != nil {
			return connectorProfile{}, err
		}
		out.Ports = append(out.Ports, ref)
	}
	return out, nil
}

func decodeConnector(c refCodec, prof connectorProfile) (orb.ConnectorProfile, error) {
	out := orb.ConnectorProfile{
		Name:        prof.Name,
		ConnectorID: prof.ConnectorID,
		Properties:  prof.Properties,
	}
	for _, ref := range prof.Ports {
		p, err := decodePort(c, ref)
		if err != nil {
			return orb.ConnectorProfile{}, err
		}
		out.Ports = append(out.Ports, p)
	}
	return out, nil
}

func encodePortProfile(c refCodec, prof orb.PortProfile) (portProfile, error) {
	out := portProfile{Name: prof.Name, Interfaces: prof.Interfaces}
	ref, err := c.encodeRef(prof.PortRef)
	if err != nil {
		return portProfile{}, err
	}
	out.PortRef = ref
	for _, cp := range prof.ConnectorProfiles {
		wc, err := encodeConnector(c, cp)
		if err != nil {
			return portProfile{}, err
		}
		out.ConnectorProfiles = append(out.ConnectorProfiles, wc)
	}
	return out, nil
}

func decodePortProfile(c refCodec, prof portProfile) (orb.PortProfile, error) {
	out := orb.PortProfile{Name: prof.Name, Interfaces: prof.Interfaces}
	p, err := decodePort(c, prof.PortRef)
	if err != nil {
		return orb.PortProfile{}, err
	}
	out.PortRef = p
	for _, wc := range prof.ConnectorProfiles {
		cp, err := decodeConnector(c, wc)
		if err != nil {
			return orb.PortProfile{}, err
		}
		out.ConnectorProfiles = append(out.ConnectorProfiles, cp)
	}
	return out, nil
}

func encodeComponentProfile(c refCodec, prof orb.ComponentProfile) (componentProfile, error) {
	out := componentProfile{
		InstanceName: prof.InstanceName,
		TypeName:     prof.TypeName,
		Category:     prof.Category,
	}
	for _, pp := range prof.PortProfiles {
		wp, err := encodePortProfile(c, pp)
		if err != nil {
			return componentProfile{}, err
		}
		out.PortProfiles = append(out.PortProfiles, wp)
	}
	return out, nil
}

func decodeComponentProfile(c refCodec, prof componentProfile) (orb.ComponentProfile, error) {
	out := orb.ComponentProfile{
		InstanceName: prof.InstanceName,
		TypeName:     prof.TypeName,
		Category:     prof.Category,
	}
	for _, wp := range prof.PortProfiles {
		pp, err := decodePortProfile(c, wp)
		if err != nil {
			return orb.ComponentProfile{}, err
		}
		out.PortProfiles = append(out.PortProfiles, pp)
	}
	return out, nil
}

// decodePort keeps nil references nil instead of wrapping them in a typed interface.
func decodePort(c refCodec, ref *ObjectRef) (orb.Port, error) {
	obj, err := c.decodeRef(ref)
	if err != nil || obj == nil {
		return nil, err
	}
	return orb.NarrowPort(obj)
}

func decodeComponent(c refCodec, ref *ObjectRef) (orb.Component, error) {
	obj, err := c.decodeRef(ref)
	if err != nil || obj == nil {
		return nil, err
	}
	return orb.NarrowComponent(obj)
}

var errorCodes = []struct {
	code string
	err  error
}{
	{"not_found", orb.ErrNameNotFound},
	{"already_bound", orb.ErrAlreadyBound},
	{"not_context", orb.ErrNotContext},
	{"invalid_name", orb.ErrInvalidName},
	{"invalid_ref", orb.ErrInvalidObjectRef},
	{"no_object", orb.ErrObjectNotExist},
	{"narrow", orb.ErrNarrow},
	{"transport", orb.ErrTransport},
}

// errorCode maps err to its wire code; unmapped errors are "remote".
func errorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "remote"
}

// decodeError rebuilds a sentinel-wrapped error from a failed response.
func decodeError(resp response) error {
	msg := strings.TrimSpace(resp.Error)
	for _, ec := range errorCodes {
		if ec.code == resp.Code {
			return fmt.Errorf("%w: %s", ec.err, msg)
		}
	}
	return fmt.Errorf("%w: %s", ErrRemote, msg)
}

func writeLine(w io.Writer, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	payload = append(payload, '\n')
	_, err = w.Write(payload)
	return err
}
