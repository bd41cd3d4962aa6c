package rtm

import (
	"context"
	"fmt"
	"strings"

	"github.com/danmuck/rtmctl/internal/logging"
	"github.com/danmuck/rtmctl/internal/orb"
)

// Fixed connector parameters negotiated for every data port connection.
const (
	ConnectorName = "connector0"

	PropInterfaceType    = "dataport.interface_type"
	PropDataflowType     = "dataport.dataflow_type"
	PropSubscriptionType = "dataport.subscription_type"

	InterfaceTypeCDR  = "corba_cdr"
	DataflowPush      = "Push"
	SubscriptionFlush = "flush"
)

// ConnectorProperties returns the negotiated property set used by Connect.
func ConnectorProperties() []orb.NameValue {
	return []orb.NameValue{
		{Name: PropInterfaceType, Value: InterfaceTypeCDR},
		{Name: PropDataflowType, Value: DataflowPush},
		{Name: PropSubscriptionType, Value: SubscriptionFlush},
	}
}

// IsConnected reports whether out already carries a connector whose ports are
// exactly [out, in], in that order.
func IsConnected(ctx context.Context, out, in orb.Port) (bool, error) {
	prof, err := out.PortProfile(ctx)
	if err != nil {
		return false, err
	}
	for _, cp := range prof.ConnectorProfiles {
		if len(cp.Ports) != 2 {
			continue
		}
		if orb.SameObject(cp.Ports[0], out) && orb.SameObject(cp.Ports[1], in) {
			return true, nil
		}
	}
	return false, nil
}

// Connect links out to in unless that link already exists. The connect call is
// made on the input port. There is no retry or rollback.
func Connect(ctx context.Context, out, in orb.Port) error {
	connected, err := IsConnected(ctx, out, in)
	if err != nil {
		return fmt.Errorf("%w: inspect %s: %w", ErrConnect, out.ObjectID(), err)
	}
	if connected {
		return nil
	}
	prof := orb.ConnectorProfile{
		Name:       ConnectorName,
		Ports:      []orb.Port{out, in},
		Properties: ConnectorProperties(),
	}
	rc, _, err := in.Connect(ctx, prof)
	if err != nil {
		return fmt.Errorf("%w: %s -> %s: %w", ErrConnect, out.ObjectID(), in.ObjectID(), err)
	}
	if rc != orb.RTCOK {
		logging.Warnf("rtm.connect out=%q in=%q return_code=%s", out.ObjectID(), in.ObjectID(), rc)
	}
	return nil
}

// ConnectNamed resolves short port names on both components and connects them.
func ConnectNamed(ctx context.Context, out *Component, outPort string, in *Component, inPort string) error {
	op, err := requirePort(ctx, out, outPort)
	if err != nil {
		return err
	}
	ip, err := requirePort(ctx, in, inPort)
	if err != nil {
		return err
	}
	return Connect(ctx, op, ip)
}

// SplitPortSelector splits "component.port" at the first dot.
func SplitPortSelector(sel string) (component, port string, err error) {
	sel = strings.TrimSpace(sel)
	component, port, ok := strings.Cut(sel, ".")
	if !ok || component == "" || port == "" {
		return "", "", fmt.Errorf("%w: %q (want component.port)", ErrInvalidPortSelector, sel)
	}
	return component, port, nil
}

func requirePort(ctx context.Context, c *Component, name string) (orb.Port, error) {
	p, ok, err := c.Port(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		instance, _ := c.Name(ctx)
		return nil, fmt.Errorf("%w: %s.%s", ErrPortNotFound, instance, name)
	}
	return p, nil
}
