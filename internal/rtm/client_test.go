package rtm

import (
	"context"
	"errors"
	"testing"

	"github.com/danmuck/rtmctl/internal/naming"
	"github.com/danmuck/rtmctl/internal/orb"
	"github.com/danmuck/rtmctl/internal/testutil/rtmfake"
	"github.com/danmuck/rtmctl/internal/testutil/testlog"
)

func newDiscovery(t *testing.T) (*Client, *naming.Client) {
	t.Helper()
	broker := orb.NewBroker()
	if err := broker.SetInitialReference(naming.InitialReference, naming.NewMemoryContext()); err != nil {
		t.Fatalf("initial reference: %v", err)
	}
	c, err := Dial(context.Background(), broker)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return c, c.Naming()
}

func TestFindManagerTwoStep(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	c, nc := newDiscovery(t)
	mgr := rtmfake.NewManager()

	if _, err := nc.BindContext(ctx, naming.Path("robot", naming.KindHostContext)); err != nil {
		t.Fatalf("bind host: %v", err)
	}
	path := naming.ObjectPath{{ID: "robot", Kind: naming.KindHostContext}, {ID: naming.ManagerName, Kind: naming.KindManager}}
	if err := nc.Bind(ctx, path, mgr); err != nil {
		t.Fatalf("bind manager: %v", err)
	}

	got, err := c.FindManager(ctx, "robot")
	if err != nil {
		t.Fatalf("find manager: %v", err)
	}
	if !orb.SameObject(got.Ref(), mgr) {
		t.Fatalf("found wrong manager")
	}
	if _, err := c.FindManager(ctx, "otherhost"); !errors.Is(err, orb.ErrNameNotFound) {
		t.Fatalf("expected ErrNameNotFound for unknown host, got %v", err)
	}
}

func TestFindComponentAndUnbind(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	c, nc := newDiscovery(t)
	comp := rtmfake.NewComponent("seq0", "SequencePlayer")
	if err := nc.Bind(ctx, naming.Path("seq0", naming.KindComponent), comp); err != nil {
		t.Fatalf("bind: %v", err)
	}

	h, err := c.FindComponent(ctx, "seq0")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !orb.SameObject(h.Ref(), comp) {
		t.Fatalf("found wrong component")
	}

	if err := c.UnbindObject(ctx, "seq0", naming.KindComponent); err != nil {
		t.Fatalf("unbind: %v", err)
	}
	if _, err := c.FindComponent(ctx, "seq0"); !errors.Is(err, orb.ErrNameNotFound) {
		t.Fatalf("expected ErrNameNotFound after unbind, got %v", err)
	}
}

func TestFindComponentOnHost(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	c, nc := newDiscovery(t)
	comp := rtmfake.NewComponent("tf0", "TorqueFilter")
	if _, err := nc.BindContext(ctx, naming.Path("robot", naming.KindHostContext)); err != nil {
		t.Fatalf("bind host: %v", err)
	}
	path := naming.ObjectPath{{ID: "robot", Kind: naming.KindHostContext}, {ID: "tf0", Kind: naming.KindComponent}}
	if err := nc.Bind(ctx, path, comp); err != nil {
		t.Fatalf("bind: %v", err)
	}
	h, err := c.FindComponentOnHost(ctx, "robot", "tf0")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !orb.SameObject(h.Ref(), comp) {
		t.Fatalf("found wrong component")
	}
}

func TestFindComponentWrongRoleFailsNarrow(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	c, nc := newDiscovery(t)
	if err := nc.Bind(ctx, naming.Path("mgr0", naming.KindComponent), rtmfake.NewManager()); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if _, err := c.FindComponent(ctx, "mgr0"); !errors.Is(err, orb.ErrNarrow) {
		t.Fatalf("expected ErrNarrow, got %v", err)
	}
}
