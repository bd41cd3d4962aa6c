package naming

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/danmuck/rtmctl/internal/orb"
	"github.com/danmuck/rtmctl/internal/testutil/testlog"
)

type leaf struct{ id string }

func (l leaf) ObjectID() string { return l.id }

func TestResolveReturnsBoundReference(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	root := NewMemoryContext()
	client := NewClient(root)

	paths := []ObjectPath{
		Path("seq0", KindComponent),
		Path("seq0", "other"),
		{{ID: "robot", Kind: KindHostContext}, {ID: ManagerName, Kind: KindManager}},
	}
	if _, err := client.BindContext(ctx, Path("robot", KindHostContext)); err != nil {
		t.Fatalf("bind host context: %v", err)
	}
	for i, p := range paths {
		obj := leaf{id: "obj." + string(rune('a'+i))}
		if err := client.Bind(ctx, p, obj); err != nil {
			t.Fatalf("bind %s: %v", p, err)
		}
		got, err := client.Resolve(ctx, p)
		if err != nil {
			t.Fatalf("resolve %s: %v", p, err)
		}
		if !orb.SameObject(got, obj) {
			t.Fatalf("resolve %s returned %q, want %q", p, got.ObjectID(), obj.ObjectID())
		}
	}
}

func TestResolveUnboundFailsWithNameNotFound(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	root := NewMemoryContext()

	cases := []ObjectPath{
		Path("missing", KindComponent),
		{{ID: "nohost", Kind: KindHostContext}, {ID: ManagerName, Kind: KindManager}},
	}
	for _, p := range cases {
		if _, err := Resolve(ctx, root, p); !errors.Is(err, ErrNameNotFound) {
			t.Fatalf("resolve %s: expected ErrNameNotFound, got %v", p, err)
		}
	}
	if _, err := Resolve(ctx, root, nil); !errors.Is(err, orb.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName for empty path, got %v", err)
	}
}

func TestTwoStepHostContextChaining(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	client := NewClient(NewMemoryContext())

	host, err := client.BindContext(ctx, Path("robot", KindHostContext))
	if err != nil {
		t.Fatalf("bind host context: %v", err)
	}
	mgr := leaf{id: "mgr.robot"}
	if err := host.Bind(ctx, Path(ManagerName, KindManager), mgr); err != nil {
		t.Fatalf("bind manager: %v", err)
	}

	hostCtx, err := client.ResolveContext(ctx, Path("robot", KindHostContext))
	if err != nil {
		t.Fatalf("resolve host context: %v", err)
	}
	got, err := client.ResolveIn(ctx, hostCtx, Path(ManagerName, KindManager))
	if err != nil {
		t.Fatalf("resolve manager in host: %v", err)
	}
	if !orb.SameObject(got, mgr) {
		t.Fatalf("unexpected manager ref %q", got.ObjectID())
	}

	again, err := client.BindContext(ctx, Path("robot", KindHostContext))
	if err != nil {
		t.Fatalf("rebind host context: %v", err)
	}
	if !orb.SameObject(again, host) {
		t.Fatalf("BindContext should return the existing context")
	}
}

func TestUnbindRemovesEntry(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	root := NewMemoryContext()
	p := Path("seq0", KindComponent)
	if err := root.Bind(ctx, p, leaf{id: "rtc.seq0"}); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := root.Bind(ctx, p, leaf{id: "rtc.other"}); !errors.Is(err, orb.ErrAlreadyBound) {
		t.Fatalf("expected ErrAlreadyBound, got %v", err)
	}
	if err := Unbind(ctx, root, p); err != nil {
		t.Fatalf("unbind: %v", err)
	}
	if _, err := Resolve(ctx, root, p); !errors.Is(err, ErrNameNotFound) {
		t.Fatalf("expected miss after unbind, got %v", err)
	}
	if err := Unbind(ctx, root, p); !errors.Is(err, ErrNameNotFound) {
		t.Fatalf("expected ErrNameNotFound on second unbind, got %v", err)
	}
}

func TestResolveThroughLeafIsNotContext(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	root := NewMemoryContext()
	_ = root.Bind(ctx, Path("seq0", KindComponent), leaf{id: "rtc.seq0"})
	_, err := root.Resolve(ctx, []orb.NameComponent{{ID: "seq0", Kind: KindComponent}, {ID: "x"}})
	if !errors.Is(err, orb.ErrNotContext) {
		t.Fatalf("expected ErrNotContext, got %v", err)
	}
}

func TestListSorted(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	root := NewMemoryContext()
	_ = root.Bind(ctx, Path("b", KindComponent), leaf{id: "b"})
	_, _ = root.BindNewContext(ctx, Path("a", KindHostContext))
	list, err := root.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []orb.Binding{
		{Name: orb.NameComponent{ID: "a", Kind: KindHostContext}, IsContext: true},
		{Name: orb.NameComponent{ID: "b", Kind: KindComponent}},
	}
	if !reflect.DeepEqual(list, want) {
		t.Fatalf("list = %+v, want %+v", list, want)
	}
}

func TestParsePath(t *testing.T) {
	cases := []struct {
		raw  string
		want ObjectPath
	}{
		{raw: "seq0.rtc", want: Path("seq0", "rtc")},
		{raw: "robot.host_cxt/manager.mgr", want: ObjectPath{{ID: "robot", Kind: "host_cxt"}, {ID: "manager", Kind: "mgr"}}},
		{raw: "a.b.c", want: Path("a.b", "c")},
		{raw: `a\.b.c`, want: Path("a.b", "c")},
		{raw: "plain", want: Path("plain", "")},
	}
	for _, tc := range cases {
		got, err := ParsePath(tc.raw)
		if err != nil {
			t.Fatalf("ParsePath(%q): %v", tc.raw, err)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("ParsePath(%q) = %+v, want %+v", tc.raw, got, tc.want)
		}
		back, err := ParsePath(got.String())
		if err != nil || !reflect.DeepEqual(back, got) {
			t.Fatalf("String round trip for %q: got %+v err=%v", tc.raw, back, err)
		}
	}
	for _, bad := range []string{"", "a//b", ".rtc", `a\`} {
		if _, err := ParsePath(bad); !errors.Is(err, orb.ErrInvalidName) {
			t.Fatalf("ParsePath(%q): expected ErrInvalidName, got %v", bad, err)
		}
	}
}

func TestConnectUsesNameServiceReference(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	broker := orb.NewBroker()
	root := NewMemoryContext()
	if err := broker.SetInitialReference(InitialReference, root); err != nil {
		t.Fatalf("set initial reference: %v", err)
	}
	client, err := Connect(ctx, broker)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !orb.SameObject(client.Root(), root) {
		t.Fatalf("client root mismatch")
	}

	other := orb.NewBroker()
	_ = other.SetInitialReference(InitialReference, leaf{id: "not.a.context"})
	if _, err := Connect(ctx, other); !errors.Is(err, orb.ErrNarrow) {
		t.Fatalf("expected ErrNarrow, got %v", err)
	}
}
