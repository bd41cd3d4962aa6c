package system

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/danmuck/rtmctl/internal/naming"
	"github.com/danmuck/rtmctl/internal/orb"
	"github.com/danmuck/rtmctl/internal/rtm"
	"github.com/danmuck/rtmctl/internal/testutil/rtmfake"
	"github.com/danmuck/rtmctl/internal/testutil/testlog"
)

const samplePlan = `
host: robot
modules: [SequencePlayer, TorqueFilter]
components:
  - name: seq
    factory: SequencePlayer
    properties:
      debugLevel: 1
      mode: replay
  - name: tf0
connections:
  - from: seq.qRef
    to: tf0.qIn
serialize: [seq, tf0]
activate: [seq, tf0]
`

func TestLoadPlan(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "system.yaml")
	if err := os.WriteFile(path, []byte(samplePlan), 0o644); err != nil {
		t.Fatalf("write plan: %v", err)
	}
	plan, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if plan.Host != "robot" || len(plan.Components) != 2 {
		t.Fatalf("unexpected plan %+v", plan)
	}
	if got := plan.Components[0].Properties["debugLevel"]; got != "1" {
		t.Fatalf("expected scalar property decoded as string, got %q", got)
	}

	raw, err := plan.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	again, err := Parse(raw)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if !reflect.DeepEqual(plan, again) {
		t.Fatalf("marshal changed the plan:\n%+v\n%+v", plan, again)
	}
}

func TestParseRejectsInvalidPlans(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{"empty", "", "empty document"},
		{"unknown key", "host: a\nbogus: 1\n", "bogus"},
		{"duplicate", "components:\n  - name: a\n  - name: a\n", "duplicate"},
		{"unnamed", "components:\n  - factory: X\n", "name required"},
		{"dotted", "components:\n  - name: a.b\n", "must not contain"},
		{"padded name", "components:\n  - name: \"seq \"\n    factory: SequencePlayer\nactivate: [seq]\n", "surrounding whitespace"},
		{"bad selector", "components:\n  - name: a\nconnections:\n  - from: a\n    to: a.in\n", "invalid port selector"},
		{"unknown connection", "components:\n  - name: a\nconnections:\n  - from: a.out\n    to: b.in\n", `unknown component "b"`},
		{"unknown activate", "components:\n  - name: a\nactivate: [z]\n", `activate[0]: unknown component "z"`},
	}
	for _, tc := range cases {
		_, err := Parse([]byte(tc.doc))
		if !errors.Is(err, ErrInvalidPlan) {
			t.Fatalf("%s: expected ErrInvalidPlan, got %v", tc.name, err)
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: error %q does not mention %q", tc.name, err, tc.want)
		}
	}
}

type fixture struct {
	client  *rtm.Client
	mgr     *rtmfake.Manager
	tf      *rtmfake.Component
	created []*rtmfake.Component
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	broker := orb.NewBroker()
	if err := broker.SetInitialReference(naming.InitialReference, naming.NewMemoryContext()); err != nil {
		t.Fatalf("initial reference: %v", err)
	}
	client, err := rtm.Dial(ctx, broker)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	f := &fixture{client: client, mgr: rtmfake.NewManager()}
	f.mgr.AddFactory(orb.FactoryProfile{Properties: []orb.NameValue{{Name: "implementation_id", Value: "SequencePlayer"}}},
		func(instance string) *rtmfake.Component {
			c := rtmfake.NewComponent(instance, "SequencePlayer")
			c.AddPort("qRef")
			c.SetConfig(rtmfake.NewConfiguration(orb.ConfigurationSet{
				ID:   "default",
				Data: []orb.NameValue{{Name: "debugLevel", Value: "0"}, {Name: "mode", Value: "idle"}},
			}))
			f.created = append(f.created, c)
			return c
		})
	f.tf = rtmfake.NewComponent("tf0", "TorqueFilter")
	f.tf.AddPort("qIn")

	nc := client.Naming()
	if _, err := nc.BindContext(ctx, naming.Path("robot", naming.KindHostContext)); err != nil {
		t.Fatalf("bind host: %v", err)
	}
	bind := func(id, kind string, obj orb.Object) {
		path := naming.ObjectPath{{ID: "robot", Kind: naming.KindHostContext}, {ID: id, Kind: kind}}
		if err := nc.Bind(ctx, path, obj); err != nil {
			t.Fatalf("bind %s: %v", path, err)
		}
	}
	bind(naming.ManagerName, naming.KindManager, f.mgr)
	bind("tf0", naming.KindComponent, f.tf)
	return f
}

func TestApplyBringsUpPlan(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	f := newFixture(t)
	f.mgr.LoadErr = errors.New("module already loaded")

	plan, err := Parse([]byte(samplePlan))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	report, err := Apply(ctx, f.client, plan)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	if len(report.LoadWarnings) != 2 || len(report.Loaded) != 0 {
		t.Fatalf("expected load failures as warnings, got %+v", report)
	}
	if len(f.mgr.Loads()) != 2 {
		t.Fatalf("expected both modules requested, got %+v", f.mgr.Loads())
	}
	if !reflect.DeepEqual(report.Found, []string{"tf0"}) {
		t.Fatalf("unexpected found list %v", report.Found)
	}
	if report.Created["seq"] != "SequencePlayer0" {
		t.Fatalf("unexpected created map %v", report.Created)
	}
	if len(f.created) != 1 {
		t.Fatalf("expected one created component, got %d", len(f.created))
	}
	seq := f.created[0]

	sets, _ := seq.Config().ConfigurationSets(ctx)
	wantData := []orb.NameValue{{Name: "debugLevel", Value: "1"}, {Name: "mode", Value: "replay"}}
	if !reflect.DeepEqual(sets[0].Data, wantData) {
		t.Fatalf("unexpected configuration %+v", sets[0].Data)
	}

	ports, _ := f.tf.Ports(ctx)
	in := ports[0].(*rtmfake.Port)
	if in.ConnectCalls() != 1 {
		t.Fatalf("expected one connect on tf0.qIn, got %d", in.ConnectCalls())
	}

	added := seq.Context().Added()
	if len(added) != 1 || !orb.SameObject(added[0], f.tf) {
		t.Fatalf("expected tf0 serialized onto seq's context, got %+v", added)
	}
	for _, c := range []orb.Component{seq, f.tf} {
		state, _ := seq.Context().ComponentState(ctx, c)
		if state != orb.StateActive {
			t.Fatalf("expected %s active, got %s", c.ObjectID(), state)
		}
	}
	if !reflect.DeepEqual(report.Activated, []string{"seq", "tf0"}) {
		t.Fatalf("unexpected activation list %v", report.Activated)
	}
}

func TestApplyIsIdempotentForConnections(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	f := newFixture(t)
	plan := &Plan{
		Host:        "robot",
		Components:  []ComponentSpec{{Name: "tf0"}, {Name: "seq", Factory: "SequencePlayer"}},
		Connections: []ConnectionSpec{{From: "seq.qRef", To: "tf0.qIn"}, {From: "seq.qRef", To: "tf0.qIn"}},
	}
	if _, err := Apply(ctx, f.client, plan); err != nil {
		t.Fatalf("apply: %v", err)
	}
	ports, _ := f.tf.Ports(ctx)
	if calls := ports[0].(*rtmfake.Port).ConnectCalls(); calls != 1 {
		t.Fatalf("duplicate connection made %d remote calls", calls)
	}
}

func TestApplyFailures(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()

	t.Run("unknown host", func(t *testing.T) {
		f := newFixture(t)
		_, err := Apply(ctx, f.client, &Plan{Host: "elsewhere"})
		if !errors.Is(err, orb.ErrNameNotFound) {
			t.Fatalf("expected ErrNameNotFound, got %v", err)
		}
	})
	t.Run("missing component without factory", func(t *testing.T) {
		f := newFixture(t)
		_, err := Apply(ctx, f.client, &Plan{Host: "robot", Components: []ComponentSpec{{Name: "ghost"}}})
		if !errors.Is(err, orb.ErrNameNotFound) {
			t.Fatalf("expected ErrNameNotFound, got %v", err)
		}
	})
	t.Run("declined factory", func(t *testing.T) {
		f := newFixture(t)
		_, err := Apply(ctx, f.client, &Plan{Host: "robot", Components: []ComponentSpec{{Name: "ctl", Factory: "Controller"}}})
		if !errors.Is(err, rtm.ErrComponentDeclined) {
			t.Fatalf("expected ErrComponentDeclined, got %v", err)
		}
	})
	t.Run("missing port", func(t *testing.T) {
		f := newFixture(t)
		report, err := Apply(ctx, f.client, &Plan{
			Host:        "robot",
			Components:  []ComponentSpec{{Name: "tf0"}},
			Connections: []ConnectionSpec{{From: "tf0.nope", To: "tf0.qIn"}},
		})
		if !errors.Is(err, rtm.ErrPortNotFound) {
			t.Fatalf("expected ErrPortNotFound, got %v", err)
		}
		if !reflect.DeepEqual(report.Found, []string{"tf0"}) {
			t.Fatalf("expected partial report, got %+v", report)
		}
	})
}

func TestApplyRejectsUndeclaredNames(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	cases := []struct {
		name string
		plan *Plan
	}{
		{"padded component", &Plan{
			Host:       "robot",
			Components: []ComponentSpec{{Name: "seq ", Factory: "SequencePlayer"}},
			Activate:   []string{"seq"},
		}},
		{"activate", &Plan{Host: "robot", Components: []ComponentSpec{{Name: "tf0"}}, Activate: []string{"seq"}}},
		{"serialize", &Plan{Host: "robot", Components: []ComponentSpec{{Name: "tf0"}}, Serialize: []string{"tf0", "seq"}}},
		{"connection", &Plan{
			Host:        "robot",
			Components:  []ComponentSpec{{Name: "tf0"}},
			Connections: []ConnectionSpec{{From: "seq.qRef", To: "tf0.qIn"}},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			report, err := Apply(ctx, f.client, tc.plan)
			if !errors.Is(err, ErrInvalidPlan) {
				t.Fatalf("expected ErrInvalidPlan, got %v", err)
			}
			if len(f.created) != 0 || len(report.Activated) != 0 {
				t.Fatalf("nothing should run on an invalid plan, got %+v", report)
			}
		})
	}
}

func TestApplyLookupMissIsAnError(t *testing.T) {
	testlog.Start(t)
	comps := map[string]*rtm.Component{}
	if _, err := lookup(comps, "seq"); !errors.Is(err, ErrInvalidPlan) {
		t.Fatalf("expected ErrInvalidPlan, got %v", err)
	}
}
