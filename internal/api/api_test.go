package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/danmuck/rtmctl/internal/naming"
	"github.com/danmuck/rtmctl/internal/observability"
	"github.com/danmuck/rtmctl/internal/orb"
	"github.com/danmuck/rtmctl/internal/rtm"
	"github.com/danmuck/rtmctl/internal/testutil/rtmfake"
	"github.com/danmuck/rtmctl/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
)

type fixture struct {
	client *rtm.Client
	srv    *Server
	mgr    *rtmfake.Manager
	seq    *rtmfake.Component
	tf     *rtmfake.Component
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
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
			return c
		})
	f.mgr.AddFactory(orb.FactoryProfile{Properties: []orb.NameValue{{Name: "implementation_id", Value: "Controller"}}}, nil)

	f.seq = rtmfake.NewComponent("seq", "SequencePlayer")
	f.seq.AddPort("qRef")
	f.seq.SetConfig(rtmfake.NewConfiguration(orb.ConfigurationSet{
		ID:   "default",
		Data: []orb.NameValue{{Name: "gain", Value: "0.5"}},
	}))
	f.tf = rtmfake.NewComponent("tf0", "TorqueFilter")
	f.tf.AddPort("qIn")
	f.mgr.Adopt(f.seq)
	f.mgr.Adopt(f.tf)

	nc := client.Naming()
	if _, err := nc.BindContext(ctx, naming.Path("robot", naming.KindHostContext)); err != nil {
		t.Fatalf("bind host: %v", err)
	}
	mgrPath := naming.ObjectPath{{ID: "robot", Kind: naming.KindHostContext}, {ID: naming.ManagerName, Kind: naming.KindManager}}
	if err := nc.Bind(ctx, mgrPath, f.mgr); err != nil {
		t.Fatalf("bind manager: %v", err)
	}
	for name, c := range map[string]*rtmfake.Component{"seq": f.seq, "tf0": f.tf} {
		if err := nc.Bind(ctx, naming.Path(name, naming.KindComponent), c); err != nil {
			t.Fatalf("bind %s at root: %v", name, err)
		}
		hostPath := naming.ObjectPath{{ID: "robot", Kind: naming.KindHostContext}, {ID: name, Kind: naming.KindComponent}}
		if err := nc.Bind(ctx, hostPath, c); err != nil {
			t.Fatalf("bind %s on host: %v", name, err)
		}
	}

	f.srv = New("rtmctl-test", client, Options{DefaultHost: "robot"})
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("%s %s: decode body %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code, out
}

func TestHealthAndReady(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)

	code, body := f.do(t, http.MethodGet, "/health", "")
	if code != http.StatusOK || body["status"] != "ok" || body["service"] != "rtmctl-test" {
		t.Fatalf("unexpected health %d %v", code, body)
	}
	code, body = f.do(t, http.MethodGet, "/ready", "")
	if code != http.StatusOK || body["ready"] != true {
		t.Fatalf("unexpected ready %d %v", code, body)
	}
}

func TestRequestIDHeader(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(observability.RequestIDHeader, "trace-42")
	rec := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(rec, req)
	if got := rec.Header().Get(observability.RequestIDHeader); got != "trace-42" {
		t.Fatalf("expected incoming request id echoed, got %q", got)
	}

	rec = httptest.NewRecorder()
	f.srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if got := rec.Header().Get(observability.RequestIDHeader); len(got) != 36 {
		t.Fatalf("expected generated uuid request id, got %q", got)
	}
}

func TestTokenGuardsMutatingRoutes(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)
	f.srv = New("rtmctl-test", f.client, Options{DefaultHost: "robot", Token: "s3cret"})

	code, _ := f.do(t, http.MethodGet, "/components/seq", "")
	if code != http.StatusOK {
		t.Fatalf("reads should stay open, got %d", code)
	}
	code, _ = f.do(t, http.MethodPost, "/components/seq/activate", "")
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}

	req := httptest.NewRequest(http.MethodPost, "/components/seq/activate", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestHostRoutes(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)

	code, body := f.do(t, http.MethodGet, "/hosts/robot/factories", "")
	if code != http.StatusOK {
		t.Fatalf("factories: %d %v", code, body)
	}
	if !reflect.DeepEqual(body["factories"], []any{"SequencePlayer", "Controller"}) {
		t.Fatalf("unexpected factories %v", body["factories"])
	}

	code, body = f.do(t, http.MethodGet, "/hosts/robot/components", "")
	if code != http.StatusOK {
		t.Fatalf("components: %d %v", code, body)
	}
	comps, _ := body["components"].([]any)
	if len(comps) != 2 {
		t.Fatalf("expected two components, got %v", body["components"])
	}

	code, body = f.do(t, http.MethodGet, "/hosts/nowhere/factories", "")
	if code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown host, got %d %v", code, body)
	}
}

func TestLoadModuleReportsWarning(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)

	code, body := f.do(t, http.MethodPost, "/hosts/robot/modules", `{"basename":"SequencePlayer"}`)
	if code != http.StatusOK || body["loaded"] != true {
		t.Fatalf("unexpected load result %d %v", code, body)
	}
	loads := f.mgr.Loads()
	if len(loads) != 1 || loads[0].Path != "SequencePlayer.so" || loads[0].InitFunc != "SequencePlayerInit" {
		t.Fatalf("unexpected load calls %+v", loads)
	}

	f.mgr.LoadErr = errors.New("dlopen failed")
	code, body = f.do(t, http.MethodPost, "/hosts/robot/modules", `{"basename":"Missing"}`)
	if code != http.StatusOK || body["loaded"] != false {
		t.Fatalf("expected load failure reported as warning, got %d %v", code, body)
	}
	if w, _ := body["warning"].(string); !strings.Contains(w, "Missing") {
		t.Fatalf("warning should name the module, got %q", w)
	}

	code, _ = f.do(t, http.MethodPost, "/hosts/robot/modules", `{}`)
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing basename, got %d", code)
	}
}

func TestCreateComponent(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)

	code, body := f.do(t, http.MethodPost, "/hosts/robot/components", `{"factory":"SequencePlayer"}`)
	if code != http.StatusCreated || body["name"] != "SequencePlayer0" {
		t.Fatalf("unexpected create result %d %v", code, body)
	}
	if !reflect.DeepEqual(body["ports"], []any{"qRef"}) {
		t.Fatalf("unexpected ports %v", body["ports"])
	}

	code, body = f.do(t, http.MethodPost, "/hosts/robot/components", `{"factory":"Controller"}`)
	if code != http.StatusConflict {
		t.Fatalf("expected 409 for declined factory, got %d %v", code, body)
	}
}

func TestComponentLifecycle(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)

	code, body := f.do(t, http.MethodGet, "/components/seq", "")
	if code != http.StatusOK || body["state"] != orb.StateInactive.String() || body["active"] != false {
		t.Fatalf("unexpected component %d %v", code, body)
	}

	code, body = f.do(t, http.MethodPost, "/components/seq/activate", "")
	if code != http.StatusOK || body["active"] != true {
		t.Fatalf("unexpected activate result %d %v", code, body)
	}
	state, _ := f.seq.Context().ComponentState(context.Background(), f.seq)
	if state != orb.StateActive {
		t.Fatalf("expected fake context to record activation, got %s", state)
	}

	code, body = f.do(t, http.MethodPost, "/components/seq/deactivate?host=robot", "")
	if code != http.StatusOK || body["active"] != false {
		t.Fatalf("unexpected deactivate result %d %v", code, body)
	}

	f.tf.SetContexts()
	code, _ = f.do(t, http.MethodPost, "/components/tf0/activate", "")
	if code != http.StatusConflict {
		t.Fatalf("expected 409 without an execution context, got %d", code)
	}

	code, _ = f.do(t, http.MethodGet, "/components/ghost", "")
	if code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown component, got %d", code)
	}
}

func TestProperties(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)

	code, body := f.do(t, http.MethodGet, "/components/seq/properties/gain", "")
	if code != http.StatusOK || body["value"] != "0.5" {
		t.Fatalf("unexpected property %d %v", code, body)
	}

	code, _ = f.do(t, http.MethodPut, "/components/seq/properties/gain", `{"value":"0.75"}`)
	if code != http.StatusOK {
		t.Fatalf("set property: %d", code)
	}
	code, body = f.do(t, http.MethodGet, "/components/seq/properties/gain", "")
	if code != http.StatusOK || body["value"] != "0.75" {
		t.Fatalf("property not updated %d %v", code, body)
	}
	if acts := f.seq.Config().Activations(); !reflect.DeepEqual(acts, []string{"default"}) {
		t.Fatalf("expected default set activated once, got %v", acts)
	}

	code, _ = f.do(t, http.MethodGet, "/components/seq/properties/missing", "")
	if code != http.StatusNotFound {
		t.Fatalf("expected 404 for absent property, got %d", code)
	}
	code, _ = f.do(t, http.MethodPut, "/components/seq/properties/gain", `{}`)
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 without a value, got %d", code)
	}
}

func TestConnections(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		code, body := f.do(t, http.MethodPost, "/connections", `{"from":"seq.qRef","to":"tf0.qIn"}`)
		if code != http.StatusOK {
			t.Fatalf("connect %d: %d %v", i, code, body)
		}
	}
	ports, _ := f.tf.Ports(ctx)
	if calls := ports[0].(*rtmfake.Port).ConnectCalls(); calls != 1 {
		t.Fatalf("expected one remote connect, got %d", calls)
	}

	cases := []struct {
		body string
		want int
	}{
		{`{"from":"seq","to":"tf0.qIn"}`, http.StatusBadRequest},
		{`{"from":"seq.nope","to":"tf0.qIn"}`, http.StatusNotFound},
		{`{"from":"ghost.out","to":"tf0.qIn"}`, http.StatusNotFound},
		{`{"from":"seq.qRef"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		if code, body := f.do(t, http.MethodPost, "/connections", tc.body); code != tc.want {
			t.Fatalf("%s: expected %d, got %d %v", tc.body, tc.want, code, body)
		}
	}
}

func TestApplyPlan(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t)

	plan := "components:\n  - name: seq\n  - name: tf0\nconnections:\n  - from: seq.qRef\n    to: tf0.qIn\nactivate: [seq]\n"
	code, body := f.do(t, http.MethodPost, "/system/apply", plan)
	if code != http.StatusOK {
		t.Fatalf("apply: %d %v", code, body)
	}
	if body["host"] != "robot" || !reflect.DeepEqual(body["activated"], []any{"seq"}) {
		t.Fatalf("unexpected report %v", body)
	}

	code, _ = f.do(t, http.MethodPost, "/system/apply", "components:\n  - name: a.b\n")
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid plan, got %d", code)
	}
}

func TestStatusMapping(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		err  error
		want int
	}{
		{orb.ErrNameNotFound, http.StatusNotFound},
		{rtm.ErrPortNotFound, http.StatusNotFound},
		{rtm.ErrInvalidPortSelector, http.StatusBadRequest},
		{orb.ErrNarrow, http.StatusConflict},
		{orb.ErrTransport, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, got)
		}
	}
}
