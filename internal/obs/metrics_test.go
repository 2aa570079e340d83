package obs

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                     "/",
		"/metrics":                             "/metrics",
		"/v1/organizations":                    "/v1/organizations",
		"/v1/organizations/org_1":              "/v1/organizations/:id",
		"/v1/organizations/org_1/users":        "/v1/organizations/:id/users",
		"/v1/organizations/org_1/restore":      "/v1/organizations/:id/restore",
		"/v1/users/usr_9":                      "/v1/users/:id",
		"/v1/action-types/GET_USERS":           "/v1/action-types/:id",
		"/v1/organizations/a/b/c":              "/v1/organizations/:id/b/c",
		"/v1/organizations/o/business-units/b": "/v1/organizations/:id/business-units/:id",
		"/v1/permissions/evaluate":             "/v1/permissions/evaluate",
		"/v1/navigation?path=/users":           "/v1/navigation",
		"/v1/business-units/bu_1?verbose=1":    "/v1/business-units/:id",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestInstrumentCountsCanonicalPath(t *testing.T) {
	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/v1/users/:id", "418"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/users/usr_1", nil))

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/v1/users/:id", "418"))
	if after-before != 1 {
		t.Fatalf("expected counter to increase by 1, got %v", after-before)
	}
	if got := testutil.ToFloat64(httpInFlight); got != 0 {
		t.Fatalf("expected no in-flight requests, got %v", got)
	}
}

func TestObserveGateDecision(t *testing.T) {
	before := testutil.ToFloat64(gateDecisions.WithLabelValues("console", "role_denied"))
	ObserveGateDecision("console", "role_denied")
	if got := testutil.ToFloat64(gateDecisions.WithLabelValues("console", "role_denied")); got-before != 1 {
		t.Fatalf("expected one more decision, got %v", got-before)
	}
}

func TestSetLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	prev := SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(prev) })

	Logger().Info("hello", zap.String("k", "v"))
	if logs.Len() != 1 {
		t.Fatalf("expected one entry, got %d", logs.Len())
	}
	if logs.All()[0].ContextMap()["k"] != "v" {
		t.Fatalf("unexpected fields: %v", logs.All()[0].ContextMap())
	}
}

func TestNewLoggerLevel(t *testing.T) {
	l := NewLogger(LogConfig{Level: "warn"})
	if l.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("info must be disabled at warn level")
	}
	if !l.Core().Enabled(zapcore.ErrorLevel) {
		t.Fatalf("error must be enabled at warn level")
	}
	if !NewLogger(LogConfig{Level: "bogus"}).Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("unknown level should fall back to info")
	}
}
