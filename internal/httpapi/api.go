package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"bizadmin.org/internal/actiontype"
	"bizadmin.org/internal/audit"
	"bizadmin.org/internal/auth"
	"bizadmin.org/internal/obs"
	"bizadmin.org/internal/permission"
	"bizadmin.org/internal/stream"
)

const serviceName = "bizadmin-api"

// ReadinessChecker reports whether dependencies are reachable.
type ReadinessChecker interface {
	Check(ctx context.Context) error
}

// ReadyProbe pings the database. A nil DB is always ready.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Deps are the collaborators of the HTTP layer. Console and Tokens are
// required; the rest default to the built-in tables, the action catalog and
// an always-ready probe.
type Deps struct {
	Console *auth.ConsoleService
	Tokens  *auth.TokenIssuer

	// Organizations resolves the caller's organization on every request,
	// usually through the redis cache. Defaults to Console.
	Organizations auth.OrganizationFinder

	Navigation *permission.Policy
	Gate       *permission.Policy
	Registry   *actiontype.Registry
	Tracker    *actiontype.Tracker
	Ready      ReadinessChecker
	Version    string

	// Stream feeds GET /v1/operations/stream; nil disables the feed.
	Stream *stream.Hub

	RateBurst     int
	RatePerSecond float64
}

// API is the HTTP layer of the console backend.
type API struct {
	mux        *http.ServeMux
	console    *auth.ConsoleService
	tokens     *auth.TokenIssuer
	orgs       auth.OrganizationFinder
	navigation *permission.Policy
	gate       *permission.Policy
	registry   *actiontype.Registry
	tracker    *actiontype.Tracker
	ready      ReadinessChecker
	version    string
	stream     *stream.Hub

	rateBurst  int
	ratePerSec float64
}

func New(d Deps) (*API, error) {
	if d.Console == nil {
		return nil, errors.New("httpapi: console service is required")
	}
	if d.Tokens == nil {
		return nil, errors.New("httpapi: token issuer is required")
	}
	a := &API{
		mux:        http.NewServeMux(),
		console:    d.Console,
		tokens:     d.Tokens,
		orgs:       d.Organizations,
		navigation: d.Navigation,
		gate:       d.Gate,
		registry:   d.Registry,
		tracker:    d.Tracker,
		ready:      d.Ready,
		version:    d.Version,
		stream:     d.Stream,
		rateBurst:  d.RateBurst,
		ratePerSec: d.RatePerSecond,
	}
	if a.orgs == nil {
		a.orgs = d.Console
	}
	if a.navigation == nil {
		a.navigation = permission.Default()
	}
	if a.gate == nil {
		a.gate = permission.APIPolicy()
	}
	if a.registry == nil {
		a.registry = actiontype.Catalog
	}
	if a.ready == nil {
		a.ready = ReadyProbe{}
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 100
	}
	if a.ratePerSec <= 0 {
		a.ratePerSec = 50
	}
	obs.Init()
	a.routes()
	return a, nil
}

func (a *API) routes() {
	a.mux.HandleFunc("GET /healthz", a.healthz)
	a.mux.HandleFunc("GET /readyz", a.readyz)
	a.mux.HandleFunc("GET /v1/info", a.info)
	a.mux.Handle("GET /metrics", obs.Handler())

	a.mux.HandleFunc("POST /v1/auth/token", a.handleAuthToken)
	a.mux.HandleFunc("GET /v1/me", a.handleMe)

	a.mux.HandleFunc("GET /v1/navigation", a.handleNavigation)
	a.mux.HandleFunc("GET /v1/permissions", a.handlePermissions)
	a.mux.HandleFunc("POST /v1/permissions/evaluate", a.handleEvaluate)
	a.mux.HandleFunc("GET /v1/action-types", a.handleActionTypes)
	a.mux.HandleFunc("GET /v1/action-types/{base}", a.handleActionType)
	a.mux.HandleFunc("GET /v1/operations", a.handleOperations)
	a.mux.HandleFunc("GET /v1/operations/stream", a.handleOperationsStream)

	a.mux.HandleFunc("GET /v1/organizations", a.handleListOrganizations)
	a.mux.HandleFunc("POST /v1/organizations", a.handleCreateOrganization)
	a.mux.HandleFunc("GET /v1/organizations/{id}", a.handleGetOrganization)
	a.mux.HandleFunc("DELETE /v1/organizations/{id}", a.handleDeleteOrganization)
	a.mux.HandleFunc("POST /v1/organizations/{id}/restore", a.handleRestoreOrganization)

	a.mux.HandleFunc("GET /v1/organizations/{id}/users", a.handleListUsers)
	a.mux.HandleFunc("POST /v1/organizations/{id}/users", a.handleCreateUser)
	a.mux.HandleFunc("GET /v1/users/{id}", a.handleGetUser)
	a.mux.HandleFunc("DELETE /v1/users/{id}", a.handleDeleteUser)

	a.mux.HandleFunc("GET /v1/organizations/{id}/business-units", a.handleListBusinessUnits)
	a.mux.HandleFunc("POST /v1/organizations/{id}/business-units", a.handleCreateBusinessUnit)
	a.mux.HandleFunc("DELETE /v1/organizations/{id}/business-units/{unit}", a.handleDeleteBusinessUnit)
}

// Handler returns the fully wrapped handler: request ids, access log,
// metrics, rate limiting, authentication and the API gate.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withGate(h)
	h = a.withAuth(h)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = obs.Instrument(h)
	h = LoggingJSON(h)
	return RequestID(h)
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) readyz(w http.ResponseWriter, r *http.Request) {
	if err := a.ready.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func (a *API) audit(ctx context.Context, event, resourceType, resourceID string, fields map[string]string) {
	payload := map[string]any{
		"resource_type": resourceType,
		"resource_id":   resourceID,
	}
	for k, v := range fields {
		payload[k] = v
	}
	_ = audit.LogEvent(ctx, event, payload)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}
