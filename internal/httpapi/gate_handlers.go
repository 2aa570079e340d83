package httpapi

import (
	"net/http"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"bizadmin.org/internal/actiontype"
	"bizadmin.org/internal/auth"
	"bizadmin.org/internal/obs"
	"bizadmin.org/internal/permission"
)

// Console pages a denied navigation is sent to.
const (
	homePage                = "/home"
	organizationDeletedPage = "/organization-deleted"
)

type navigationResponse struct {
	Path     string            `json:"path"`
	Allowed  bool              `json:"allowed"`
	Reason   permission.Reason `json:"reason"`
	Route    string            `json:"route,omitempty"`
	Redirect string            `json:"redirect,omitempty"`
}

// handleNavigation answers the console router: may the caller open path?
func (a *API) handleNavigation(w http.ResponseWriter, r *http.Request) {
	principal, ok := requireRole(w, r)
	if !ok {
		return
	}
	raw := r.URL.Query().Get("path")
	if strings.TrimSpace(raw) == "" {
		writeError(w, r, http.StatusBadRequest, "path is required")
		return
	}
	path := permission.NormalizeRoute(raw)
	decision := a.navigation.Decide(path, principal.Role, principal.Organization)
	obs.ObserveGateDecision("console", string(decision.Reason))
	writeJSON(w, http.StatusOK, navigationFor(path, decision))
}

func navigationFor(path string, d permission.Decision) navigationResponse {
	resp := navigationResponse{Path: path, Allowed: d.Allowed, Reason: d.Reason, Route: d.Route}
	if !d.Allowed {
		resp.Redirect = homePage
		if d.Reason == permission.ReasonOrganizationDeleted {
			resp.Redirect = organizationDeletedPage
		}
	}
	return resp
}

type evaluateRequest struct {
	Path                string `json:"path"`
	Role                string `json:"role"`
	OrganizationID      string `json:"organization_id"`
	OrganizationDeleted bool   `json:"organization_deleted"`
	Policy              string `json:"policy"`
}

// handleEvaluate runs the gate for an arbitrary role and organization.
// organization_id loads the real organization; otherwise
// organization_deleted describes a hypothetical one.
func (a *API) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		writeError(w, r, http.StatusBadRequest, "path is required")
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	policy, name, ok := a.policyByName(req.Policy)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "policy must be console or api")
		return
	}

	var org auth.Organization
	if id := strings.TrimSpace(req.OrganizationID); id != "" {
		org, err = a.orgs.GetOrganization(r.Context(), id)
		if err != nil {
			handleConsoleError(w, r, err)
			return
		}
	} else if req.OrganizationDeleted {
		at := time.Now().UTC()
		org.DeletedAt = &at
	}

	path := permission.NormalizeRoute(req.Path)
	decision := policy.Decide(path, role, org)
	obs.ObserveGateDecision(name, string(decision.Reason))
	writeJSON(w, http.StatusOK, navigationFor(path, decision))
}

type permissionsResponse struct {
	Routes    []permission.RouteRule `json:"routes"`
	AllowList []string               `json:"deleted_organization_allowlist"`
}

// handlePermissions exports a policy as JSON, or as the YAML table document
// when the client asks for application/yaml.
func (a *API) handlePermissions(w http.ResponseWriter, r *http.Request) {
	policy, _, ok := a.policyByName(r.URL.Query().Get("policy"))
	if !ok {
		writeError(w, r, http.StatusBadRequest, "policy must be console or api")
		return
	}
	if strings.Contains(r.Header.Get("Accept"), "yaml") {
		out, err := yaml.Marshal(policy)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "encode tables")
			return
		}
		w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
		_, _ = w.Write(out)
		return
	}
	writeJSON(w, http.StatusOK, permissionsResponse{
		Routes:    policy.Routes(),
		AllowList: policy.AllowList(),
	})
}

func (a *API) policyByName(name string) (*permission.Policy, string, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "console":
		return a.navigation, "console", true
	case "api":
		return a.gate, "api", true
	default:
		return nil, "", false
	}
}

func (a *API) handleActionTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"families": a.registry.Families(),
	})
}

type actionTypeResponse struct {
	actiontype.Family
	Phase string `json:"phase,omitempty"`
}

// handleActionType resolves a base name or one of its derived identifiers.
func (a *API) handleActionType(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("base"))
	if fam, ok := a.registry.Family(name); ok {
		writeJSON(w, http.StatusOK, actionTypeResponse{Family: fam})
		return
	}
	if fam, phase, ok := a.registry.Lookup(name); ok {
		writeJSON(w, http.StatusOK, actionTypeResponse{Family: fam, Phase: phase.String()})
		return
	}
	writeError(w, r, http.StatusNotFound, "action type not registered")
}

// handleOperations reports the lifecycle status of every tracked operation.
func (a *API) handleOperations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"operations": a.tracker.Snapshot(),
	})
}
