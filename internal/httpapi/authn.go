package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"bizadmin.org/internal/auth"
	"bizadmin.org/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/token",
	"/v1/info",
	"/metrics",
	"/healthz",
	"/readyz",
}

// withAuth resolves the bearer token into a principal. The user and the
// organization are loaded fresh on every request so deletion, disabling and
// role changes take effect before the token expires. The role comes from the
// stored user, never from the claim.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="bizadmin"`)
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}
		claims, err := a.tokens.Parse(token)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="bizadmin", error="invalid_token"`)
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}
		user, err := a.console.ResolveUser(r.Context(), claims.Subject)
		switch {
		case errors.Is(err, auth.ErrUnauthorized):
			w.Header().Set("WWW-Authenticate", `Bearer realm="bizadmin", error="invalid_token"`)
			writeError(w, r, http.StatusUnauthorized, "user is no longer active")
			return
		case err != nil:
			obs.Logger().Error("user lookup failed",
				zap.String("user_id", claims.Subject),
				zap.Error(err))
			writeError(w, r, http.StatusInternalServerError, "authentication error")
			return
		}
		org, err := a.orgs.GetOrganization(r.Context(), user.OrganizationID)
		switch {
		case errors.Is(err, auth.ErrNotFound):
			writeError(w, r, http.StatusUnauthorized, "organization not found")
			return
		case err != nil:
			obs.Logger().Error("organization lookup failed",
				zap.String("organization_id", user.OrganizationID),
				zap.Error(err))
			writeError(w, r, http.StatusInternalServerError, "authentication error")
			return
		}

		principal := auth.Principal{UserID: user.ID, Role: user.Role, Organization: org}
		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withGate applies the API route tables to the authenticated principal. It
// evaluates the escaped path, the form the mux matches segments on, so an
// encoded slash cannot shift a request onto a different table entry.
func (a *API) withGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		path := r.URL.EscapedPath()
		decision := a.gate.Decide(path, principal.Role, principal.Organization)
		obs.ObserveGateDecision("api", string(decision.Reason))
		if decision.Allowed {
			next.ServeHTTP(w, r)
			return
		}
		a.audit(r.Context(), "gate.denied", "route", path, map[string]string{
			"reason": string(decision.Reason),
			"route":  decision.Route,
			"method": r.Method,
		})
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error":      "forbidden",
			"reason":     decision.Reason,
			"request_id": RequestIDFromContext(r.Context()),
		})
	})
}

// requireRole guards method-specific operations the path tables cannot
// express. It writes the 403 itself and reports whether to continue.
func requireRole(w http.ResponseWriter, r *http.Request, roles ...auth.Role) (auth.Principal, bool) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return auth.Principal{}, false
	}
	if len(roles) > 0 && !principal.HasRole(roles...) {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return auth.Principal{}, false
	}
	return principal, true
}

// requireOrganization limits everyone but service admins to their own
// organization.
func requireOrganization(w http.ResponseWriter, r *http.Request, principal auth.Principal, organizationID string) bool {
	if principal.HasRole(auth.RoleServiceAdmin) || principal.Organization.ID == organizationID {
		return true
	}
	writeError(w, r, http.StatusForbidden, "forbidden")
	return false
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if len(header) < len(bearer) || !strings.EqualFold(header[:len(bearer)], bearer) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
