package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"bizadmin.org/internal/auth"
)

type tokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// tokenResponse carries the landing page so the console can route a user
// of a deleted organization straight to the notice page.
type tokenResponse struct {
	Token        string            `json:"token"`
	ExpiresAt    time.Time         `json:"expires_at"`
	User         auth.User         `json:"user"`
	Organization auth.Organization `json:"organization"`
	Home         string            `json:"home"`
}

func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, org, err := a.console.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidInput):
			writeError(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, auth.ErrUnauthorized):
			writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		default:
			writeError(w, r, http.StatusInternalServerError, "authentication failed")
		}
		return
	}

	token, expiresAt, err := a.tokens.Issue(user.ID, org.ID, user.Role)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	ctx := auth.ContextWithPrincipal(r.Context(), auth.NewPrincipal(user, org))
	a.audit(ctx, "auth.token.issued", "user", user.ID, map[string]string{
		"expires_at":           expiresAt.Format(time.RFC3339),
		"organization_deleted": strconv.FormatBool(org.IsDeleted()),
	})

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:        token,
		ExpiresAt:    expiresAt,
		User:         user,
		Organization: org,
		Home:         landingPage(org),
	})
}

// handleMe returns the caller with a fresh copy of its organization.
func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := requireRole(w, r)
	if !ok {
		return
	}
	user, err := a.console.GetUser(r.Context(), principal.UserID)
	if err != nil {
		handleConsoleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":         user,
		"organization": principal.Organization,
		"role":         principal.Role,
	})
}

func landingPage(org auth.Organization) string {
	if org.IsDeleted() {
		return organizationDeletedPage
	}
	return homePage
}
