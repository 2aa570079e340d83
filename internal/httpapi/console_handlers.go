package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"

	"go.uber.org/zap"

	"bizadmin.org/internal/auth"
	"bizadmin.org/internal/obs"
)

type createOrganizationRequest struct {
	Name string `json:"name"`
}

type createUserRequest struct {
	Email          string `json:"email"`
	Name           string `json:"name"`
	Password       string `json:"password"`
	Role           string `json:"role"`
	Status         string `json:"status"`
	BusinessUnitID string `json:"business_unit_id"`
}

type createBusinessUnitRequest struct {
	Name string `json:"name"`
}

func (a *API) handleListOrganizations(w http.ResponseWriter, r *http.Request) {
	includeDeleted, _ := strconv.ParseBool(r.URL.Query().Get("include_deleted"))
	orgs, err := a.console.ListOrganizations(r.Context(), includeDeleted)
	if err != nil {
		handleConsoleError(w, r, err)
		return
	}
	if orgs == nil {
		orgs = []auth.Organization{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"organizations": orgs})
}

func (a *API) handleCreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req createOrganizationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	org, err := a.console.CreateOrganization(r.Context(), req.Name)
	if err != nil {
		handleConsoleError(w, r, err)
		return
	}
	a.audit(r.Context(), "console.organization.create", "organization", org.ID, map[string]string{
		"name": org.Name,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/organizations/%s", org.ID))
	writeJSON(w, http.StatusCreated, org)
}

func (a *API) handleGetOrganization(w http.ResponseWriter, r *http.Request) {
	principal, ok := requireRole(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if !requireOrganization(w, r, principal, id) {
		return
	}
	org, err := a.console.GetOrganization(r.Context(), id)
	if err != nil {
		handleConsoleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (a *API) handleDeleteOrganization(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireRole(w, r, auth.RoleServiceAdmin); !ok {
		return
	}
	org, err := a.console.DeleteOrganization(r.Context(), r.PathValue("id"))
	if err != nil {
		handleConsoleError(w, r, err)
		return
	}
	a.audit(r.Context(), "console.organization.delete", "organization", org.ID, nil)
	writeJSON(w, http.StatusOK, org)
}

func (a *API) handleRestoreOrganization(w http.ResponseWriter, r *http.Request) {
	org, err := a.console.RestoreOrganization(r.Context(), r.PathValue("id"))
	if err != nil {
		handleConsoleError(w, r, err)
		return
	}
	a.audit(r.Context(), "console.organization.restore", "organization", org.ID, nil)
	writeJSON(w, http.StatusOK, org)
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	principal, ok := requireRole(w, r)
	if !ok {
		return
	}
	orgID := r.PathValue("id")
	if !requireOrganization(w, r, principal, orgID) {
		return
	}
	users, err := a.console.ListUsers(r.Context(), orgID)
	if err != nil {
		handleConsoleError(w, r, err)
		return
	}
	if users == nil {
		users = []auth.User{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	principal, ok := requireRole(w, r)
	if !ok {
		return
	}
	orgID := r.PathValue("id")
	if !requireOrganization(w, r, principal, orgID) {
		return
	}
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		handleConsoleError(w, r, err)
		return
	}
	if !canGrant(principal.Role, role) {
		writeError(w, r, http.StatusForbidden, "cannot grant a role above your own")
		return
	}
	user, err := a.console.CreateUser(r.Context(), auth.NewUser{
		OrganizationID: orgID,
		BusinessUnitID: req.BusinessUnitID,
		Email:          req.Email,
		Name:           req.Name,
		Password:       req.Password,
		Role:           string(role),
		Status:         req.Status,
	})
	if err != nil {
		handleConsoleError(w, r, err)
		return
	}
	a.audit(r.Context(), "console.user.create", "user", user.ID, map[string]string{
		"organization_id": orgID,
		"email":           user.Email,
		"role":            string(user.Role),
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/users/%s", user.ID))
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	principal, ok := requireRole(w, r)
	if !ok {
		return
	}
	user, err := a.console.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		handleConsoleError(w, r, err)
		return
	}
	if !requireOrganization(w, r, principal, user.OrganizationID) {
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	principal, ok := requireRole(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if id == principal.UserID {
		writeError(w, r, http.StatusConflict, "cannot delete the signed-in user")
		return
	}
	user, err := a.console.GetUser(r.Context(), id)
	if err != nil {
		handleConsoleError(w, r, err)
		return
	}
	if !requireOrganization(w, r, principal, user.OrganizationID) {
		return
	}
	if !canGrant(principal.Role, user.Role) {
		writeError(w, r, http.StatusForbidden, "cannot delete a user above your own role")
		return
	}
	if err := a.console.DeleteUser(r.Context(), id); err != nil {
		handleConsoleError(w, r, err)
		return
	}
	a.audit(r.Context(), "console.user.delete", "user", id, map[string]string{
		"organization_id": user.OrganizationID,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListBusinessUnits(w http.ResponseWriter, r *http.Request) {
	principal, ok := requireRole(w, r)
	if !ok {
		return
	}
	orgID := r.PathValue("id")
	if !requireOrganization(w, r, principal, orgID) {
		return
	}
	units, err := a.console.ListBusinessUnits(r.Context(), orgID)
	if err != nil {
		handleConsoleError(w, r, err)
		return
	}
	if units == nil {
		units = []auth.BusinessUnit{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"business_units": units})
}

func (a *API) handleCreateBusinessUnit(w http.ResponseWriter, r *http.Request) {
	principal, ok := requireRole(w, r)
	if !ok {
		return
	}
	orgID := r.PathValue("id")
	if !requireOrganization(w, r, principal, orgID) {
		return
	}
	var req createBusinessUnitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	bu, err := a.console.CreateBusinessUnit(r.Context(), orgID, req.Name)
	if err != nil {
		handleConsoleError(w, r, err)
		return
	}
	a.audit(r.Context(), "console.business_unit.create", "business_unit", bu.ID, map[string]string{
		"organization_id": orgID,
		"name":            bu.Name,
	})
	writeJSON(w, http.StatusCreated, bu)
}

func (a *API) handleDeleteBusinessUnit(w http.ResponseWriter, r *http.Request) {
	principal, ok := requireRole(w, r)
	if !ok {
		return
	}
	orgID := r.PathValue("id")
	if !requireOrganization(w, r, principal, orgID) {
		return
	}
	unitID := r.PathValue("unit")
	if err := a.console.DeleteBusinessUnit(r.Context(), orgID, unitID); err != nil {
		handleConsoleError(w, r, err)
		return
	}
	a.audit(r.Context(), "console.business_unit.delete", "business_unit", unitID, map[string]string{
		"organization_id": orgID,
	})
	w.WriteHeader(http.StatusNoContent)
}

// canGrant reports whether a caller acting as role may assign or remove
// target. auth.Roles is ordered from most to least privileged.
func canGrant(role, target auth.Role) bool {
	have := slices.Index(auth.Roles, role)
	want := slices.Index(auth.Roles, target)
	return have >= 0 && want >= 0 && have <= want
}

func handleConsoleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, auth.ErrUnauthorized):
		writeError(w, r, http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, r, http.StatusForbidden, err.Error())
	default:
		obs.Logger().Error("console operation failed",
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "console operation failed")
	}
}
