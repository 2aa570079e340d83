package httpapi

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"bizadmin.org/internal/auth"
	"bizadmin.org/internal/obs"
	"bizadmin.org/internal/permission"
)

func (c *apiClient) userID(email string) string {
	c.t.Helper()
	u, err := c.store.FindUserByEmail(context.Background(), email)
	if err != nil {
		c.t.Fatalf("find %s: %v", email, err)
	}
	return u.ID
}

func TestServiceAdminManagesOrganizations(t *testing.T) {
	api := newTestAPI(t)
	admin := api.login("root@operator.test")

	resp := api.post("/v1/organizations", map[string]string{"name": "  Globex  "}, admin)
	expectStatus(t, resp, http.StatusCreated)
	if resp.Header.Get("Location") == "" {
		t.Fatalf("expected Location header")
	}
	created := decodeBody[auth.Organization](t, resp)
	if created.Name != "Globex" {
		t.Fatalf("expected trimmed name, got %q", created.Name)
	}

	resp = api.post("/v1/organizations", map[string]string{"name": "globex"}, admin)
	expectStatus(t, resp, http.StatusConflict)
	resp.Body.Close()

	resp = api.post("/v1/organizations", map[string]any{"name": "x", "extra": true}, admin)
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = api.get("/v1/organizations", nil, admin)
	expectStatus(t, resp, http.StatusOK)
	list := decodeBody[map[string][]auth.Organization](t, resp)
	if len(list["organizations"]) != 3 {
		t.Fatalf("expected 3 organizations, got %+v", list)
	}
}

func TestOrganizationAdminScope(t *testing.T) {
	api := newTestAPI(t)
	owner := api.login("owner@acme.test")

	resp := api.post("/v1/organizations", map[string]string{"name": "Rogue"}, owner)
	expectStatus(t, resp, http.StatusForbidden)
	body := decodeBody[map[string]any](t, resp)
	if body["reason"] != "role_denied" {
		t.Fatalf("expected role_denied, got %v", body)
	}

	resp = api.get("/v1/organizations/"+api.acme.ID, nil, owner)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = api.get("/v1/organizations/"+api.operator.ID, nil, owner)
	expectStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()

	resp = api.delete("/v1/organizations/"+api.acme.ID, owner)
	expectStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()

	resp = api.post("/v1/organizations/"+api.acme.ID+"/restore", nil, owner)
	expectStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()
}

func TestDeletedOrganizationLockout(t *testing.T) {
	api := newTestAPI(t)
	admin := api.login("root@operator.test")
	owner := api.login("owner@acme.test")

	resp := api.delete("/v1/organizations/"+api.acme.ID, admin)
	expectStatus(t, resp, http.StatusOK)
	deleted := decodeBody[auth.Organization](t, resp)
	if !deleted.IsDeleted() {
		t.Fatalf("expected deleted organization: %+v", deleted)
	}

	resp = api.delete("/v1/organizations/"+api.acme.ID, admin)
	expectStatus(t, resp, http.StatusConflict)
	resp.Body.Close()

	// The token was issued before the delete; the gate still sees it.
	resp = api.get("/v1/organizations/"+api.acme.ID+"/users", nil, owner)
	expectStatus(t, resp, http.StatusForbidden)
	body := decodeBody[map[string]any](t, resp)
	if body["reason"] != "organization_deleted" {
		t.Fatalf("expected organization_deleted, got %v", body)
	}

	// Unregistered API routes are closed too; allow-listed ones stay open.
	resp = api.get("/v1/info-not-registered", nil, owner)
	expectStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()
	resp = api.get("/v1/me", nil, owner)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	nav := decodeBody[navigationResponse](t, api.get("/v1/navigation", url.Values{"path": {"/users"}}, owner))
	if nav.Allowed || nav.Redirect != organizationDeletedPage {
		t.Fatalf("unexpected navigation for deleted organization: %+v", nav)
	}
	nav = decodeBody[navigationResponse](t, api.get("/v1/navigation", url.Values{"path": {"/home"}}, owner))
	if !nav.Allowed {
		t.Fatalf("expected /home reachable after deletion: %+v", nav)
	}

	// Users of a deleted organization still sign in and land on the notice.
	resp = api.post("/v1/auth/token", map[string]string{"email": "staff@acme.test", "password": testPassword}, nil)
	expectStatus(t, resp, http.StatusOK)
	if tok := decodeBody[tokenResponse](t, resp); tok.Home != organizationDeletedPage {
		t.Fatalf("expected landing on %s, got %s", organizationDeletedPage, tok.Home)
	}

	resp = api.post("/v1/organizations/"+api.acme.ID+"/restore", nil, admin)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = api.get("/v1/organizations/"+api.acme.ID+"/users", nil, owner)
	expectStatus(t, resp, http.StatusOK)
	users := decodeBody[map[string][]auth.User](t, resp)
	if len(users["users"]) != 3 {
		t.Fatalf("expected 3 acme users, got %d", len(users["users"]))
	}

	resp = api.post("/v1/organizations/"+api.acme.ID+"/restore", nil, admin)
	expectStatus(t, resp, http.StatusConflict)
	resp.Body.Close()
}

func TestGateDenialIsAudited(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	prev := obs.SetLogger(zap.New(core))
	t.Cleanup(func() { obs.SetLogger(prev) })

	api := newTestAPI(t)
	staff := api.login("staff@acme.test")

	resp := api.get("/v1/operations", nil, staff)
	expectStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()

	denials := logs.FilterField(zap.String("event", "gate.denied")).All()
	if len(denials) != 1 {
		t.Fatalf("expected one gate.denied audit entry, got %d", len(denials))
	}
	fields := denials[0].ContextMap()
	if fields["role"] != string(auth.RoleGeneralUser) {
		t.Fatalf("expected role in audit entry: %v", fields)
	}
}

func TestCreateUserRules(t *testing.T) {
	api := newTestAPI(t)
	owner := api.login("owner@acme.test")
	unit := api.login("unit@acme.test")
	usersPath := "/v1/organizations/" + api.acme.ID + "/users"

	resp := api.post(usersPath, map[string]string{
		"email":    "New@Acme.test",
		"password": "pw",
		"role":     "general-user",
	}, owner)
	expectStatus(t, resp, http.StatusCreated)
	created := decodeBody[auth.User](t, resp)
	if created.Email != "new@acme.test" || created.Role != auth.RoleGeneralUser {
		t.Fatalf("unexpected user: %+v", created)
	}
	if created.PasswordHash != "" {
		t.Fatalf("password hash must not be serialized")
	}

	resp = api.post(usersPath, map[string]string{"email": "boss@acme.test", "password": "pw", "role": "SERVICE_ADMIN"}, owner)
	expectStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()

	resp = api.post(usersPath, map[string]string{"email": "x@acme.test", "password": "pw", "role": "ROOT"}, owner)
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = api.post(usersPath, map[string]string{"email": "new@acme.test", "password": "pw", "role": "GENERAL_USER"}, owner)
	expectStatus(t, resp, http.StatusConflict)
	resp.Body.Close()

	resp = api.post(usersPath, map[string]string{"email": "helper@acme.test", "password": "pw", "role": "GENERAL_USER"}, unit)
	expectStatus(t, resp, http.StatusCreated)
	resp.Body.Close()

	resp = api.post("/v1/organizations/"+api.operator.ID+"/users", map[string]string{"email": "y@op.test", "password": "pw", "role": "GENERAL_USER"}, unit)
	expectStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()
}

func TestUserResource(t *testing.T) {
	api := newTestAPI(t)
	owner := api.login("owner@acme.test")
	unit := api.login("unit@acme.test")
	staffID := api.userID("staff@acme.test")

	resp := api.get("/v1/users/"+staffID, nil, owner)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = api.get("/v1/users/"+staffID, nil, unit)
	expectStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()

	resp = api.get("/v1/users/"+api.userID("root@operator.test"), nil, owner)
	expectStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()

	resp = api.delete("/v1/users/"+api.userID("owner@acme.test"), owner)
	expectStatus(t, resp, http.StatusConflict)
	resp.Body.Close()

	resp = api.delete("/v1/users/"+staffID, owner)
	expectStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()

	resp = api.get("/v1/users/"+staffID, nil, owner)
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestBusinessUnits(t *testing.T) {
	api := newTestAPI(t)
	owner := api.login("owner@acme.test")
	unit := api.login("unit@acme.test")
	unitsPath := "/v1/organizations/" + api.acme.ID + "/business-units"

	resp := api.post(unitsPath, map[string]string{"name": "Finance"}, owner)
	expectStatus(t, resp, http.StatusCreated)
	bu := decodeBody[auth.BusinessUnit](t, resp)

	resp = api.get(unitsPath, nil, owner)
	expectStatus(t, resp, http.StatusOK)
	list := decodeBody[map[string][]auth.BusinessUnit](t, resp)
	if len(list["business_units"]) != 1 || list["business_units"][0].ID != bu.ID {
		t.Fatalf("unexpected business units: %+v", list)
	}

	resp = api.get(unitsPath, nil, unit)
	expectStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()

	resp = api.delete(unitsPath+"/"+bu.ID, owner)
	expectStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()

	resp = api.delete(unitsPath+"/"+bu.ID, owner)
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestCanGrant(t *testing.T) {
	cases := []struct {
		role, target auth.Role
		want         bool
	}{
		{auth.RoleServiceAdmin, auth.RoleServiceAdmin, true},
		{auth.RoleOrganizationAdmin, auth.RoleBusinessUnitAdmin, true},
		{auth.RoleOrganizationAdmin, auth.RoleServiceAdmin, false},
		{auth.RoleGeneralUser, auth.RoleGeneralUser, true},
		{auth.RoleBusinessUnitAdmin, auth.RoleOrganizationAdmin, false},
		{auth.Role("ROOT"), auth.RoleGeneralUser, false},
	}
	for _, tc := range cases {
		if got := canGrant(tc.role, tc.target); got != tc.want {
			t.Fatalf("canGrant(%s, %s) = %v, want %v", tc.role, tc.target, got, tc.want)
		}
	}
}

func TestCreateUserRejectsForeignBusinessUnit(t *testing.T) {
	api := newTestAPI(t)
	owner := api.login("owner@acme.test")
	globex := api.seedOrganization("Globex")
	foreign, err := api.console.CreateBusinessUnit(context.Background(), globex.ID, "Finance")
	if err != nil {
		t.Fatalf("CreateBusinessUnit: %v", err)
	}
	usersPath := "/v1/organizations/" + api.acme.ID + "/users"

	resp := api.post(usersPath, map[string]string{
		"email":            "mallory@acme.test",
		"password":         "pw",
		"role":             "GENERAL_USER",
		"business_unit_id": foreign.ID,
	}, owner)
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
	if _, err := api.store.FindUserByEmail(context.Background(), "mallory@acme.test"); err == nil {
		t.Fatal("user must not be created with a unit of another organization")
	}

	own, err := api.console.CreateBusinessUnit(context.Background(), api.acme.ID, "Finance")
	if err != nil {
		t.Fatalf("CreateBusinessUnit: %v", err)
	}
	resp = api.post(usersPath, map[string]string{
		"email":            "alice@acme.test",
		"password":         "pw",
		"role":             "GENERAL_USER",
		"business_unit_id": own.ID,
	}, owner)
	expectStatus(t, resp, http.StatusCreated)
	if created := decodeBody[auth.User](t, resp); created.BusinessUnitID != own.ID {
		t.Fatalf("unexpected business unit: %+v", created)
	}
}

func TestDeletedUserTokenIsRejected(t *testing.T) {
	api := newTestAPI(t)
	admin := api.login("root@operator.test")
	owner := api.login("owner@acme.test")
	usersPath := "/v1/organizations/" + api.acme.ID + "/users"

	resp := api.get(usersPath, nil, owner)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = api.delete("/v1/users/"+api.userID("owner@acme.test"), admin)
	expectStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()

	resp = api.get(usersPath, nil, owner)
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()
	resp = api.get("/v1/me", nil, owner)
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()
}

func TestGateSeesEncodedSlash(t *testing.T) {
	api := newTestAPI(t)
	staff := api.login("staff@acme.test")

	resp := api.get("/v1/organizations/x%2Fy", nil, staff)
	expectStatus(t, resp, http.StatusForbidden)
	body := decodeBody[map[string]any](t, resp)
	if body["reason"] != string(permission.ReasonRoleDenied) {
		t.Fatalf("expected the gate to deny on the {id} route, got %v", body)
	}
}
