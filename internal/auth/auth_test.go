package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestTokenIssueAndParse(t *testing.T) {
	issuer, err := NewTokenIssuer("test-secret", "test-issuer", 30*time.Minute)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}

	token, expiresAt, err := issuer.Issue("user-42", "org-1", RoleOrganizationAdmin)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("expected future expiration, got %v", expiresAt)
	}

	claims, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "user-42" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.Issuer != "test-issuer" {
		t.Fatalf("unexpected issuer: %s", claims.Issuer)
	}
	if claims.Role != RoleOrganizationAdmin || claims.OrganizationID != "org-1" {
		t.Fatalf("claims not preserved: %+v", claims)
	}
}

func TestTokenParseRejects(t *testing.T) {
	issuer, err := NewTokenIssuer("secret-a", "", time.Minute)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	other, err := NewTokenIssuer("secret-b", "", time.Minute)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	foreign, _, err := other.Issue("u1", "org", RoleGeneralUser)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := issuer.Parse(foreign); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign signature, got %v", err)
	}
	if _, err := issuer.Parse(""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for empty token, got %v", err)
	}

	past := time.Now().Add(-2 * time.Hour)
	issuer.now = func() time.Time { return past }
	stale, _, err := issuer.Issue("u1", "org", RoleGeneralUser)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	issuer.now = time.Now
	if _, err := issuer.Parse(stale); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}

func TestTokenIssuerValidation(t *testing.T) {
	if _, err := NewTokenIssuer(" ", "", time.Minute); err == nil {
		t.Fatalf("expected error for empty secret")
	}
	if _, err := NewTokenIssuer("s", "", 0); err == nil {
		t.Fatalf("expected error for zero ttl")
	}
	issuer, err := NewTokenIssuer("s", "", time.Minute)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	if issuer.issuer != DefaultIssuer {
		t.Fatalf("expected default issuer, got %s", issuer.issuer)
	}
	if _, _, err := issuer.Issue("u1", "org", Role("ROOT")); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown role, got %v", err)
	}
}

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"SERVICE_ADMIN":        RoleServiceAdmin,
		" organization_admin ": RoleOrganizationAdmin,
		"business-unit-admin":  RoleBusinessUnitAdmin,
		"general_user":         RoleGeneralUser,
	}
	for raw, want := range cases {
		got, err := ParseRole(raw)
		if err != nil {
			t.Fatalf("ParseRole(%q): %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseRole(%q) = %s, want %s", raw, got, want)
		}
	}
	for _, raw := range []string{"", "admin", "SUPER_USER"} {
		if _, err := ParseRole(raw); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("ParseRole(%q) expected ErrInvalidInput, got %v", raw, err)
		}
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("unexpected hash format: %s", hash)
	}
	if err := VerifyPassword(hash, "correct horse"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if err := VerifyPassword(hash, "battery staple"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := VerifyPassword("$2a$10$bcrypt", "x"); !errors.Is(err, errMalformedHash) {
		t.Fatalf("expected malformed hash error, got %v", err)
	}
	if _, err := HashPassword(""); err == nil {
		t.Fatalf("expected error for empty password")
	}
}

func TestOrganizationIsDeleted(t *testing.T) {
	var zero time.Time
	now := time.Now()
	if (Organization{}).IsDeleted() {
		t.Fatalf("nil DeletedAt must not be deleted")
	}
	if (Organization{DeletedAt: &zero}).IsDeleted() {
		t.Fatalf("zero DeletedAt must not be deleted")
	}
	if !(Organization{DeletedAt: &now}).IsDeleted() {
		t.Fatalf("expected deleted organization")
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	if _, ok := PrincipalFromContext(ctx); ok {
		t.Fatalf("unexpected principal in empty context")
	}
	user := User{ID: "u7", OrganizationID: "org", Role: RoleBusinessUnitAdmin}
	org := Organization{ID: "org", Name: "Acme"}
	ctx = ContextWithPrincipal(ctx, NewPrincipal(user, org))
	ctx = ContextWithToken(ctx, "tok")

	p, ok := PrincipalFromContext(ctx)
	if !ok || p.UserID != "u7" || p.Organization.Name != "Acme" {
		t.Fatalf("unexpected principal: %+v ok=%v", p, ok)
	}
	if !p.HasRole(RoleServiceAdmin, RoleBusinessUnitAdmin) {
		t.Fatalf("HasRole missing expected role")
	}
	if p.HasRole(RoleServiceAdmin) {
		t.Fatalf("unexpected role match")
	}
	if tok, ok := TokenFromContext(ctx); !ok || tok != "tok" {
		t.Fatalf("unexpected token: %q ok=%v", tok, ok)
	}
}
