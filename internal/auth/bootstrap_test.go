package auth

import (
	"context"
	"errors"
	"testing"
)

func TestBootstrapIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	user, org, err := svc.Bootstrap(ctx, "Operators", "Root@Example.com", "s3cret")
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if user.Role != RoleServiceAdmin || user.Email != "root@example.com" || org.Name != "Operators" {
		t.Fatalf("unexpected bootstrap result: %+v %+v", user, org)
	}

	again, againOrg, err := svc.Bootstrap(ctx, "operators", "root@example.com", "other")
	if err != nil {
		t.Fatalf("second Bootstrap: %v", err)
	}
	if again.ID != user.ID || againOrg.ID != org.ID {
		t.Fatalf("bootstrap created duplicates: %s/%s vs %s/%s", again.ID, againOrg.ID, user.ID, org.ID)
	}
	if len(store.orgs) != 1 || len(store.users) != 1 {
		t.Fatalf("expected one organization and one user, got %d/%d", len(store.orgs), len(store.users))
	}
	if _, _, err := svc.Authenticate(ctx, "root@example.com", "s3cret"); err != nil {
		t.Fatalf("bootstrap password must be kept: %v", err)
	}
}

func TestBootstrapReusesExistingOrganization(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	org, err := svc.CreateOrganization(ctx, "Operators")
	if err != nil {
		t.Fatal(err)
	}
	_, got, err := svc.Bootstrap(ctx, "Operators", "root@example.com", "pw")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != org.ID {
		t.Fatalf("expected existing organization %s, got %s", org.ID, got.ID)
	}
}

func TestBootstrapValidation(t *testing.T) {
	svc, _ := newTestService(t)
	if _, _, err := svc.Bootstrap(context.Background(), "", "a@b.c", "pw"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, _, err := svc.Bootstrap(context.Background(), "Ops", "a@b.c", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty password, got %v", err)
	}
}
