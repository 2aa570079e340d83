package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Bootstrap makes sure a service admin with email exists inside an active
// organization called orgName, creating both when missing. It is safe to run
// on every start: an existing user is returned untouched and keeps its
// password.
func (s *ConsoleService) Bootstrap(ctx context.Context, orgName, email, password string) (User, Organization, error) {
	orgName = strings.TrimSpace(orgName)
	email = strings.TrimSpace(strings.ToLower(email))
	if orgName == "" || email == "" {
		return User{}, Organization{}, fmt.Errorf("%w: organization name and email are required", ErrInvalidInput)
	}

	existing, err := s.store.FindUserByEmail(ctx, email)
	switch {
	case err == nil:
		org, err := s.store.GetOrganization(ctx, existing.OrganizationID)
		if err != nil {
			return User{}, Organization{}, err
		}
		return existing, org, nil
	case !errors.Is(err, ErrNotFound):
		return User{}, Organization{}, err
	}

	org, err := s.findActiveOrganization(ctx, orgName)
	if errors.Is(err, ErrNotFound) {
		org, err = s.CreateOrganization(ctx, orgName)
	}
	if err != nil {
		return User{}, Organization{}, err
	}
	user, err := s.CreateUser(ctx, NewUser{
		OrganizationID: org.ID,
		Email:          email,
		Name:           "Service administrator",
		Password:       password,
		Role:           string(RoleServiceAdmin),
	})
	if err != nil {
		return User{}, Organization{}, err
	}
	return user, org, nil
}

func (s *ConsoleService) findActiveOrganization(ctx context.Context, name string) (Organization, error) {
	orgs, err := s.store.ListOrganizations(ctx, false)
	if err != nil {
		return Organization{}, err
	}
	for _, org := range orgs {
		if strings.EqualFold(org.Name, name) {
			return org, nil
		}
	}
	return Organization{}, ErrNotFound
}
