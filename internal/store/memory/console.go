// Package memory is a process-local console store. It backs development
// servers and tests and mirrors the constraints of the postgres schema.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"bizadmin.org/internal/auth"
	"bizadmin.org/internal/ids"
)

var _ auth.ConsoleStore = (*Store)(nil)

type Store struct {
	mu    sync.RWMutex
	now   func() time.Time
	orgs  map[string]*auth.Organization
	users map[string]*auth.User
	units map[string]*auth.BusinessUnit
}

func New() *Store {
	return &Store{
		now:   time.Now,
		orgs:  make(map[string]*auth.Organization),
		users: make(map[string]*auth.User),
		units: make(map[string]*auth.BusinessUnit),
	}
}

func (s *Store) CreateOrganization(ctx context.Context, name string) (auth.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeNameTaken(name, "") {
		return auth.Organization{}, auth.ErrConflict
	}
	now := s.now().UTC()
	org := &auth.Organization{
		ID:        ids.NewWithPrefix(ids.PrefixOrganization),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.orgs[org.ID] = org
	return cloneOrganization(org), nil
}

// activeNameTaken reports whether another live organization uses name.
func (s *Store) activeNameTaken(name, except string) bool {
	for id, org := range s.orgs {
		if id != except && org.DeletedAt == nil && strings.EqualFold(org.Name, name) {
			return true
		}
	}
	return false
}

func (s *Store) GetOrganization(ctx context.Context, id string) (auth.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.orgs[id]
	if !ok {
		return auth.Organization{}, auth.ErrNotFound
	}
	return cloneOrganization(org), nil
}

func (s *Store) ListOrganizations(ctx context.Context, includeDeleted bool) ([]auth.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]auth.Organization, 0, len(s.orgs))
	for _, org := range s.orgs {
		if org.DeletedAt != nil && !includeDeleted {
			continue
		}
		out = append(out, cloneOrganization(org))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) SoftDeleteOrganization(ctx context.Context, id string, at time.Time) (auth.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.orgs[id]
	if !ok {
		return auth.Organization{}, auth.ErrNotFound
	}
	if org.DeletedAt != nil {
		return auth.Organization{}, auth.ErrConflict
	}
	at = at.UTC()
	org.DeletedAt = &at
	org.UpdatedAt = at
	return cloneOrganization(org), nil
}

func (s *Store) RestoreOrganization(ctx context.Context, id string) (auth.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.orgs[id]
	if !ok {
		return auth.Organization{}, auth.ErrNotFound
	}
	if org.DeletedAt == nil || s.activeNameTaken(org.Name, id) {
		return auth.Organization{}, auth.ErrConflict
	}
	org.DeletedAt = nil
	org.UpdatedAt = s.now().UTC()
	return cloneOrganization(org), nil
}

func (s *Store) CreateUser(ctx context.Context, u auth.User) (auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orgs[u.OrganizationID]; !ok {
		return auth.User{}, auth.ErrNotFound
	}
	if u.BusinessUnitID != "" {
		if bu, ok := s.units[u.BusinessUnitID]; !ok || bu.OrganizationID != u.OrganizationID {
			return auth.User{}, auth.ErrNotFound
		}
	}
	for _, existing := range s.users {
		if existing.DeletedAt == nil && existing.Email == u.Email {
			return auth.User{}, auth.ErrConflict
		}
	}
	now := s.now().UTC()
	u.ID = ids.NewWithPrefix(ids.PrefixUser)
	u.CreatedAt = now
	u.UpdatedAt = now
	u.DeletedAt = nil
	stored := u
	s.users[u.ID] = &stored
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok || u.DeletedAt != nil {
		return auth.User{}, auth.ErrNotFound
	}
	return *u, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.DeletedAt == nil && u.Email == email {
			return *u, nil
		}
	}
	return auth.User{}, auth.ErrNotFound
}

func (s *Store) ListUsers(ctx context.Context, organizationID string) ([]auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []auth.User
	for _, u := range s.users {
		if u.OrganizationID == organizationID && u.DeletedAt == nil {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (s *Store) DeleteUser(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.DeletedAt != nil {
		return auth.ErrNotFound
	}
	at = at.UTC()
	u.DeletedAt = &at
	u.UpdatedAt = at
	return nil
}

func (s *Store) CreateBusinessUnit(ctx context.Context, organizationID, name string) (auth.BusinessUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orgs[organizationID]; !ok {
		return auth.BusinessUnit{}, auth.ErrNotFound
	}
	for _, bu := range s.units {
		if bu.OrganizationID == organizationID && bu.Name == name {
			return auth.BusinessUnit{}, auth.ErrConflict
		}
	}
	now := s.now().UTC()
	bu := &auth.BusinessUnit{
		ID:             ids.NewWithPrefix(ids.PrefixBusinessUnit),
		OrganizationID: organizationID,
		Name:           name,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.units[bu.ID] = bu
	return *bu, nil
}

// GetBusinessUnit returns unit id only when it belongs to organizationID.
func (s *Store) GetBusinessUnit(ctx context.Context, organizationID, id string) (auth.BusinessUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bu, ok := s.units[id]
	if !ok || bu.OrganizationID != organizationID {
		return auth.BusinessUnit{}, auth.ErrNotFound
	}
	return *bu, nil
}

func (s *Store) ListBusinessUnits(ctx context.Context, organizationID string) ([]auth.BusinessUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []auth.BusinessUnit
	for _, bu := range s.units {
		if bu.OrganizationID == organizationID {
			out = append(out, *bu)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DeleteBusinessUnit removes the unit and detaches its users.
func (s *Store) DeleteBusinessUnit(ctx context.Context, organizationID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bu, ok := s.units[id]
	if !ok || bu.OrganizationID != organizationID {
		return auth.ErrNotFound
	}
	delete(s.units, id)
	for _, u := range s.users {
		if u.BusinessUnitID == id {
			u.BusinessUnitID = ""
		}
	}
	return nil
}

func cloneOrganization(org *auth.Organization) auth.Organization {
	out := *org
	if org.DeletedAt != nil {
		at := *org.DeletedAt
		out.DeletedAt = &at
	}
	return out
}
