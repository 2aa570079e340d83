package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"bizadmin.org/internal/actiontype"
	"bizadmin.org/internal/obs"
)

// OrganizationFinder loads a single organization, soft-deleted ones included.
type OrganizationFinder interface {
	GetOrganization(ctx context.Context, id string) (Organization, error)
}

// OrganizationInvalidator drops cached copies of an organization.
type OrganizationInvalidator interface {
	InvalidateOrganization(ctx context.Context, id string) error
}

// ConsoleStore describes persistence required by the console service.
type ConsoleStore interface {
	OrganizationFinder

	CreateOrganization(ctx context.Context, name string) (Organization, error)
	ListOrganizations(ctx context.Context, includeDeleted bool) ([]Organization, error)
	SoftDeleteOrganization(ctx context.Context, id string, at time.Time) (Organization, error)
	RestoreOrganization(ctx context.Context, id string) (Organization, error)

	CreateUser(ctx context.Context, u User) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	FindUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context, organizationID string) ([]User, error)
	DeleteUser(ctx context.Context, id string, at time.Time) error

	CreateBusinessUnit(ctx context.Context, organizationID, name string) (BusinessUnit, error)
	GetBusinessUnit(ctx context.Context, organizationID, id string) (BusinessUnit, error)
	ListBusinessUnits(ctx context.Context, organizationID string) ([]BusinessUnit, error)
	DeleteBusinessUnit(ctx context.Context, organizationID, id string) error
}

// NewUser is the input of ConsoleService.CreateUser.
type NewUser struct {
	OrganizationID string
	BusinessUnitID string
	Email          string
	Name           string
	Password       string
	Role           string
	Status         string
}

// ConsoleService validates console mutations and reports each operation's
// lifecycle to the action tracker.
type ConsoleService struct {
	store       ConsoleStore
	tracker     *actiontype.Tracker
	invalidator OrganizationInvalidator
	now         func() time.Time
}

// Option configures ConsoleService.
type Option func(*ConsoleService)

// WithTracker reports operation lifecycles to t.
func WithTracker(t *actiontype.Tracker) Option {
	return func(s *ConsoleService) { s.tracker = t }
}

// WithInvalidator drops cached organizations after lifecycle changes.
func WithInvalidator(inv OrganizationInvalidator) Option {
	return func(s *ConsoleService) { s.invalidator = inv }
}

// WithClock overrides the deletion timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *ConsoleService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewConsoleService(store ConsoleStore, opts ...Option) (*ConsoleService, error) {
	if store == nil {
		return nil, errors.New("console store is required")
	}
	s := &ConsoleService{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *ConsoleService) CreateOrganization(ctx context.Context, name string) (org Organization, err error) {
	s.tracker.Start(actiontype.CreateOrganization)
	defer func() { s.tracker.Finish(actiontype.CreateOrganization, err) }()

	name = strings.TrimSpace(name)
	if name == "" {
		return Organization{}, fmt.Errorf("%w: organization name is required", ErrInvalidInput)
	}
	return s.store.CreateOrganization(ctx, name)
}

func (s *ConsoleService) GetOrganization(ctx context.Context, id string) (org Organization, err error) {
	s.tracker.Start(actiontype.GetOrganization)
	defer func() { s.tracker.Finish(actiontype.GetOrganization, err) }()

	id = strings.TrimSpace(id)
	if id == "" {
		return Organization{}, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	return s.store.GetOrganization(ctx, id)
}

func (s *ConsoleService) ListOrganizations(ctx context.Context, includeDeleted bool) (orgs []Organization, err error) {
	s.tracker.Start(actiontype.GetOrganizations)
	defer func() { s.tracker.Finish(actiontype.GetOrganizations, err) }()

	return s.store.ListOrganizations(ctx, includeDeleted)
}

// DeleteOrganization soft-deletes the organization. Deleting twice is a conflict.
func (s *ConsoleService) DeleteOrganization(ctx context.Context, id string) (org Organization, err error) {
	s.tracker.Start(actiontype.DeleteOrganization)
	defer func() { s.tracker.Finish(actiontype.DeleteOrganization, err) }()

	id = strings.TrimSpace(id)
	if id == "" {
		return Organization{}, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	current, err := s.store.GetOrganization(ctx, id)
	if err != nil {
		return Organization{}, err
	}
	if current.IsDeleted() {
		return Organization{}, fmt.Errorf("%w: organization %s is already deleted", ErrConflict, id)
	}
	org, err = s.store.SoftDeleteOrganization(ctx, id, s.now().UTC())
	if err != nil {
		return Organization{}, err
	}
	s.invalidate(ctx, id)
	return org, nil
}

// RestoreOrganization clears the deletion timestamp. Restoring an active
// organization is a conflict.
func (s *ConsoleService) RestoreOrganization(ctx context.Context, id string) (org Organization, err error) {
	s.tracker.Start(actiontype.RestoreOrganization)
	defer func() { s.tracker.Finish(actiontype.RestoreOrganization, err) }()

	id = strings.TrimSpace(id)
	if id == "" {
		return Organization{}, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	current, err := s.store.GetOrganization(ctx, id)
	if err != nil {
		return Organization{}, err
	}
	if !current.IsDeleted() {
		return Organization{}, fmt.Errorf("%w: organization %s is not deleted", ErrConflict, id)
	}
	org, err = s.store.RestoreOrganization(ctx, id)
	if err != nil {
		return Organization{}, err
	}
	s.invalidate(ctx, id)
	return org, nil
}

func (s *ConsoleService) CreateUser(ctx context.Context, in NewUser) (user User, err error) {
	s.tracker.Start(actiontype.CreateUser)
	defer func() { s.tracker.Finish(actiontype.CreateUser, err) }()

	orgID := strings.TrimSpace(in.OrganizationID)
	if orgID == "" {
		return User{}, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return User{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	password := strings.TrimSpace(in.Password)
	if password == "" {
		return User{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	role, err := ParseRole(in.Role)
	if err != nil {
		return User{}, err
	}
	status := strings.TrimSpace(strings.ToLower(in.Status))
	if status == "" {
		status = UserStatusActive
	}
	if status != UserStatusActive && status != UserStatusDisabled {
		return User{}, fmt.Errorf("%w: unsupported status %s", ErrInvalidInput, status)
	}

	org, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		return User{}, err
	}
	if org.IsDeleted() {
		return User{}, fmt.Errorf("%w: organization %s is deleted", ErrConflict, orgID)
	}

	unitID := strings.TrimSpace(in.BusinessUnitID)
	if unitID != "" {
		if _, err := s.store.GetBusinessUnit(ctx, orgID, unitID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return User{}, fmt.Errorf("%w: business unit %s does not belong to organization %s", ErrInvalidInput, unitID, orgID)
			}
			return User{}, err
		}
	}

	hash, err := HashPassword(password)
	if err != nil {
		return User{}, err
	}
	return s.store.CreateUser(ctx, User{
		OrganizationID: orgID,
		BusinessUnitID: unitID,
		Email:          email,
		Name:           strings.TrimSpace(in.Name),
		Role:           role,
		Status:         status,
		PasswordHash:   hash,
	})
}

func (s *ConsoleService) ListUsers(ctx context.Context, organizationID string) (users []User, err error) {
	s.tracker.Start(actiontype.GetUsers)
	defer func() { s.tracker.Finish(actiontype.GetUsers, err) }()

	organizationID = strings.TrimSpace(organizationID)
	if organizationID == "" {
		return nil, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	return s.store.ListUsers(ctx, organizationID)
}

func (s *ConsoleService) GetUser(ctx context.Context, userID string) (user User, err error) {
	s.tracker.Start(actiontype.GetUser)
	defer func() { s.tracker.Finish(actiontype.GetUser, err) }()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	return s.store.GetUser(ctx, userID)
}

func (s *ConsoleService) DeleteUser(ctx context.Context, userID string) (err error) {
	s.tracker.Start(actiontype.DeleteUser)
	defer func() { s.tracker.Finish(actiontype.DeleteUser, err) }()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	return s.store.DeleteUser(ctx, userID, s.now().UTC())
}

func (s *ConsoleService) CreateBusinessUnit(ctx context.Context, organizationID, name string) (bu BusinessUnit, err error) {
	s.tracker.Start(actiontype.CreateBusinessUnit)
	defer func() { s.tracker.Finish(actiontype.CreateBusinessUnit, err) }()

	organizationID = strings.TrimSpace(organizationID)
	if organizationID == "" {
		return BusinessUnit{}, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return BusinessUnit{}, fmt.Errorf("%w: business unit name is required", ErrInvalidInput)
	}
	org, err := s.store.GetOrganization(ctx, organizationID)
	if err != nil {
		return BusinessUnit{}, err
	}
	if org.IsDeleted() {
		return BusinessUnit{}, fmt.Errorf("%w: organization %s is deleted", ErrConflict, organizationID)
	}
	return s.store.CreateBusinessUnit(ctx, organizationID, name)
}

func (s *ConsoleService) ListBusinessUnits(ctx context.Context, organizationID string) (units []BusinessUnit, err error) {
	s.tracker.Start(actiontype.GetBusinessUnits)
	defer func() { s.tracker.Finish(actiontype.GetBusinessUnits, err) }()

	organizationID = strings.TrimSpace(organizationID)
	if organizationID == "" {
		return nil, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	return s.store.ListBusinessUnits(ctx, organizationID)
}

// DeleteBusinessUnit removes a business unit of organizationID.
func (s *ConsoleService) DeleteBusinessUnit(ctx context.Context, organizationID, id string) (err error) {
	s.tracker.Start(actiontype.DeleteBusinessUnit)
	defer func() { s.tracker.Finish(actiontype.DeleteBusinessUnit, err) }()

	organizationID = strings.TrimSpace(organizationID)
	id = strings.TrimSpace(id)
	if organizationID == "" || id == "" {
		return fmt.Errorf("%w: organization_id and business_unit_id are required", ErrInvalidInput)
	}
	return s.store.DeleteBusinessUnit(ctx, organizationID, id)
}

// Authenticate checks credentials and returns the user with its organization.
// Users of a soft-deleted organization still sign in; the permission gate
// decides what they can reach.
func (s *ConsoleService) Authenticate(ctx context.Context, email, password string) (user User, org Organization, err error) {
	s.tracker.Start(actiontype.SignIn)
	defer func() { s.tracker.Finish(actiontype.SignIn, err) }()

	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return User{}, Organization{}, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}
	user, err = s.store.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, Organization{}, ErrUnauthorized
		}
		return User{}, Organization{}, err
	}
	if user.DeletedAt != nil || user.Status != UserStatusActive {
		return User{}, Organization{}, ErrUnauthorized
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return User{}, Organization{}, ErrUnauthorized
	}
	org, err = s.store.GetOrganization(ctx, user.OrganizationID)
	if err != nil {
		return User{}, Organization{}, err
	}
	return user, org, nil
}

// ResolveUser loads the caller behind a token. It bypasses the tracker
// because it runs on every authenticated request.
func (s *ConsoleService) ResolveUser(ctx context.Context, userID string) (User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, ErrUnauthorized
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrUnauthorized
		}
		return User{}, err
	}
	if user.DeletedAt != nil || user.Status != UserStatusActive {
		return User{}, ErrUnauthorized
	}
	return user, nil
}

func (s *ConsoleService) invalidate(ctx context.Context, id string) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.InvalidateOrganization(ctx, id); err != nil {
		obs.ObserveCacheInvalidationFailure("organization")
		obs.Logger().Error("organization cache invalidation failed",
			zap.String("organization_id", id),
			zap.Error(err))
	}
}
