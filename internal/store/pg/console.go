package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"bizadmin.org/internal/auth"
	"bizadmin.org/internal/ids"
)

var errNoDB = errors.New("database connection unavailable")

const organizationColumns = `id, name, created_at, updated_at, deleted_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrganization(row rowScanner) (auth.Organization, error) {
	var (
		org     auth.Organization
		deleted sql.NullTime
	)
	if err := row.Scan(&org.ID, &org.Name, &org.CreatedAt, &org.UpdatedAt, &deleted); err != nil {
		return auth.Organization{}, err
	}
	org.DeletedAt = timePtr(deleted)
	return org, nil
}

func (s *Store) CreateOrganization(ctx context.Context, name string) (auth.Organization, error) {
	if s.db == nil {
		return auth.Organization{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `
		insert into organizations (id, name)
		values ($1, $2)
		returning `+organizationColumns,
		ids.NewWithPrefix(ids.PrefixOrganization), name)
	org, err := scanOrganization(row)
	if err != nil {
		return auth.Organization{}, translate(err)
	}
	return org, nil
}

// GetOrganization returns the organization even when soft-deleted.
func (s *Store) GetOrganization(ctx context.Context, id string) (auth.Organization, error) {
	if s.db == nil {
		return auth.Organization{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `
		select `+organizationColumns+`
		from organizations
		where id = $1
	`, id)
	org, err := scanOrganization(row)
	if err != nil {
		return auth.Organization{}, translate(err)
	}
	return org, nil
}

func (s *Store) ListOrganizations(ctx context.Context, includeDeleted bool) ([]auth.Organization, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+organizationColumns+`
		from organizations
		where $1 or deleted_at is null
		order by name
	`, includeDeleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []auth.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, org)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) SoftDeleteOrganization(ctx context.Context, id string, at time.Time) (auth.Organization, error) {
	if s.db == nil {
		return auth.Organization{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `
		update organizations
		set deleted_at = $2, updated_at = $2
		where id = $1 and deleted_at is null
		returning `+organizationColumns,
		id, at)
	org, err := scanOrganization(row)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Organization{}, s.missingOrConflict(ctx, id)
	}
	if err != nil {
		return auth.Organization{}, translate(err)
	}
	return org, nil
}

func (s *Store) RestoreOrganization(ctx context.Context, id string) (auth.Organization, error) {
	if s.db == nil {
		return auth.Organization{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `
		update organizations
		set deleted_at = null, updated_at = $2
		where id = $1 and deleted_at is not null
		returning `+organizationColumns,
		id, s.now().UTC())
	org, err := scanOrganization(row)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Organization{}, s.missingOrConflict(ctx, id)
	}
	if err != nil {
		return auth.Organization{}, translate(err)
	}
	return org, nil
}

// missingOrConflict tells a missing row from one already in the target state.
func (s *Store) missingOrConflict(ctx context.Context, id string) error {
	var exists bool
	err := s.db.QueryRowContext(ctx, `select exists(select 1 from organizations where id = $1)`, id).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return auth.ErrNotFound
	}
	return auth.ErrConflict
}

const userColumns = `id, organization_id, coalesce(business_unit_id, ''), email, name, role, status, password_hash, created_at, updated_at, deleted_at`

func scanUser(row rowScanner) (auth.User, error) {
	var (
		u       auth.User
		role    string
		deleted sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.OrganizationID, &u.BusinessUnitID, &u.Email, &u.Name, &role, &u.Status, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt, &deleted); err != nil {
		return auth.User{}, err
	}
	u.Role = auth.Role(role)
	u.DeletedAt = timePtr(deleted)
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, u auth.User) (auth.User, error) {
	if s.db == nil {
		return auth.User{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `
		insert into users (id, organization_id, business_unit_id, email, name, role, status, password_hash)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
		returning `+userColumns,
		ids.NewWithPrefix(ids.PrefixUser), u.OrganizationID, nullIfEmpty(u.BusinessUnitID), u.Email, u.Name, string(u.Role), u.Status, u.PasswordHash)
	created, err := scanUser(row)
	if err != nil {
		return auth.User{}, translate(err)
	}
	return created, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (auth.User, error) {
	if s.db == nil {
		return auth.User{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `
		select `+userColumns+`
		from users
		where id = $1 and deleted_at is null
	`, id)
	u, err := scanUser(row)
	if err != nil {
		return auth.User{}, translate(err)
	}
	return u, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (auth.User, error) {
	if s.db == nil {
		return auth.User{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `
		select `+userColumns+`
		from users
		where email = $1 and deleted_at is null
	`, email)
	u, err := scanUser(row)
	if err != nil {
		return auth.User{}, translate(err)
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context, organizationID string) ([]auth.User, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+userColumns+`
		from users
		where organization_id = $1 and deleted_at is null
		order by email
	`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []auth.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) DeleteUser(ctx context.Context, id string, at time.Time) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.db.ExecContext(ctx, `
		update users set deleted_at = $2, updated_at = $2
		where id = $1 and deleted_at is null
	`, id, at)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *Store) CreateBusinessUnit(ctx context.Context, organizationID, name string) (auth.BusinessUnit, error) {
	if s.db == nil {
		return auth.BusinessUnit{}, errNoDB
	}
	var bu auth.BusinessUnit
	err := s.db.QueryRowContext(ctx, `
		insert into business_units (id, organization_id, name)
		values ($1, $2, $3)
		returning id, organization_id, name, created_at, updated_at
	`, ids.NewWithPrefix(ids.PrefixBusinessUnit), organizationID, name).
		Scan(&bu.ID, &bu.OrganizationID, &bu.Name, &bu.CreatedAt, &bu.UpdatedAt)
	if err != nil {
		return auth.BusinessUnit{}, translate(err)
	}
	return bu, nil
}

// GetBusinessUnit returns unit id only when it belongs to organizationID.
func (s *Store) GetBusinessUnit(ctx context.Context, organizationID, id string) (auth.BusinessUnit, error) {
	if s.db == nil {
		return auth.BusinessUnit{}, errNoDB
	}
	var bu auth.BusinessUnit
	err := s.db.QueryRowContext(ctx, `
		select id, organization_id, name, created_at, updated_at
		from business_units
		where organization_id = $1 and id = $2
	`, organizationID, id).
		Scan(&bu.ID, &bu.OrganizationID, &bu.Name, &bu.CreatedAt, &bu.UpdatedAt)
	if err != nil {
		return auth.BusinessUnit{}, translate(err)
	}
	return bu, nil
}

func (s *Store) ListBusinessUnits(ctx context.Context, organizationID string) ([]auth.BusinessUnit, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, organization_id, name, created_at, updated_at
		from business_units
		where organization_id = $1
		order by name
	`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []auth.BusinessUnit
	for rows.Next() {
		var bu auth.BusinessUnit
		if err := rows.Scan(&bu.ID, &bu.OrganizationID, &bu.Name, &bu.CreatedAt, &bu.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, bu)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) DeleteBusinessUnit(ctx context.Context, organizationID, id string) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.db.ExecContext(ctx, `delete from business_units where id = $1 and organization_id = $2`, id, organizationID)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}
