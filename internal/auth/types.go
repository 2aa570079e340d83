package auth

import "time"

const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// Organization is a tenant of the console. A set DeletedAt marks it as
// soft-deleted: the row stays referenceable but most of the console locks.
type Organization struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at"`
}

// IsDeleted reports whether the organization carries a deletion timestamp.
func (o Organization) IsDeleted() bool {
	return o.DeletedAt != nil && !o.DeletedAt.IsZero()
}

// User is a console account belonging to one organization.
type User struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	BusinessUnitID string     `json:"business_unit_id,omitempty"`
	Email          string     `json:"email"`
	Name           string     `json:"name"`
	Role           Role       `json:"role"`
	Status         string     `json:"status"`
	PasswordHash   string     `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

// BusinessUnit is a department inside an organization.
type BusinessUnit struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
