package model

import "github.com/google/uuid"

type Role string

const (
	RoleProvider Role = "provider"
	RoleClient   Role = "client"
)

// Account is a read-only view of a profile owned by the identity service.
type Account struct {
	ID       uuid.UUID `db:"id" json:"id"`
	Email    string    `db:"email" json:"email"`
	FullName string    `db:"full_name" json:"full_name"`
	Role     Role      `db:"role" json:"role"`
	TimeZone string    `db:"time_zone" json:"time_zone"`
}

// Principal is the authenticated caller.
type Principal struct {
	AccountID uuid.UUID
	Role      Role
}
