package models

import "time"

// Role is the closed set of roles a user can hold.
type Role string

const (
	RoleEngineer Role = "engineer"
	RoleManager  Role = "manager"
	RoleCustomer Role = "customer"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleEngineer, RoleManager, RoleCustomer:
		return true
	}
	return false
}

// User is a person known to the tracker. Users are seeded from
// configuration and never mutated by workflow operations.
type User struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	FullName  string `gorm:"size:128;not null"`
	Email     string `gorm:"size:255;not null;uniqueIndex"`
	Role      Role   `gorm:"size:16;not null;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
