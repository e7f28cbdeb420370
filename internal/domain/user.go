package domain

import "time"

// UserStatus represents lifecycle states for a provisioned user.
type UserStatus string

const (
	UserStatusActive    UserStatus = "ACTIVE"
	UserStatusInactive  UserStatus = "INACTIVE"
	UserStatusSuspended UserStatus = "SUSPENDED"
)

// ValidStatus reports whether s belongs to the closed status set.
func ValidStatus(s UserStatus) bool {
	switch s {
	case UserStatusActive, UserStatusInactive, UserStatusSuspended:
		return true
	default:
		return false
	}
}

// User is the local record for an account holder. AuthID is the opaque
// reference returned by the external identity provider.
type User struct {
	ID                   string
	AuthID               string
	Email                string
	ContactNo            string
	IdentificationNumber string
	Status               UserStatus
	Profile              UserProfile
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// UserProfile holds personal data owned exclusively by its User.
type UserProfile struct {
	FirstName   string
	LastName    string
	DateOfBirth time.Time
	Address     string
	City        string
	State       string
	Country     string
	PostalCode  string
}
