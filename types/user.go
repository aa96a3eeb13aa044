package types

import "time"

// Role is the authorization level of a user account.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleHR       Role = "hr"
	RoleEmployee Role = "employee"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleHR, RoleEmployee:
		return true
	}
	return false
}

// CanRegisterUsers reports whether this role may create new accounts.
// Account creation is an administrative function; self-service signup
// is intentionally not supported.
func (r Role) CanRegisterUsers() bool {
	return r == RoleAdmin
}

// User represents an account in the system.
// It contains identity, role, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// FullName is the user's display name.
	FullName string `json:"full_name" db:"full_name"`

	// Email is the user's unique email address, also used as the login name.
	Email string `json:"email" db:"email"`

	// MobileNo is the user's contact number.
	MobileNo string `json:"mobile_no" db:"mobile_no"`

	// Role indicates the user's authorization level within the system.
	Role Role `json:"role" db:"role"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Active reports whether the account has completed OTP verification.
	// Accounts are created inactive and may only log in once active.
	Active bool `json:"active" db:"active"`

	// ImageKey is the object-storage key of the user's photo, if any.
	ImageKey string `json:"image_key,omitempty" db:"image_key"`

	// IPAddress records the remote address of the last profile update.
	IPAddress string `json:"-" db:"ip_address"`

	// AddressID links the user's address record, if one exists.
	AddressID *int `json:"address_id,omitempty" db:"address_id"`

	// LastLogin is the timestamp of the most recent successful login.
	LastLogin *time.Time `json:"last_login,omitempty" db:"last_login"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
