package services

import "errors"

// AuthError is an authentication failure. It deliberately carries no detail
// about which factor was wrong, so responses cannot be used to enumerate
// accounts. The message is fixed at construction and identical for every
// failure of the same operation.
type AuthError struct {
	msg string
}

func (e *AuthError) Error() string { return e.msg }

var (
	// ErrInvalidCredentials covers both "no such user" and "wrong password".
	ErrInvalidCredentials = &AuthError{msg: "invalid email or password"}

	// ErrInvalidOTP covers a wrong code, a mismatched email, and an expired
	// challenge alike.
	ErrInvalidOTP = &AuthError{msg: "invalid OTP"}

	// ErrOldPassword is returned when the current password does not verify
	// during a password change.
	ErrOldPassword = &AuthError{msg: "old password is incorrect"}
)

// ValidationError reports missing or malformed required input. It is raised
// before any store mutation.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func validationErr(msg string) *ValidationError {
	return &ValidationError{msg: msg}
}

var (
	// ErrUserNotFound is returned when an operation addresses an email or id
	// with no matching account.
	ErrUserNotFound = errors.New("user not found")

	// ErrNotAuthenticated is returned when an operation requires a signed-in
	// session and none is present.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrForbidden is returned when the caller's role does not permit the
	// operation.
	ErrForbidden = errors.New("forbidden")
)
