package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmailTaken is returned when an insert or update would violate the
// unique email constraint on users.
var ErrEmailTaken = errors.New("email already exists")
