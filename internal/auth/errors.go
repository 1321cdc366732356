package auth

import "errors"

var (
	// ErrDuplicateEmail is returned when registering an email that already has an account
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrUnknownEmail is returned when logging in with an email that has no account
	ErrUnknownEmail = errors.New("email not registered")

	// ErrInvalidPassword is returned when the password does not match the stored hash
	ErrInvalidPassword = errors.New("invalid password")

	// ErrUnauthenticated is returned when an operation needs a live session
	ErrUnauthenticated = errors.New("not authenticated")
)
