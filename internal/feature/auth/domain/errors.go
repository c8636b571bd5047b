// Package domain defines domain-level errors for the auth feature.
package domain

import "errors"

// Domain errors for signup and login.
var (
	// ErrUserAlreadyExists is returned by signup when the email is taken.
	ErrUserAlreadyExists = errors.New("user with this email already exists")

	// ErrUserNotFound is returned by repository lookups that match no row.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidCredentials hides whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrWeakPassword is returned when the password does not meet the length rule.
	ErrWeakPassword = errors.New("password is too short")
)
