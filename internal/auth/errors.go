package auth

import "errors"

var (
	// ErrMissingToken is returned by Verify when no token was supplied.
	ErrMissingToken = errors.New("auth: token missing")
	// ErrInvalidToken covers malformed, forged and expired tokens alike.
	ErrInvalidToken = errors.New("auth: invalid token")

	ErrNotFound     = errors.New("auth: not found")
	ErrInvalidInput = errors.New("auth: invalid input")
	ErrConflict     = errors.New("auth: already exists")
	ErrResetExpired = errors.New("auth: password reset expired")
)
