package domain

import "errors"

// Sentinel errors for the application. Services wrap these with context via
// fmt.Errorf("...: %w", err); handlers map them to status codes with errors.Is.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("resource already exists")
	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)
