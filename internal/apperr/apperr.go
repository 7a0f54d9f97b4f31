// Package apperr defines the flat, cross-cutting error kinds shared by every
// subsystem. Handlers translate these to HTTP status codes with errors.Is.
package apperr

import "errors"

var (
	ErrInvalidID           = errors.New("invalid id")
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation failed")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUserAlreadyExists   = errors.New("user already exists")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidToken        = errors.New("invalid token")
	ErrRangeNotSatisfiable = errors.New("range not satisfiable")
	ErrPathNotFound        = errors.New("path not found")
	ErrDatabase            = errors.New("database error")
	ErrIO                  = errors.New("io error")
	ErrInternal            = errors.New("internal error")
)
