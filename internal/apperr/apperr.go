// Package apperr defines the error classes shared by every domain package.
// Domain packages wrap these with %w so the HTTP layer can map them to status codes.
package apperr

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
)
