// Package store provides form definition lookups.
package store

import "errors"

// ErrNotFound is returned when no form matches the id or slug.
var ErrNotFound = errors.New("form not found")
