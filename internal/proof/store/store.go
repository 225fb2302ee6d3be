// Package store persists proof sessions. Sessions are ephemeral: the memory
// store relies on the cleanup worker and the Redis store on key TTLs.
package store

import "errors"

// ErrNotFound is returned when a requested session does not exist.
var ErrNotFound = errors.New("proof session not found")
