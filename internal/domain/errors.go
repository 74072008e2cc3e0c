package domain

import "errors"

// ErrNotFound is returned when the requested region, entry, or remote document
// does not exist. Remote adapters return it for a sync identity that has never
// been written; the sync controller treats that as "no remote data yet".
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned by service functions when input fails business
// rule validation (e.g. blank marker label, malformed date).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrNotReady is returned when a mutation is attempted before the bootstrap
// sequence has settled the initial document.
// Handlers should map this to HTTP 503.
var ErrNotReady = errors.New("document not ready")

// ErrInvalidSyncID is returned when a pasted sync identity is malformed.
var ErrInvalidSyncID = errors.New("invalid sync identity")
