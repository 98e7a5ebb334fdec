package sqlite

import "errors"

// Sentinel errors returned by the store.
var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrStoreClosed  = errors.New("store is closed")
)
