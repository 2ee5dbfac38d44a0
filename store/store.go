package store

import "errors"

// ErrNotFound is returned by point lookups. Expiry handlers never see it as a
// failure: an entity that is already gone means the expiry lost the race and
// there is nothing left to do.
var ErrNotFound = errors.New("store: not found")
