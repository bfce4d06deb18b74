package domain

import "errors"

// ErrNotFound marks lookups for entities that do not exist. Handlers
// translate it to a 404.
var ErrNotFound = errors.New("not found")
