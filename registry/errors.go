package registry

import "errors"

// ErrInvalidInput is returned when a source descriptor fails validation.
var ErrInvalidInput = errors.New("registry: invalid input")

// ErrDuplicateSource is returned when a source with the same name exists.
var ErrDuplicateSource = errors.New("registry: source with this name already exists")

// ErrNotFound is returned when the requested source does not exist.
var ErrNotFound = errors.New("registry: source not found")
