package layout

import "errors"

var (
	// ErrLayoutNotFound indicates the layout doesn't exist.
	ErrLayoutNotFound = errors.New("layout not found")
	// ErrInvalidInput indicates invalid layout input.
	ErrInvalidInput = errors.New("invalid layout input")
	// ErrInvalidCatalog indicates a malformed role-default catalog.
	ErrInvalidCatalog = errors.New("invalid role default catalog")
)
