package tree

import "errors"

var (
	// ErrNotFound is returned when an operation names a node id that is not
	// in the store. No mutation happens.
	ErrNotFound = errors.New("node not found")

	// ErrRootExists is returned by CreateRoot on a store that already has one.
	ErrRootExists = errors.New("tree already has a root")

	ErrInvalidDirection = errors.New("invalid direction")

	// ErrMalformed marks a node list that cannot be restored into a store.
	ErrMalformed = errors.New("malformed tree")
)
