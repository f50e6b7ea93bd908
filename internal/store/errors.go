package store

import "errors"

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidKind = errors.New("invalid media kind")
)
