package store

import "errors"

var (
	ErrNotFound        = errors.New("record not found")
	ErrConflict        = errors.New("conflicting record")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnknownResource = errors.New("unknown resource")
)
