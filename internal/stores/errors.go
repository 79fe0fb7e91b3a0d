package stores

import "errors"

var (
	ErrNotFound    = errors.New("record not found")
	ErrUnavailable = errors.New("record store unavailable")
)
