package rate

import "errors"

var (
	// ErrRateLimited is returned when the post-increment count exceeds the limit.
	ErrRateLimited = errors.New("rate limited")
	// ErrStoreUnavailable is returned when the counter backend cannot be reached.
	ErrStoreUnavailable = errors.New("rate store unavailable")
	// ErrInvalidWindow is returned for windows that are not a positive whole
	// number of seconds.
	ErrInvalidWindow = errors.New("rate window must be a whole number of seconds")
)
