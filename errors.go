package lockfree

import "github.com/pkg/errors"

// Misconfiguration errors returned by New. Per spec §7 these are
// programming errors; the implementation documents a deliberate choice to
// reject them at construction rather than leave the behavior undefined.
var (
	ErrBucketFanoutTooSmall = errors.New("lockfree: nb_bucket must be >= 2")
	ErrLoadTooSmall         = errors.New("lockfree: load must be >= 1")
)
