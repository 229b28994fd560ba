package repository

import "errors"

var (
	// ErrVideoNotFound is returned when no record exists for a filename.
	ErrVideoNotFound = errors.New("video not found")

	// ErrBucketNotFound is returned when the archive bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")
)

// ErrSizeLimitExceeded is wrapped into the interruption error when a
// relayed payload grows past the configured cap.
var ErrSizeLimitExceeded = errors.New("stream size limit exceeded")
