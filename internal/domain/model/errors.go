package model

import "errors"

// Failure kinds. Every error leaving a component wraps exactly one of these.
var (
	ErrMissingParameter          = errors.New("missing parameter")
	ErrInvalidEncoding           = errors.New("invalid encoding")
	ErrInvalidURL                = errors.New("invalid url")
	ErrUpstream                  = errors.New("upstream error")
	ErrUpstreamTimeout           = errors.New("upstream timeout")
	ErrMalformedUpstreamResponse = errors.New("malformed upstream response")
	ErrStorageUnavailable        = errors.New("storage unavailable")
	ErrStreamInterrupted         = errors.New("stream interrupted")
	ErrInternal                  = errors.New("internal error")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrMissingParameter, "MissingParameter"},
	{ErrInvalidEncoding, "InvalidEncoding"},
	{ErrInvalidURL, "InvalidURL"},
	{ErrUpstreamTimeout, "UpstreamTimeout"},
	{ErrUpstream, "UpstreamError"},
	{ErrMalformedUpstreamResponse, "MalformedUpstreamResponse"},
	{ErrStorageUnavailable, "StorageUnavailable"},
	{ErrStreamInterrupted, "StreamInterrupted"},
	{ErrInternal, "InternalError"},
}

// KindOf names the failure kind of err for logs and metric labels.
// Errors that wrap none of the known kinds are reported as InternalError.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "InternalError"
}
