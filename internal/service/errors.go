package service

import (
	"errors"
	"fmt"
)

var (
	// ErrAccessDenied is returned when a token is required and the request
	// carries none or the wrong one.
	ErrAccessDenied = errors.New("forbidden: invalid or missing token")

	// ErrInvalidTarget is returned when the url parameter cannot be decoded
	// into a usable URL.
	ErrInvalidTarget = errors.New("invalid url")

	// ErrMissingTarget is an ErrInvalidTarget for an absent url parameter.
	ErrMissingTarget = fmt.Errorf("%w: missing url param", ErrInvalidTarget)

	// ErrUnsupportedScheme is returned for decoded targets that are not
	// http:// or https://.
	ErrUnsupportedScheme = errors.New("only http/https supported")
)

// UpstreamError reports a failed upstream fetch: a network error, a
// timeout, or (for playlists) a non-2xx status.
type UpstreamError struct {
	Status int   // upstream status code, 0 when no response was received
	Err    error // underlying transport error, nil for status failures
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("request failed with status code %d", e.Status)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
