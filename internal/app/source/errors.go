package source

import (
	"errors"
	"fmt"
)

var (
	// ErrUpstreamUnavailable covers network, timeout, auth, status and decoding failures.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrUpstreamEmpty is returned when the upstream answered with zero usable records.
	ErrUpstreamEmpty = errors.New("upstream returned no usable records")
)

// UpstreamError carries the HTTP status of a failed upstream call.
type UpstreamError struct {
	StatusCode int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream answered with status %d", e.StatusCode)
}

// Unwrap makes errors.Is(err, ErrUpstreamUnavailable) hold.
func (e *UpstreamError) Unwrap() error {
	return ErrUpstreamUnavailable
}

// MalformedRecordError describes one raw record that failed validation.
type MalformedRecordError struct {
	Index  int
	Reason string
	Shape  string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record #%d (%s): %s", e.Index, e.Shape, e.Reason)
}
