package types

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound indicates the platform reports the identifier as missing,
	// unavailable, region-locked or age-restricted.
	ErrNotFound = errors.New("video not found or unavailable")

	// ErrRateLimited indicates a platform throttling signal. Retry only after
	// a delay.
	ErrRateLimited = errors.New("rate limited by platform")

	// ErrNoSuitableStream indicates no descriptor survived kind/quality
	// filtering. Recoverable by relaxing constraints.
	ErrNoSuitableStream = errors.New("no suitable stream")
)

// NetworkError wraps a transient transport failure. Retryable by the caller.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// NotFoundError carries the platform's playability status alongside
// ErrNotFound.
type NotFoundError struct {
	VideoID string
	Status  string
	Reason  string
}

func (e *NotFoundError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("video %s unavailable: %s (%s)", e.VideoID, e.Status, e.Reason)
	}
	return fmt.Sprintf("video %s unavailable: %s", e.VideoID, e.Status)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ParseError signals that an expected structural anchor is missing from the
// platform response. This is the format-drift maintenance signal: it means
// the parser needs updating, not that the request should be retried.
type ParseError struct {
	Anchor string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("metadata parse failed: anchor %q not found (platform response format may have changed)", e.Anchor)
}

// SignatureError signals that a descriptor's cipher could not be resolved to
// a fetchable URL. Like ParseError this is a maintenance signal: the
// platform's obfuscation scheme has likely rotated past the known transforms.
type SignatureError struct {
	Itag   int
	Reason string
	Err    error
}

func (e *SignatureError) Error() string {
	if e.Itag != 0 {
		return fmt.Sprintf("signature resolution failed for itag %d: %s", e.Itag, e.Reason)
	}
	return fmt.Sprintf("signature resolution failed: %s", e.Reason)
}

func (e *SignatureError) Unwrap() error { return e.Err }

// NoSuitableStreamError reports which constraints eliminated every candidate.
type NoSuitableStreamError struct {
	Kind       StreamKind
	MaxBitrate int
	Candidates int
}

func (e *NoSuitableStreamError) Error() string {
	if e.MaxBitrate > 0 {
		return fmt.Sprintf("no suitable stream: kind=%s max_bitrate=%d candidates=%d", e.Kind, e.MaxBitrate, e.Candidates)
	}
	return fmt.Sprintf("no suitable stream: kind=%s candidates=%d", e.Kind, e.Candidates)
}

func (e *NoSuitableStreamError) Is(target error) bool { return target == ErrNoSuitableStream }

// SizeMismatchError reports a transfer that completed without a transport
// error but delivered a byte count disagreeing with the known content length.
type SizeMismatchError struct {
	Expected int64
	Received int64
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("size mismatch: expected %d bytes, received %d", e.Expected, e.Received)
}

// StallTimeoutError reports that no bytes arrived within the stall window.
// Distinct from a total-transfer timeout; retryable, ideally via range
// resumption.
type StallTimeoutError struct {
	Window   time.Duration
	Received int64
}

func (e *StallTimeoutError) Error() string {
	return fmt.Sprintf("transfer stalled: no bytes received within %s (got %d bytes)", e.Window, e.Received)
}

// IsMaintenance reports whether err is a maintenance-class failure (format or
// obfuscation drift) that requires a software update rather than a retry.
func IsMaintenance(err error) bool {
	var pe *ParseError
	var se *SignatureError
	return errors.As(err, &pe) || errors.As(err, &se)
}
