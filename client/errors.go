package client

import (
	"errors"

	"github.com/ytgrab/ytgrab/internal/types"
)

// Typed failure details surfaced by the pipeline. Inspect with errors.As.
type (
	NetworkError          = types.NetworkError
	NotFoundError         = types.NotFoundError
	ParseError            = types.ParseError
	SignatureError        = types.SignatureError
	NoSuitableStreamError = types.NoSuitableStreamError
	SizeMismatchError     = types.SizeMismatchError
	StallTimeoutError     = types.StallTimeoutError
)

var (
	// ErrInvalidInput reports an input that is neither a video id nor a
	// recognizable video URL.
	ErrInvalidInput = errors.New("invalid video id or url")

	ErrNotFound         = types.ErrNotFound
	ErrRateLimited      = types.ErrRateLimited
	ErrNoSuitableStream = types.ErrNoSuitableStream

	// ErrAudioConverterNotConfigured reports an audio extraction request
	// on a client built without an AudioConverter.
	ErrAudioConverterNotConfigured = errors.New("audio converter not configured")

	// ErrMuxerNotConfigured reports a track merge request on a client whose
	// converter cannot mux.
	ErrMuxerNotConfigured = errors.New("muxer not configured")
)

// IsMaintenance reports whether err indicates platform format or obfuscation
// drift, i.e. this library needs an update rather than the caller a retry.
func IsMaintenance(err error) bool {
	return types.IsMaintenance(err)
}
