package types

import "time"

// Field sentinels for values the platform omitted. Ranking code must treat
// these as "unknown", never as zero.
const (
	BitrateUnknown = -1
	LengthUnknown  = int64(-1)
)

// StreamDescriptor describes one downloadable encoding of a video.
type StreamDescriptor struct {
	Itag          int
	MimeType      string // container plus codecs, e.g. `audio/mp4; codecs="mp4a.40.2"`
	Bitrate       int    // bits/sec, BitrateUnknown when absent
	ContentLength int64  // bytes, LengthUnknown when absent or streamed

	// URL is set when the platform handed out a directly fetchable URL.
	// SignatureCipher is set instead when the URL is cipher-protected and
	// must go through signature resolution first.
	URL             string
	SignatureCipher string

	HasAudio bool
	HasVideo bool

	Quality         string
	QualityLabel    string
	AudioSampleRate int
	AudioChannels   int
	Width           int
	Height          int
	FPS             int
}

// Ciphered reports whether the descriptor still needs signature resolution.
func (d StreamDescriptor) Ciphered() bool {
	return d.URL == "" && d.SignatureCipher != ""
}

// ResolvedStream is a StreamDescriptor whose URL is directly fetchable.
// Platform URLs are time-limited; ExpiresAt is zero when the platform did not
// report an expiry.
type ResolvedStream struct {
	StreamDescriptor
	StreamURL string
	ExpiresAt time.Time
}

// StreamKind partitions descriptors for selection.
type StreamKind int

const (
	KindBestAvailable StreamKind = iota
	KindAudioOnly
	KindVideoOnly
	KindMuxed
)

func (k StreamKind) String() string {
	switch k {
	case KindAudioOnly:
		return "audio-only"
	case KindVideoOnly:
		return "video-only"
	case KindMuxed:
		return "muxed"
	default:
		return "best-available"
	}
}

// QualityPref constrains selection. MaxBitrate is a hard ceiling in bits/sec;
// zero means no cap.
type QualityPref struct {
	MaxBitrate int
}

// VideoMeta carries the display fields the player response exposes alongside
// the stream set.
type VideoMeta struct {
	ID       string
	Title    string
	Author   string
	Duration time.Duration
}
