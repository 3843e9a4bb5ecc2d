package client

import (
	"time"

	"github.com/ytgrab/ytgrab/internal/types"
)

// Core pipeline types, re-exported so callers never import internal packages.
type (
	StreamDescriptor = types.StreamDescriptor
	ResolvedStream   = types.ResolvedStream
	StreamKind       = types.StreamKind
	QualityPref      = types.QualityPref
)

const (
	KindBestAvailable = types.KindBestAvailable
	KindAudioOnly     = types.KindAudioOnly
	KindVideoOnly     = types.KindVideoOnly
	KindMuxed         = types.KindMuxed
)

const (
	BitrateUnknown = types.BitrateUnknown
	LengthUnknown  = types.LengthUnknown
)

// VideoInfo is the parsed metadata for one video.
type VideoInfo struct {
	ID       string
	Title    string
	Author   string
	Duration time.Duration

	// Streams holds every tolerably parsed descriptor, ciphered ones
	// included. Resolution happens separately.
	Streams []StreamDescriptor

	// URLValidity is how long the platform said stream URLs stay
	// fetchable, counted from FetchedAt. Zero when unreported.
	URLValidity time.Duration
	FetchedAt   time.Time
}
