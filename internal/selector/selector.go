package selector

import (
	"sort"
	"strings"

	"github.com/ytgrab/ytgrab/internal/types"
)

// Select picks the single best stream matching kind and pref. The result is
// deterministic: equal inputs always pick the same stream, with input order
// as the final tie break.
func Select(streams []types.ResolvedStream, kind types.StreamKind, pref types.QualityPref) (types.ResolvedStream, error) {
	candidates := filterKind(streams, kind)

	// Best-available falls back to the whole set when no muxed stream
	// exists, so adaptive-only videos still yield a pick.
	if kind == types.KindBestAvailable && len(candidates) == 0 {
		candidates = append([]types.ResolvedStream(nil), streams...)
	}

	// The cap applies before ranking; a capped request must never pick an
	// over-cap stream just because it ranks first.
	if pref.MaxBitrate > 0 {
		capped := candidates[:0:0]
		for _, s := range candidates {
			if s.Bitrate != types.BitrateUnknown && s.Bitrate <= pref.MaxBitrate {
				capped = append(capped, s)
			}
		}
		candidates = capped
	}

	if len(candidates) == 0 {
		return types.ResolvedStream{}, &types.NoSuitableStreamError{
			Kind:       kind,
			MaxBitrate: pref.MaxBitrate,
			Candidates: len(streams),
		}
	}

	rank(candidates)
	return candidates[0], nil
}

func filterKind(streams []types.ResolvedStream, kind types.StreamKind) []types.ResolvedStream {
	var out []types.ResolvedStream
	for _, s := range streams {
		if matchesKind(s, kind) {
			out = append(out, s)
		}
	}
	return out
}

func matchesKind(s types.ResolvedStream, kind types.StreamKind) bool {
	switch kind {
	case types.KindAudioOnly:
		return s.HasAudio && !s.HasVideo
	case types.KindVideoOnly:
		return s.HasVideo && !s.HasAudio
	case types.KindMuxed, types.KindBestAvailable:
		return s.HasAudio && s.HasVideo
	default:
		return false
	}
}

// rank orders candidates best first: bitrate descending with unknown bitrate
// last, then mp4-family containers before others, then input order.
func rank(candidates []types.ResolvedStream) {
	sort.SliceStable(candidates, func(i, j int) bool {
		bi, bj := candidates[i].Bitrate, candidates[j].Bitrate
		if bi != bj {
			if bi == types.BitrateUnknown {
				return false
			}
			if bj == types.BitrateUnknown {
				return true
			}
			return bi > bj
		}
		pi, pj := containerRank(candidates[i].MimeType), containerRank(candidates[j].MimeType)
		return pi < pj
	})
}

func containerRank(mimeType string) int {
	mt := strings.ToLower(mimeType)
	switch {
	case strings.Contains(mt, "/mp4"):
		return 0
	case strings.Contains(mt, "/webm"):
		return 1
	default:
		return 2
	}
}
