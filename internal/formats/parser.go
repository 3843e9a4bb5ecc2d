package formats

import (
	"fmt"
	"mime"
	"strconv"
	"strings"
	"time"

	"github.com/ytgrab/ytgrab/internal/innertube"
	"github.com/ytgrab/ytgrab/internal/types"
)

// Parse extracts stream descriptors from a player response. The payload is
// treated as semi-structured: each field is looked up independently so a new
// platform field never breaks parsing, while a missing structural anchor
// produces a ParseError naming exactly what was lost.
func Parse(resp *innertube.PlayerResponse) ([]types.StreamDescriptor, error) {
	if resp == nil {
		return nil, &types.ParseError{Anchor: "playerResponse"}
	}
	sd := resp.StreamingData
	if len(sd.Formats) == 0 && len(sd.AdaptiveFormats) == 0 {
		return nil, &types.ParseError{Anchor: "streamingData.formats"}
	}

	descriptors := make([]types.StreamDescriptor, 0, len(sd.Formats)+len(sd.AdaptiveFormats))

	appendRaw := func(raw []innertube.Format, anchor string) error {
		for i, f := range raw {
			d, err := parseFormat(f, fmt.Sprintf("%s[%d]", anchor, i))
			if err != nil {
				return err
			}
			// Duplicate itags are kept: selection decides later, and
			// silent deduplication would hide platform quirks.
			descriptors = append(descriptors, d)
		}
		return nil
	}

	if err := appendRaw(sd.Formats, "streamingData.formats"); err != nil {
		return nil, err
	}
	if err := appendRaw(sd.AdaptiveFormats, "streamingData.adaptiveFormats"); err != nil {
		return nil, err
	}

	return descriptors, nil
}

// ExpiresIn reports how long the response's stream URLs remain valid, or zero
// when the platform did not say.
func ExpiresIn(resp *innertube.PlayerResponse) time.Duration {
	if resp == nil {
		return 0
	}
	raw := strings.TrimSpace(resp.StreamingData.ExpiresInSeconds)
	if raw == "" {
		return 0
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// Meta extracts the display metadata carried alongside the stream set.
func Meta(resp *innertube.PlayerResponse) types.VideoMeta {
	if resp == nil {
		return types.VideoMeta{}
	}
	meta := types.VideoMeta{
		ID:     resp.VideoDetails.VideoID,
		Title:  resp.VideoDetails.Title,
		Author: resp.VideoDetails.Author,
	}
	if secs, err := strconv.ParseInt(strings.TrimSpace(resp.VideoDetails.LengthSeconds), 10, 64); err == nil && secs > 0 {
		meta.Duration = time.Duration(secs) * time.Second
	}
	return meta
}

func parseFormat(f innertube.Format, anchor string) (types.StreamDescriptor, error) {
	if f.Itag == 0 {
		return types.StreamDescriptor{}, &types.ParseError{Anchor: anchor + ".itag"}
	}
	if strings.TrimSpace(f.MimeType) == "" {
		return types.StreamDescriptor{}, &types.ParseError{Anchor: anchor + ".mimeType"}
	}

	cipher := f.SignatureCipher
	if cipher == "" {
		cipher = f.Cipher
	}
	if f.URL == "" && cipher == "" {
		return types.StreamDescriptor{}, &types.ParseError{Anchor: anchor + ".url"}
	}

	hasAudio, hasVideo := deriveTracks(f.MimeType)

	d := types.StreamDescriptor{
		Itag:            f.Itag,
		MimeType:        f.MimeType,
		URL:             f.URL,
		SignatureCipher: cipher,
		HasAudio:        hasAudio,
		HasVideo:        hasVideo,
		Quality:         f.Quality,
		QualityLabel:    f.QualityLabel,
		AudioChannels:   f.AudioChannels,
		Width:           f.Width,
		Height:          f.Height,
		FPS:             f.FPS,
		Bitrate:         types.BitrateUnknown,
		ContentLength:   types.LengthUnknown,
	}

	// Missing numeric fields stay unknown. Zero would silently corrupt
	// bitrate ranking, so it is never substituted.
	switch {
	case f.AverageBitrate > 0:
		d.Bitrate = f.AverageBitrate
	case f.Bitrate > 0:
		d.Bitrate = f.Bitrate
	}
	if f.ContentLength != "" {
		if n, err := strconv.ParseInt(f.ContentLength, 10, 64); err == nil && n > 0 {
			d.ContentLength = n
		}
	}
	if f.AudioSampleRate != "" {
		d.AudioSampleRate, _ = strconv.Atoi(f.AudioSampleRate)
	}

	return d, nil
}

// deriveTracks decides audio/video presence from the mime type. The top-level
// type names the primary track; a muxed stream declares both codecs, e.g.
// `video/mp4; codecs="avc1.64001F, mp4a.40.2"`.
func deriveTracks(mimeType string) (hasAudio, hasVideo bool) {
	mediaType, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
	}

	switch {
	case strings.HasPrefix(mediaType, "audio/"):
		hasAudio = true
	case strings.HasPrefix(mediaType, "video/"):
		hasVideo = true
	}

	for _, codec := range strings.Split(params["codecs"], ",") {
		codec = strings.ToLower(strings.TrimSpace(codec))
		switch {
		case codec == "":
		case isAudioCodec(codec):
			hasAudio = true
		default:
			hasVideo = true
		}
	}
	return hasAudio, hasVideo
}

func isAudioCodec(codec string) bool {
	for _, prefix := range []string{"mp4a", "opus", "vorbis", "ac-3", "ec-3", "flac"} {
		if strings.HasPrefix(codec, prefix) {
			return true
		}
	}
	return false
}
