package formats

import (
	"errors"
	"testing"
	"time"

	"github.com/ytgrab/ytgrab/internal/innertube"
	"github.com/ytgrab/ytgrab/internal/types"
)

func TestParseMixedFormats(t *testing.T) {
	resp := &innertube.PlayerResponse{
		StreamingData: innertube.StreamingData{
			Formats: []innertube.Format{{
				Itag:           18,
				URL:            "https://cdn.example.com/videoplayback?itag=18",
				MimeType:       `video/mp4; codecs="avc1.42001E, mp4a.40.2"`,
				Bitrate:        568_000,
				ContentLength:  "3145728",
				Quality:        "medium",
			}},
			AdaptiveFormats: []innertube.Format{{
				Itag:            140,
				SignatureCipher: "s=abc&sp=sig&url=https%3A%2F%2Fcdn.example.com%2Fvideoplayback",
				MimeType:        `audio/mp4; codecs="mp4a.40.2"`,
				AverageBitrate:  128_000,
				Bitrate:         130_000,
				AudioSampleRate: "44100",
			}},
		},
	}

	streams, err := Parse(resp)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(streams) != 2 {
		t.Fatalf("len(streams) = %d, want 2", len(streams))
	}

	muxed := streams[0]
	if !muxed.HasAudio || !muxed.HasVideo {
		t.Fatalf("itag 18 tracks = audio %v video %v, want both", muxed.HasAudio, muxed.HasVideo)
	}
	if muxed.ContentLength != 3145728 {
		t.Fatalf("itag 18 ContentLength = %d, want 3145728", muxed.ContentLength)
	}
	if muxed.Ciphered() {
		t.Fatal("itag 18 has a direct URL, must not be ciphered")
	}

	audio := streams[1]
	if !audio.HasAudio || audio.HasVideo {
		t.Fatalf("itag 140 tracks = audio %v video %v, want audio only", audio.HasAudio, audio.HasVideo)
	}
	if !audio.Ciphered() {
		t.Fatal("itag 140 carries a cipher, must report Ciphered")
	}
	// averageBitrate wins over bitrate when both are present.
	if audio.Bitrate != 128_000 {
		t.Fatalf("itag 140 Bitrate = %d, want 128000", audio.Bitrate)
	}
	if audio.ContentLength != types.LengthUnknown {
		t.Fatalf("itag 140 ContentLength = %d, want LengthUnknown", audio.ContentLength)
	}
	if audio.AudioSampleRate != 44100 {
		t.Fatalf("itag 140 AudioSampleRate = %d, want 44100", audio.AudioSampleRate)
	}
}

func TestParseUnknownFieldsStayUnknown(t *testing.T) {
	resp := &innertube.PlayerResponse{
		StreamingData: innertube.StreamingData{
			Formats: []innertube.Format{{
				Itag:     22,
				URL:      "https://cdn.example.com/videoplayback?itag=22",
				MimeType: `video/mp4; codecs="avc1, mp4a"`,
			}},
		},
	}
	streams, err := Parse(resp)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if streams[0].Bitrate != types.BitrateUnknown {
		t.Fatalf("Bitrate = %d, want BitrateUnknown", streams[0].Bitrate)
	}
	if streams[0].ContentLength != types.LengthUnknown {
		t.Fatalf("ContentLength = %d, want LengthUnknown", streams[0].ContentLength)
	}
}

func TestParseEmptyStreamSet(t *testing.T) {
	_, err := Parse(&innertube.PlayerResponse{})
	var pe *types.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *types.ParseError", err)
	}
	if pe.Anchor != "streamingData.formats" {
		t.Fatalf("Anchor = %q, want streamingData.formats", pe.Anchor)
	}
}

func TestParseAnchorsNameTheBrokenEntry(t *testing.T) {
	resp := &innertube.PlayerResponse{
		StreamingData: innertube.StreamingData{
			AdaptiveFormats: []innertube.Format{
				{Itag: 140, URL: "https://cdn.example.com/ok", MimeType: "audio/mp4"},
				{Itag: 251, MimeType: "audio/webm"}, // no url, no cipher
			},
		},
	}
	_, err := Parse(resp)
	var pe *types.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *types.ParseError", err)
	}
	if pe.Anchor != "streamingData.adaptiveFormats[1].url" {
		t.Fatalf("Anchor = %q, want streamingData.adaptiveFormats[1].url", pe.Anchor)
	}
}

func TestParseLegacyCipherField(t *testing.T) {
	resp := &innertube.PlayerResponse{
		StreamingData: innertube.StreamingData{
			AdaptiveFormats: []innertube.Format{{
				Itag:     251,
				Cipher:   "s=abc&url=https%3A%2F%2Fcdn.example.com",
				MimeType: `audio/webm; codecs="opus"`,
			}},
		},
	}
	streams, err := Parse(resp)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !streams[0].Ciphered() {
		t.Fatal("legacy cipher field must populate SignatureCipher")
	}
}

func TestParseKeepsDuplicateItags(t *testing.T) {
	f := innertube.Format{Itag: 140, URL: "https://cdn.example.com/a", MimeType: "audio/mp4"}
	resp := &innertube.PlayerResponse{
		StreamingData: innertube.StreamingData{AdaptiveFormats: []innertube.Format{f, f}},
	}
	streams, err := Parse(resp)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(streams) != 2 {
		t.Fatalf("len(streams) = %d, want duplicates kept", len(streams))
	}
}

func TestDeriveTracks(t *testing.T) {
	tests := []struct {
		mime      string
		wantAudio bool
		wantVideo bool
	}{
		{`audio/mp4; codecs="mp4a.40.2"`, true, false},
		{`audio/webm; codecs="opus"`, true, false},
		{`video/mp4; codecs="avc1.640028"`, false, true},
		{`video/mp4; codecs="avc1.42001E, mp4a.40.2"`, true, true},
		{`video/webm; codecs="vp9"`, false, true},
		{`audio/mp4`, true, false},
	}
	for _, tt := range tests {
		gotAudio, gotVideo := deriveTracks(tt.mime)
		if gotAudio != tt.wantAudio || gotVideo != tt.wantVideo {
			t.Fatalf("deriveTracks(%q) = (%v, %v), want (%v, %v)", tt.mime, gotAudio, gotVideo, tt.wantAudio, tt.wantVideo)
		}
	}
}

func TestExpiresIn(t *testing.T) {
	resp := &innertube.PlayerResponse{
		StreamingData: innertube.StreamingData{ExpiresInSeconds: "21540"},
	}
	if got := ExpiresIn(resp); got != 21540*time.Second {
		t.Fatalf("ExpiresIn = %v, want 21540s", got)
	}
	if got := ExpiresIn(&innertube.PlayerResponse{}); got != 0 {
		t.Fatalf("ExpiresIn on empty = %v, want 0", got)
	}
	if got := ExpiresIn(nil); got != 0 {
		t.Fatalf("ExpiresIn(nil) = %v, want 0", got)
	}
}

func TestMeta(t *testing.T) {
	resp := &innertube.PlayerResponse{
		VideoDetails: innertube.VideoDetails{
			VideoID:       "dQw4w9WgXcQ",
			Title:         "Title",
			Author:        "Author",
			LengthSeconds: "212",
		},
	}
	meta := Meta(resp)
	if meta.ID != "dQw4w9WgXcQ" || meta.Title != "Title" || meta.Author != "Author" {
		t.Fatalf("Meta = %+v", meta)
	}
	if meta.Duration != 212*time.Second {
		t.Fatalf("Duration = %v, want 212s", meta.Duration)
	}
}
