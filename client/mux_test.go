package client

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/ytgrab/ytgrab/internal/innertube"
)

type stubMuxer struct {
	stubConverter
	videoPath string
	audioPath string
	meta      MuxMetadata
}

func (s *stubMuxer) Mux(ctx context.Context, videoPath, audioPath, outputPath string, meta MuxMetadata) error {
	s.videoPath = videoPath
	s.audioPath = audioPath
	s.meta = meta
	return os.WriteFile(outputPath, []byte("merged"), 0o644)
}

// addVideoOnlyTrack extends the standard response with an adaptive
// video-only stream.
func (p *fakePlatform) addVideoOnlyTrack() {
	video := mediaBytes(200*1024, 5)
	p.payloads["videoonly"] = video
	p.response.StreamingData.AdaptiveFormats = append(p.response.StreamingData.AdaptiveFormats, innertube.Format{
		Itag:          137,
		URL:           p.mediaURL("videoonly"),
		MimeType:      `video/mp4; codecs="avc1.640028"`,
		Bitrate:       4_000_000,
		ContentLength: strconv.Itoa(len(video)),
		QualityLabel:  "1080p",
	})
}

func TestDownloadMuxedMergesSeparateTracks(t *testing.T) {
	p := newFakePlatform(t)
	p.standardResponse()
	p.addVideoOnlyTrack()
	mux := &stubMuxer{}
	c := p.client(func(cfg *Config) { cfg.AudioConverter = mux })

	out := filepath.Join(t.TempDir(), "merged.mp4")
	res, err := c.DownloadMuxed(context.Background(), testVideoID, MuxOptions{OutputPath: out})
	if err != nil {
		t.Fatalf("DownloadMuxed: %v", err)
	}
	if res.VideoItag != 137 || res.AudioItag != 140 {
		t.Fatalf("itags = %d+%d, want 137+140", res.VideoItag, res.AudioItag)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("merged output missing: %v", err)
	}
	if mux.meta.Title != "Test Video" || mux.meta.Artist != "Test Channel" {
		t.Fatalf("metadata = %+v, want video title and author", mux.meta)
	}
	for _, track := range []string{mux.videoPath, mux.audioPath} {
		if _, err := os.Stat(track); !os.IsNotExist(err) {
			t.Fatalf("track file %s should be removed after the merge", track)
		}
	}
}

func TestDownloadMuxedKeepSources(t *testing.T) {
	p := newFakePlatform(t)
	p.standardResponse()
	p.addVideoOnlyTrack()
	mux := &stubMuxer{}
	c := p.client(func(cfg *Config) { cfg.AudioConverter = mux })

	out := filepath.Join(t.TempDir(), "merged.mp4")
	if _, err := c.DownloadMuxed(context.Background(), testVideoID, MuxOptions{OutputPath: out, KeepSources: true}); err != nil {
		t.Fatalf("DownloadMuxed: %v", err)
	}
	for _, track := range []string{mux.videoPath, mux.audioPath} {
		if _, err := os.Stat(track); err != nil {
			t.Fatalf("track file %s should be kept: %v", track, err)
		}
	}
}

func TestDownloadMuxedFallsBackToPremuxed(t *testing.T) {
	p := newFakePlatform(t)
	p.standardResponse() // no video-only track offered
	mux := &stubMuxer{}
	c := p.client(func(cfg *Config) { cfg.AudioConverter = mux })

	out := filepath.Join(t.TempDir(), "best.mp4")
	res, err := c.DownloadMuxed(context.Background(), testVideoID, MuxOptions{OutputPath: out})
	if err != nil {
		t.Fatalf("DownloadMuxed: %v", err)
	}
	if res.VideoItag != 18 || res.AudioItag != 18 {
		t.Fatalf("itags = %d+%d, want premuxed 18", res.VideoItag, res.AudioItag)
	}
	if mux.videoPath != "" {
		t.Fatal("fallback must not invoke the muxer")
	}
}

func TestDownloadMuxedRequiresMuxer(t *testing.T) {
	p := newFakePlatform(t)
	p.standardResponse()
	c := p.client(func(cfg *Config) { cfg.AudioConverter = &stubConverter{} })

	_, err := c.DownloadMuxed(context.Background(), testVideoID, MuxOptions{})
	if !errors.Is(err, ErrMuxerNotConfigured) {
		t.Fatalf("error = %v, want ErrMuxerNotConfigured", err)
	}
}
