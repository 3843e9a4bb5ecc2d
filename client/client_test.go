package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/ytgrab/ytgrab/internal/innertube"
)

const testVideoID = "dQw4w9WgXcQ"

// Synthetic player build: signature pipeline reverse, swap(1), splice(2);
// throttle transform reverses the value.
const testPlayerJS = `var _yt_player={};(function(g){
var Xq={kW:function(a){a.reverse()},
t9:function(a,b){a.splice(0,b)},
zx:function(a,b){var c=a[0];a[0]=a[b%a.length];a[b%a.length]=c}};
var dec=function(a){a=a.split("");Xq.kW(a,3);Xq.zx(a,1);Xq.t9(a,2);return a.join("")};
var nTr=function(a){return a.split("").reverse().join("")};
g.u=function(c,b){c.get("n"))&&(b=nTr(b)};
})(_yt_player);
`

const corruptPlayerJS = `var _yt_player={};(function(g){
g.init=function(a){return a};
})(_yt_player);
`

// fakePlatform serves the player endpoint, the watch page, player JS and a
// range-capable CDN.
type fakePlatform struct {
	srv      *httptest.Server
	playerJS string
	response innertube.PlayerResponse
	payloads map[string][]byte
}

func newFakePlatform(t *testing.T) *fakePlatform {
	t.Helper()
	p := &fakePlatform{
		playerJS: testPlayerJS,
		payloads: map[string][]byte{},
	}
	p.srv = httptest.NewServer(http.HandlerFunc(p.handle))
	t.Cleanup(p.srv.Close)
	return p
}

func (p *fakePlatform) handle(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/youtubei/v1/player":
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, p.response)
	case r.URL.Path == "/watch":
		w.Write([]byte(`<script src="/s/player/abc123/player_ias.vflset/en_US/base.js"></script>`))
	case filepath.Ext(r.URL.Path) == ".js":
		w.Write([]byte(p.playerJS))
	case r.URL.Path == "/videoplayback":
		p.serveMedia(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (p *fakePlatform) serveMedia(w http.ResponseWriter, r *http.Request) {
	payload, ok := p.payloads[r.URL.Query().Get("src")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Accept-Ranges", "bytes")
	if rng := r.Header.Get("Range"); rng != "" {
		var off int64
		if _, err := fmt.Sscanf(rng, "bytes=%d-", &off); err != nil || off >= int64(len(payload)) {
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", off, len(payload)-1, len(payload)))
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)-int(off)))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(payload[off:])
		return
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	w.Write(payload)
}

func (p *fakePlatform) mediaURL(src string) string {
	return p.srv.URL + "/videoplayback?src=" + src + "&n=abc123"
}

func (p *fakePlatform) cipherFor(src string) string {
	v := url.Values{}
	v.Set("s", "abcdefg")
	v.Set("sp", "sig")
	v.Set("url", p.mediaURL(src))
	return v.Encode()
}

func (p *fakePlatform) client(extra ...func(*Config)) *Client {
	cfg := Config{
		HTTPClient:       p.srv.Client(),
		InnertubeBaseURL: p.srv.URL,
		WatchBaseURL:     p.srv.URL,
	}
	for _, fn := range extra {
		fn(&cfg)
	}
	return New(cfg)
}

func writeJSON(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func mediaBytes(n int, seed byte) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = seed + byte(i%7)
	}
	return buf
}

// standardResponse offers a muxed mp4 (itag 18) and an audio-only m4a
// (itag 140), both with direct URLs.
func (p *fakePlatform) standardResponse() {
	audio := mediaBytes(96*1024, 3)
	video := mediaBytes(160*1024, 9)
	p.payloads["audio"] = audio
	p.payloads["muxed"] = video
	p.response = innertube.PlayerResponse{
		PlayabilityStatus: innertube.PlayabilityStatus{Status: "OK"},
		VideoDetails: innertube.VideoDetails{
			VideoID:       testVideoID,
			Title:         "Test Video",
			Author:        "Test Channel",
			LengthSeconds: "212",
		},
		StreamingData: innertube.StreamingData{
			ExpiresInSeconds: "21540",
			Formats: []innertube.Format{{
				Itag:          18,
				URL:           p.mediaURL("muxed"),
				MimeType:      `video/mp4; codecs="avc1.42001E, mp4a.40.2"`,
				Bitrate:       568_000,
				ContentLength: strconv.Itoa(len(video)),
				Quality:       "medium",
			}},
			AdaptiveFormats: []innertube.Format{{
				Itag:          140,
				URL:           p.mediaURL("audio"),
				MimeType:      `audio/mp4; codecs="mp4a.40.2"`,
				Bitrate:       128_000,
				ContentLength: strconv.Itoa(len(audio)),
				AudioQuality:  "AUDIO_QUALITY_MEDIUM",
			}},
		},
	}
}

func TestVideoMetadata(t *testing.T) {
	p := newFakePlatform(t)
	p.standardResponse()
	c := p.client()

	info, err := c.Video(context.Background(), testVideoID)
	if err != nil {
		t.Fatalf("Video: %v", err)
	}
	if info.Title != "Test Video" || info.Author != "Test Channel" {
		t.Fatalf("meta = %q / %q, want Test Video / Test Channel", info.Title, info.Author)
	}
	if info.Duration != 212*time.Second {
		t.Fatalf("Duration = %v, want 212s", info.Duration)
	}
	if len(info.Streams) != 2 {
		t.Fatalf("len(Streams) = %d, want 2", len(info.Streams))
	}
	if info.URLValidity != 21540*time.Second {
		t.Fatalf("URLValidity = %v, want 21540s", info.URLValidity)
	}
}

func TestVideoAcceptsWatchURL(t *testing.T) {
	p := newFakePlatform(t)
	p.standardResponse()
	c := p.client()

	info, err := c.Video(context.Background(), "https://www.youtube.com/watch?v="+testVideoID)
	if err != nil {
		t.Fatalf("Video: %v", err)
	}
	if info.ID != testVideoID {
		t.Fatalf("ID = %q, want %q", info.ID, testVideoID)
	}
}

func TestVideoInvalidInput(t *testing.T) {
	p := newFakePlatform(t)
	p.standardResponse()
	c := p.client()

	if _, err := c.Video(context.Background(), "definitely not a video"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("error = %v, want ErrInvalidInput", err)
	}
}

func TestDownloadAudioOnlyPicksAudioTrack(t *testing.T) {
	p := newFakePlatform(t)
	p.standardResponse()
	c := p.client()

	out := filepath.Join(t.TempDir(), "audio.m4a")
	res, err := c.Download(context.Background(), testVideoID, DownloadOptions{
		Kind:       KindAudioOnly,
		OutputPath: out,
	})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	// The muxed itag 18 carries more total bitrate; audio-only must still
	// pick the pure audio track.
	if res.Itag != 140 {
		t.Fatalf("Itag = %d, want 140", res.Itag)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if len(got) != len(p.payloads["audio"]) {
		t.Fatalf("output size = %d, want %d", len(got), len(p.payloads["audio"]))
	}
	if res.Summary.TotalBytes != int64(len(got)) {
		t.Fatalf("Summary.TotalBytes = %d, want %d", res.Summary.TotalBytes, len(got))
	}
}

func TestDownloadBestAvailablePicksMuxed(t *testing.T) {
	p := newFakePlatform(t)
	p.standardResponse()
	c := p.client()

	out := filepath.Join(t.TempDir(), "best.mp4")
	res, err := c.Download(context.Background(), testVideoID, DownloadOptions{OutputPath: out})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if res.Itag != 18 {
		t.Fatalf("Itag = %d, want 18", res.Itag)
	}
}

func TestDownloadFlagsNearExpiryURL(t *testing.T) {
	t.Run("lifetime inside default margin", func(t *testing.T) {
		p := newFakePlatform(t)
		p.standardResponse()
		p.response.StreamingData.ExpiresInSeconds = "30"
		c := p.client()

		out := filepath.Join(t.TempDir(), "near.mp4")
		res, err := c.Download(context.Background(), testVideoID, DownloadOptions{Itag: 18, OutputPath: out})
		if err != nil {
			t.Fatalf("Download: %v", err)
		}
		if !res.Summary.ExpiryApproached {
			t.Fatal("Summary.ExpiryApproached = false, want true for a URL expiring in 30s")
		}
	})

	t.Run("hours of lifetime left", func(t *testing.T) {
		p := newFakePlatform(t)
		p.standardResponse()
		c := p.client()

		out := filepath.Join(t.TempDir(), "fresh.mp4")
		res, err := c.Download(context.Background(), testVideoID, DownloadOptions{Itag: 18, OutputPath: out})
		if err != nil {
			t.Fatalf("Download: %v", err)
		}
		if res.Summary.ExpiryApproached {
			t.Fatal("Summary.ExpiryApproached = true for a URL with hours of lifetime left")
		}
	})
}

func TestResolveCipheredStreams(t *testing.T) {
	p := newFakePlatform(t)
	p.standardResponse()
	// Replace direct URLs with ciphered variants across the board.
	for i := range p.response.StreamingData.Formats {
		f := &p.response.StreamingData.Formats[i]
		f.SignatureCipher = p.cipherFor("muxed")
		f.URL = ""
	}
	for i := range p.response.StreamingData.AdaptiveFormats {
		f := &p.response.StreamingData.AdaptiveFormats[i]
		f.SignatureCipher = p.cipherFor("audio")
		f.URL = ""
	}
	c := p.client()

	streams, err := c.Resolve(context.Background(), testVideoID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(streams) != 2 {
		t.Fatalf("len(streams) = %d, want 2", len(streams))
	}
	for _, s := range streams {
		u, err := url.Parse(s.StreamURL)
		if err != nil {
			t.Fatalf("itag %d: bad URL: %v", s.Itag, err)
		}
		if got := u.Query().Get("sig"); got != "edcba" {
			t.Fatalf("itag %d: sig = %q, want edcba", s.Itag, got)
		}
		if got := u.Query().Get("n"); got != "321cba" {
			t.Fatalf("itag %d: n = %q, want decoded 321cba", s.Itag, got)
		}
	}
}

func TestResolveCorruptedCipherSignalsMaintenance(t *testing.T) {
	p := newFakePlatform(t)
	p.standardResponse()
	p.playerJS = corruptPlayerJS
	for i := range p.response.StreamingData.Formats {
		p.response.StreamingData.Formats[i].SignatureCipher = p.cipherFor("muxed")
		p.response.StreamingData.Formats[i].URL = ""
	}
	for i := range p.response.StreamingData.AdaptiveFormats {
		p.response.StreamingData.AdaptiveFormats[i].SignatureCipher = p.cipherFor("audio")
		p.response.StreamingData.AdaptiveFormats[i].URL = ""
	}
	c := p.client()

	_, err := c.Resolve(context.Background(), testVideoID)
	var sigErr *SignatureError
	if !errors.As(err, &sigErr) {
		t.Fatalf("error = %v, want *SignatureError", err)
	}
	if !IsMaintenance(err) {
		t.Fatal("corrupted cipher should be reported as a maintenance signal")
	}
}

func TestDownloadResumeFromPartialFile(t *testing.T) {
	p := newFakePlatform(t)
	p.standardResponse()
	c := p.client()

	payload := p.payloads["audio"]
	out := filepath.Join(t.TempDir(), "resume.m4a")
	if err := os.WriteFile(out, payload[:len(payload)/2], 0o644); err != nil {
		t.Fatalf("seed partial file: %v", err)
	}

	res, err := c.Download(context.Background(), testVideoID, DownloadOptions{
		Itag:       140,
		OutputPath: out,
		Resume:     true,
	})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if !res.Summary.Resumed {
		t.Fatal("Summary.Resumed = false, want true")
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if len(got) != len(payload) {
		t.Fatalf("output size = %d, want %d", len(got), len(payload))
	}
	if res.Summary.TotalBytes != int64(len(payload)-len(payload)/2) {
		t.Fatalf("TotalBytes = %d, want %d transferred", res.Summary.TotalBytes, len(payload)-len(payload)/2)
	}
}

func TestDownloadUnknownItag(t *testing.T) {
	p := newFakePlatform(t)
	p.standardResponse()
	c := p.client()

	_, err := c.Download(context.Background(), testVideoID, DownloadOptions{Itag: 999})
	if !errors.Is(err, ErrNoSuitableStream) {
		t.Fatalf("error = %v, want ErrNoSuitableStream", err)
	}
}

func TestVideoUnavailable(t *testing.T) {
	p := newFakePlatform(t)
	p.standardResponse()
	p.response = innertube.PlayerResponse{
		PlayabilityStatus: innertube.PlayabilityStatus{Status: "ERROR", Reason: "Video unavailable"},
	}
	c := p.client()

	_, err := c.Video(context.Background(), testVideoID)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error = %T, want *NotFoundError", err)
	}
	if nf.Reason != "Video unavailable" {
		t.Fatalf("Reason = %q, want Video unavailable", nf.Reason)
	}
}

type stubConverter struct {
	available error
	inPath    string
	outPath   string
}

func (s *stubConverter) Available() error { return s.available }

func (s *stubConverter) ExtractAudio(ctx context.Context, inputPath, outputPath string, opts AudioOptions) error {
	s.inPath = inputPath
	s.outPath = outputPath
	return os.WriteFile(outputPath, []byte("flac"), 0o644)
}

func TestExtractAudio(t *testing.T) {
	p := newFakePlatform(t)
	p.standardResponse()
	conv := &stubConverter{}
	c := p.client(func(cfg *Config) { cfg.AudioConverter = conv })

	out := filepath.Join(t.TempDir(), "song.flac")
	res, err := c.ExtractAudio(context.Background(), testVideoID, ExtractAudioOptions{OutputPath: out})
	if err != nil {
		t.Fatalf("ExtractAudio: %v", err)
	}
	if res.Itag != 140 {
		t.Fatalf("Itag = %d, want audio-only 140", res.Itag)
	}
	if res.OutputPath != out {
		t.Fatalf("OutputPath = %q, want %q", res.OutputPath, out)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("converted output missing: %v", err)
	}
	if _, err := os.Stat(conv.inPath); !os.IsNotExist(err) {
		t.Fatalf("source file %s should be removed after conversion", conv.inPath)
	}
}

func TestExtractAudioRequiresConverter(t *testing.T) {
	p := newFakePlatform(t)
	p.standardResponse()
	c := p.client()

	if _, err := c.ExtractAudio(context.Background(), testVideoID, ExtractAudioOptions{}); !errors.Is(err, ErrAudioConverterNotConfigured) {
		t.Fatalf("error = %v, want ErrAudioConverterNotConfigured", err)
	}
}

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: testVideoID, want: testVideoID},
		{in: "https://www.youtube.com/watch?v=" + testVideoID, want: testVideoID},
		{in: "https://youtu.be/" + testVideoID, want: testVideoID},
		{in: "https://www.youtube.com/shorts/" + testVideoID, want: testVideoID},
		{in: "", wantErr: true},
		{in: "tooshort", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ExtractVideoID(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("ExtractVideoID(%q) error = %v, want ErrInvalidInput", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ExtractVideoID(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ExtractVideoID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
