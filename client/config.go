package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ytgrab/ytgrab/internal/downloader"
)

// Config tunes the client. The zero value works against the live platform.
type Config struct {
	// HTTPClient serves every request the pipeline makes. Defaults to
	// http.DefaultClient, or a proxied clone when ProxyURL is set.
	HTTPClient *http.Client
	// ProxyURL routes traffic through an HTTP(S) proxy. Ignored when
	// HTTPClient is set explicitly.
	ProxyURL string

	Logger Logger

	// InnertubeBaseURL and WatchBaseURL override platform hosts, primarily
	// for tests.
	InnertubeBaseURL string
	WatchBaseURL     string

	// ClientOrder is the metadata profile trial order, e.g.
	// {"android", "web", "ios"}.
	ClientOrder []string

	// RequestTimeout bounds individual metadata operations. Downloads are
	// bounded by their own context and StallTimeout instead.
	RequestTimeout time.Duration

	// PreferredLocale selects the player JS locale variant.
	PreferredLocale string

	// RequestHeaders are added to every stream download request.
	RequestHeaders http.Header

	// Transport tunes download retry/backoff.
	Transport downloader.TransportConfig
	// ChunkSize is the download read buffer size.
	ChunkSize int
	// ProgressInterval bounds the progress callback rate.
	ProgressInterval time.Duration
	// StallTimeout aborts a transfer when no bytes arrive for the window.
	StallTimeout time.Duration
	// ExpiryMargin flags a transfer summary that finishes with less than
	// this much of the stream URL's lifetime left. Zero selects one minute;
	// negative disables the warning.
	ExpiryMargin time.Duration

	// AudioConverter performs post-download audio extraction. Required
	// only for ExtractAudio.
	AudioConverter AudioConverter
}

const (
	defaultDownloadRetries = 3
	defaultExpiryMargin    = time.Minute
)

func (c Config) effectiveTransport() downloader.TransportConfig {
	t := c.Transport
	if t.MaxRetries == 0 {
		t.MaxRetries = defaultDownloadRetries
	}
	return t
}

func (c Config) effectiveExpiryMargin() time.Duration {
	if c.ExpiryMargin < 0 {
		return 0
	}
	if c.ExpiryMargin == 0 {
		return defaultExpiryMargin
	}
	return c.ExpiryMargin
}

func defaultHTTPClient(proxyURL string) *http.Client {
	if strings.TrimSpace(proxyURL) == "" {
		return http.DefaultClient
	}
	parsed, err := url.Parse(proxyURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return http.DefaultClient
	}
	baseTransport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return http.DefaultClient
	}
	transport := baseTransport.Clone()
	transport.Proxy = http.ProxyURL(parsed)
	return &http.Client{Transport: transport}
}

func withDefaultTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
