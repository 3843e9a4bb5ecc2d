package client

import (
	"context"
	"sync"
	"time"

	"github.com/ytgrab/ytgrab/internal/downloader"
	"github.com/ytgrab/ytgrab/internal/formats"
	"github.com/ytgrab/ytgrab/internal/innertube"
	"github.com/ytgrab/ytgrab/internal/playerjs"
	"github.com/ytgrab/ytgrab/internal/selector"
)

// Client is the high-level stream resolution and download client.
type Client struct {
	config     Config
	fetcher    *innertube.Fetcher
	signatures *playerjs.SignatureResolver
	transfers  *downloader.Downloader
	logger     Logger

	sessionsMu sync.RWMutex
	sessions   map[string]*videoSession
}

type videoSession struct {
	info *VideoInfo
}

// sessionMargin keeps cached metadata from being served right at the edge of
// its URL validity window.
const sessionMargin = 30 * time.Second

// defaultSessionTTL applies when the platform did not report URL validity.
const defaultSessionTTL = time.Minute

// New creates a client.
func New(config Config) *Client {
	if config.HTTPClient == nil {
		config.HTTPClient = defaultHTTPClient(config.ProxyURL)
	}
	logger := config.Logger
	if logger == nil {
		logger = nopLogger{}
	}

	fetcher := innertube.NewFetcher(config.HTTPClient, innertube.NewRegistry(), innertube.FetcherConfig{
		BaseURL:     config.InnertubeBaseURL,
		ClientOrder: config.ClientOrder,
	})
	jsResolver := playerjs.NewResolver(config.HTTPClient, playerjs.NewMemoryCache(), playerjs.ResolverConfig{
		BaseURL:         config.WatchBaseURL,
		PreferredLocale: config.PreferredLocale,
	})

	return &Client{
		config:     config,
		fetcher:    fetcher,
		signatures: playerjs.NewSignatureResolver(jsResolver),
		transfers:  downloader.New(config.HTTPClient, config.effectiveTransport()),
		logger:     logger,
		sessions:   make(map[string]*videoSession),
	}
}

// Video fetches and parses metadata for a video id or URL. Results are cached
// for the platform-reported URL validity window.
func (c *Client) Video(ctx context.Context, input string) (*VideoInfo, error) {
	ctx, cancel := withDefaultTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	videoID, err := ExtractVideoID(input)
	if err != nil {
		return nil, err
	}
	info, err := c.videoInfo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	return cloneVideoInfo(info), nil
}

// Resolve fetches metadata and resolves every descriptor to a fetchable URL.
// Descriptors whose resolution fails are dropped with a warning; the first
// failure is returned only when nothing resolved at all.
func (c *Client) Resolve(ctx context.Context, input string) ([]ResolvedStream, error) {
	ctx, cancel := withDefaultTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	videoID, err := ExtractVideoID(input)
	if err != nil {
		return nil, err
	}
	return c.resolveStreams(ctx, videoID)
}

// Select picks the single best stream for kind and pref. Pure and
// deterministic; provided here so callers can re-select from an earlier
// Resolve without a second fetch.
func (c *Client) Select(streams []ResolvedStream, kind StreamKind, pref QualityPref) (ResolvedStream, error) {
	return selector.Select(streams, kind, pref)
}

func (c *Client) videoInfo(ctx context.Context, videoID string) (*VideoInfo, error) {
	c.sessionsMu.RLock()
	session, ok := c.sessions[videoID]
	c.sessionsMu.RUnlock()
	if ok && sessionFresh(session.info) {
		return session.info, nil
	}

	resp, err := c.fetcher.Fetch(ctx, videoID)
	if err != nil {
		return nil, err
	}
	streams, err := formats.Parse(resp)
	if err != nil {
		return nil, err
	}
	meta := formats.Meta(resp)

	info := &VideoInfo{
		ID:          meta.ID,
		Title:       meta.Title,
		Author:      meta.Author,
		Duration:    meta.Duration,
		Streams:     streams,
		URLValidity: formats.ExpiresIn(resp),
		FetchedAt:   time.Now(),
	}
	if info.ID == "" {
		info.ID = videoID
	}

	c.sessionsMu.Lock()
	c.sessions[videoID] = &videoSession{info: info}
	c.sessionsMu.Unlock()
	return info, nil
}

func (c *Client) resolveStreams(ctx context.Context, videoID string) ([]ResolvedStream, error) {
	info, err := c.videoInfo(ctx, videoID)
	if err != nil {
		return nil, err
	}

	resolved := make([]ResolvedStream, 0, len(info.Streams))
	var firstErr error
	for _, d := range info.Streams {
		rs, err := c.signatures.Resolve(ctx, videoID, d)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			c.logger.Warnf("itag %d: resolution failed: %v", d.Itag, err)
			continue
		}
		if rs.ExpiresAt.IsZero() && info.URLValidity > 0 {
			rs.ExpiresAt = info.FetchedAt.Add(info.URLValidity)
		}
		resolved = append(resolved, rs)
	}
	if len(resolved) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return resolved, nil
}

func sessionFresh(info *VideoInfo) bool {
	ttl := info.URLValidity - sessionMargin
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return time.Since(info.FetchedAt) < ttl
}

func cloneVideoInfo(info *VideoInfo) *VideoInfo {
	cp := *info
	cp.Streams = append([]StreamDescriptor(nil), info.Streams...)
	return &cp
}
