package playerjs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/ytgrab/ytgrab/internal/types"
)

// Resolver discovers and fetches the player JS build serving a video.
type Resolver interface {
	PlayerURL(ctx context.Context, videoID string) (string, error)
	PlayerJS(ctx context.Context, playerURL string) (string, error)
}

// ResolverConfig contains externally tunable settings for player JS fetches.
type ResolverConfig struct {
	BaseURL         string
	UserAgent       string
	Headers         http.Header
	PreferredLocale string
}

type httpResolver struct {
	client *http.Client
	cache  Cache
	config ResolverConfig
}

const defaultWatchUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
const defaultPlayerLocale = "en_US"

var (
	playerURLPattern  = regexp.MustCompile(`(/s/player/[A-Za-z0-9_-]+/[A-Za-z0-9._/-]*/base\.js)`)
	playerPathPattern = regexp.MustCompile(`^/s/player/([A-Za-z0-9_-]+)/(.+)$`)
	localePathPattern = regexp.MustCompile(`(?i)(player(?:_[a-z0-9]+)?\.vflset)/[a-z]{2,3}_[a-z]{2,3}/base\.js$`)
	nonAlnumPattern   = regexp.MustCompile(`[^a-zA-Z0-9]+`)
)

func NewResolver(client *http.Client, cache Cache, cfg ResolverConfig) Resolver {
	if client == nil {
		client = http.DefaultClient
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &httpResolver{client: client, cache: cache, config: cfg}
}

// PlayerURL scrapes the watch page for the current player JS path.
func (r *httpResolver) PlayerURL(ctx context.Context, videoID string) (string, error) {
	watchURL := strings.TrimRight(r.baseURL(), "/") + "/watch?v=" + url.QueryEscape(videoID)
	body, err := r.get(ctx, watchURL)
	if err != nil {
		return "", err
	}
	m := playerURLPattern.FindSubmatch(body)
	if len(m) < 2 {
		return "", &types.ParseError{Anchor: "watchPage.playerURL"}
	}
	return string(m[1]), nil
}

// PlayerJS fetches the player script, serving repeat lookups for the same
// build from cache. Localized paths are normalized first so every locale of
// one build shares a cache entry.
func (r *httpResolver) PlayerJS(ctx context.Context, playerURL string) (string, error) {
	normalized := r.normalizePlayerPath(playerURL)
	key := playerCacheKey(normalized)
	if body, ok := r.cache.Get(key); ok {
		return body, nil
	}

	candidates := []string{normalized}
	if playerURL != normalized {
		candidates = append(candidates, playerURL)
	}

	var lastErr error
	for _, candidate := range candidates {
		target := candidate
		if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
			target = strings.TrimRight(r.baseURL(), "/") + candidate
		}
		body, err := r.get(ctx, target)
		if err != nil {
			lastErr = err
			continue
		}
		js := string(body)
		r.cache.Set(key, js)
		return js, nil
	}
	return "", lastErr
}

func (r *httpResolver) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	ua := r.config.UserAgent
	if ua == "" {
		ua = defaultWatchUserAgent
	}
	req.Header.Set("User-Agent", ua)
	for k, values := range r.config.Headers {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &types.NetworkError{Op: "fetch player resource", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &types.NetworkError{Op: "fetch player resource", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &types.NetworkError{Op: "read player resource", Err: err}
	}
	return body, nil
}

func (r *httpResolver) baseURL() string {
	if r.config.BaseURL != "" {
		return r.config.BaseURL
	}
	return "https://www.youtube.com"
}

func (r *httpResolver) normalizePlayerPath(playerURL string) string {
	u, err := url.Parse(playerURL)
	if err == nil && u.Path != "" {
		playerURL = u.Path
	}
	locale := r.config.PreferredLocale
	if locale == "" {
		locale = defaultPlayerLocale
	}
	if localePathPattern.MatchString(playerURL) {
		return localePathPattern.ReplaceAllString(playerURL, "${1}/"+locale+"/base.js")
	}
	return playerURL
}

func playerCacheKey(playerPath string) string {
	m := playerPathPattern.FindStringSubmatch(playerPath)
	if len(m) < 3 {
		return playerPath
	}
	return m[1] + ":" + nonAlnumPattern.ReplaceAllString(m[2], "_")
}
