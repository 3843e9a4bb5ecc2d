package innertube

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	neturl "net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ytgrab/ytgrab/internal/types"
)

// FetcherConfig tunes metadata fetching.
type FetcherConfig struct {
	// BaseURL overrides the platform host, primarily for tests.
	// Default: https://<profile.Host>.
	BaseURL string

	// ClientOrder is the profile trial order. Default: DefaultClientOrder.
	ClientOrder []string

	// RetryBackoff is the fixed delay before the single transient-network
	// retry. Default 500ms. Higher-level retry policy is the caller's
	// concern.
	RetryBackoff time.Duration
}

// Fetcher retrieves raw player metadata for a video identifier.
type Fetcher struct {
	client   *http.Client
	registry Registry
	config   FetcherConfig
}

func NewFetcher(client *http.Client, registry Registry, config FetcherConfig) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if registry == nil {
		registry = NewRegistry()
	}
	if len(config.ClientOrder) == 0 {
		config.ClientOrder = DefaultClientOrder
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = 500 * time.Millisecond
	}
	return &Fetcher{client: client, registry: registry, config: config}
}

// Fetch posts a player request for each configured profile in order and
// returns the first playable response. Platform-reported conditions
// (unavailable, throttled) surface as typed errors; transport failures get
// one fixed-backoff retry per profile.
func (f *Fetcher) Fetch(ctx context.Context, videoID string) (*PlayerResponse, error) {
	var lastErr error
	for _, alias := range f.config.ClientOrder {
		profile, ok := f.registry.Get(strings.ToLower(strings.TrimSpace(alias)))
		if !ok {
			continue
		}
		resp, err := f.fetchWithProfile(ctx, profile, videoID)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		// Platform verdicts are the same for every profile; do not burn
		// requests confirming them.
		if errors.Is(err, types.ErrNotFound) || errors.Is(err, types.ErrRateLimited) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, &types.NetworkError{Op: "metadata fetch", Err: ctx.Err()}
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, &types.NetworkError{Op: "metadata fetch", Err: errors.New("no client profiles configured")}
}

func (f *Fetcher) fetchWithProfile(ctx context.Context, profile ClientProfile, videoID string) (*PlayerResponse, error) {
	resp, err := f.fetchOnce(ctx, profile, videoID)
	var netErr *types.NetworkError
	if err != nil && errors.As(err, &netErr) && ctx.Err() == nil {
		timer := time.NewTimer(f.config.RetryBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &types.NetworkError{Op: "metadata fetch", Err: ctx.Err()}
		case <-timer.C:
		}
		resp, err = f.fetchOnce(ctx, profile, videoID)
	}
	return resp, err
}

func (f *Fetcher) fetchOnce(ctx context.Context, profile ClientProfile, videoID string) (*PlayerResponse, error) {
	endpoint := f.playerEndpoint(profile)

	body, err := MarshalRequest(NewPlayerRequest(profile, videoID))
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", profile.UserAgent)
	req.Header.Set("Origin", "https://"+profile.Host)
	if profile.ContextNameID > 0 {
		req.Header.Set("X-Youtube-Client-Name", strconv.Itoa(profile.ContextNameID))
		req.Header.Set("X-Youtube-Client-Version", profile.Version)
	}
	for k, vals := range profile.Headers {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &types.NetworkError{Op: "metadata fetch", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, types.ErrRateLimited
	case resp.StatusCode == http.StatusNotFound:
		return nil, &types.NotFoundError{VideoID: videoID, Status: "HTTP_404"}
	case resp.StatusCode != http.StatusOK:
		return nil, &types.NetworkError{Op: "metadata fetch", Err: errors.New("unexpected status " + resp.Status)}
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &types.NetworkError{Op: "metadata fetch", Err: err}
	}

	var playerResp PlayerResponse
	if err := json.Unmarshal(respBody, &playerResp); err != nil {
		return nil, &types.ParseError{Anchor: "playerResponse"}
	}

	if !playerResp.PlayabilityStatus.IsOK() {
		return nil, &types.NotFoundError{
			VideoID: videoID,
			Status:  playerResp.PlayabilityStatus.Status,
			Reason:  playerResp.PlayabilityStatus.Reason,
		}
	}

	return &playerResp, nil
}

func (f *Fetcher) playerEndpoint(profile ClientProfile) string {
	base := f.config.BaseURL
	if base == "" {
		base = "https://" + profile.Host
	}
	endpoint := strings.TrimRight(base, "/") + "/youtubei/v1/player"
	if profile.APIKey != "" {
		endpoint += "?key=" + neturl.QueryEscape(profile.APIKey) + "&prettyPrint=false"
	}
	return endpoint
}
