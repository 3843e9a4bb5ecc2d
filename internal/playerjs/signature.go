package playerjs

import (
	"context"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/ytgrab/ytgrab/internal/types"
)

// SignatureResolver turns stream descriptors into directly fetchable URLs.
// Player JS is fetched lazily on the first descriptor that actually needs a
// transform, then reused across descriptors of the same video. Safe for
// concurrent use.
type SignatureResolver struct {
	resolver Resolver

	mu          sync.Mutex
	playerURLs  map[string]string      // videoID -> player JS path
	decipherers map[string]*Decipherer // player cache key -> decipherer
	decodedN    map[string]string      // raw n -> decoded n
	knownOutput map[string]bool        // decoded n values seen so far
}

func NewSignatureResolver(resolver Resolver) *SignatureResolver {
	return &SignatureResolver{
		resolver:    resolver,
		playerURLs:  make(map[string]string),
		decipherers: make(map[string]*Decipherer),
		decodedN:    make(map[string]string),
		knownOutput: make(map[string]bool),
	}
}

// Resolve produces a fetchable URL for d. Descriptors that carry a plain URL
// with no throttle parameter pass through without touching the player JS.
// Resolving an already resolved URL again yields the same URL.
func (s *SignatureResolver) Resolve(ctx context.Context, videoID string, d types.StreamDescriptor) (types.ResolvedStream, error) {
	target := d.URL

	if d.Ciphered() {
		deciphered, err := s.resolveCipher(ctx, videoID, d)
		if err != nil {
			return types.ResolvedStream{}, err
		}
		target = deciphered
	} else if target == "" {
		return types.ResolvedStream{}, &types.SignatureError{Itag: d.Itag, Reason: "descriptor has neither URL nor cipher"}
	}

	target, err := s.rewriteThrottleParam(ctx, videoID, d.Itag, target)
	if err != nil {
		return types.ResolvedStream{}, err
	}

	return types.ResolvedStream{
		StreamDescriptor: d,
		StreamURL:        target,
		ExpiresAt:        urlExpiry(target),
	}, nil
}

func (s *SignatureResolver) resolveCipher(ctx context.Context, videoID string, d types.StreamDescriptor) (string, error) {
	values, err := url.ParseQuery(d.SignatureCipher)
	if err != nil {
		return "", &types.SignatureError{Itag: d.Itag, Reason: "malformed cipher query", Err: err}
	}
	rawURL := values.Get("url")
	sig := values.Get("s")
	if rawURL == "" || sig == "" {
		return "", &types.SignatureError{Itag: d.Itag, Reason: "cipher query missing url or s"}
	}

	dec, err := s.deciphererFor(ctx, videoID)
	if err != nil {
		return "", &types.SignatureError{Itag: d.Itag, Reason: "player JS unavailable", Err: err}
	}
	decoded, err := dec.DecipherSignature(sig)
	if err != nil {
		return "", &types.SignatureError{Itag: d.Itag, Reason: "signature transform failed", Err: err}
	}

	sigParam := values.Get("sp")
	if sigParam == "" {
		sigParam = "signature"
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", &types.SignatureError{Itag: d.Itag, Reason: "malformed cipher stream URL", Err: err}
	}
	q := u.Query()
	q.Set(sigParam, decoded)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// rewriteThrottleParam decodes the n query parameter in place. Leaving it
// untouched gets the download throttled to a trickle by the CDN. Values this
// resolver already produced are recognized and left alone so repeat
// resolution is a no-op.
func (s *SignatureResolver) rewriteThrottleParam(ctx context.Context, videoID string, itag int, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", &types.SignatureError{Itag: itag, Reason: "malformed stream URL", Err: err}
	}
	q := u.Query()
	n := q.Get("n")
	if n == "" {
		return rawURL, nil
	}

	s.mu.Lock()
	if s.knownOutput[n] {
		s.mu.Unlock()
		return rawURL, nil
	}
	if decoded, ok := s.decodedN[n]; ok {
		s.mu.Unlock()
		q.Set("n", decoded)
		u.RawQuery = q.Encode()
		return u.String(), nil
	}
	s.mu.Unlock()

	dec, err := s.deciphererFor(ctx, videoID)
	if err != nil {
		return "", &types.SignatureError{Itag: itag, Reason: "player JS unavailable", Err: err}
	}
	decoded, err := dec.DecipherN(n)
	if err != nil {
		return "", &types.SignatureError{Itag: itag, Reason: "throttle transform failed", Err: err}
	}

	s.mu.Lock()
	s.decodedN[n] = decoded
	s.knownOutput[decoded] = true
	s.mu.Unlock()

	q.Set("n", decoded)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *SignatureResolver) deciphererFor(ctx context.Context, videoID string) (*Decipherer, error) {
	s.mu.Lock()
	playerURL, ok := s.playerURLs[videoID]
	s.mu.Unlock()

	if !ok {
		discovered, err := s.resolver.PlayerURL(ctx, videoID)
		if err != nil {
			return nil, err
		}
		playerURL = discovered
		s.mu.Lock()
		s.playerURLs[videoID] = playerURL
		s.mu.Unlock()
	}

	key := playerCacheKey(playerURL)
	s.mu.Lock()
	dec, ok := s.decipherers[key]
	s.mu.Unlock()
	if ok {
		return dec, nil
	}

	jsBody, err := s.resolver.PlayerJS(ctx, playerURL)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.decipherers[key]; ok {
		return existing, nil
	}
	dec = NewDecipherer(jsBody)
	s.decipherers[key] = dec
	return dec, nil
}

func urlExpiry(rawURL string) time.Time {
	u, err := url.Parse(rawURL)
	if err != nil {
		return time.Time{}
	}
	expire := u.Query().Get("expire")
	if expire == "" {
		return time.Time{}
	}
	secs, err := strconv.ParseInt(expire, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(secs, 0)
}
