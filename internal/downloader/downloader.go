package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ytgrab/ytgrab/internal/types"
)

var (
	// ErrRangeNotSupported reports an origin that ignored a Range request.
	ErrRangeNotSupported = errors.New("range not supported")
	// ErrRangeNotSatisfiable reports a Range request past the end of the
	// resource.
	ErrRangeNotSatisfiable = errors.New("range not satisfiable")
)

const defaultChunkSize = 64 * 1024

// Options controls a single transfer.
type Options struct {
	// ChunkSize is the read buffer size. Reads and writes alternate, so a
	// slow sink backpressures the connection instead of buffering.
	ChunkSize int
	// ProgressInterval bounds the rate of OnProgress callbacks.
	ProgressInterval time.Duration
	// StallTimeout aborts the transfer when no bytes arrive for the whole
	// window. Zero disables the watchdog.
	StallTimeout time.Duration
	// StartOffset resumes the transfer at a byte position within the
	// resource. Requires origin range support.
	StartOffset int64
	// ExpiryMargin flags the summary when the transfer finishes with less
	// than this much of the URL's lifetime left. Zero disables the check.
	ExpiryMargin time.Duration
	Headers      http.Header
	OnProgress   func(Progress)
}

// Summary describes a finished transfer attempt.
type Summary struct {
	// TotalBytes counts bytes written by this call, excluding StartOffset.
	TotalBytes int64
	Elapsed    time.Duration
	// TTFB is the delay until the first body byte; zero if none arrived.
	TTFB       time.Duration
	AverageBps float64
	// Resumed reports that the transfer used range continuation, either
	// from StartOffset or a mid-transfer reconnect.
	Resumed bool
	// Cancelled reports cooperative caller cancellation. The partial
	// output written so far is valid and the error is nil.
	Cancelled bool
	// ExpiryApproached warns that the transfer ended inside the expiry
	// margin of the stream URL. The transfer itself still succeeded.
	ExpiryApproached bool
}

// Downloader streams resolved URLs to a sink with retry, range resumption,
// stall detection and bounded-rate progress reporting.
type Downloader struct {
	client *http.Client
	config effectiveTransportConfig
}

func New(client *http.Client, cfg TransportConfig) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Downloader{client: client, config: normalizeTransportConfig(cfg)}
}

// Download copies the stream body to w. Caller cancellation is not an error:
// the returned Summary has Cancelled set and err is nil. A stall, a size
// mismatch after a clean EOF, or an exhausted retry budget are errors.
func (d *Downloader) Download(ctx context.Context, stream types.ResolvedStream, w io.Writer, opts Options) (Summary, error) {
	start := time.Now()
	expected := stream.ContentLength

	var received atomic.Int64
	runCtx := ctx
	var watchdog *stallWatchdog
	if opts.StallTimeout > 0 {
		var cancel context.CancelCauseFunc
		runCtx, cancel = context.WithCancelCause(ctx)
		watchdog = newStallWatchdog(opts.StallTimeout, &received, cancel)
		defer watchdog.stop()
	}

	remaining := expected
	if expected != types.LengthUnknown {
		remaining = expected - opts.StartOffset
	}
	emitter := newProgressEmitter(opts.OnProgress, opts.ProgressInterval, remaining, start)

	chunk := opts.ChunkSize
	if chunk <= 0 {
		chunk = defaultChunkSize
	}
	buf := make([]byte, chunk)

	var (
		pos      = opts.StartOffset
		wrote    int64
		ttfb     time.Duration
		resumed  = opts.StartOffset > 0
		attempt  = 0
		openedAt time.Time
	)

	summarize := func(cancelled bool) Summary {
		elapsed := time.Since(start)
		s := Summary{
			TotalBytes: wrote,
			Elapsed:    elapsed,
			TTFB:       ttfb,
			Resumed:    resumed,
			Cancelled:  cancelled,
		}
		if elapsed > 0 {
			s.AverageBps = float64(wrote) / elapsed.Seconds()
		}
		if opts.ExpiryMargin > 0 && !stream.ExpiresAt.IsZero() {
			s.ExpiryApproached = time.Until(stream.ExpiresAt) < opts.ExpiryMargin
		}
		return s
	}

	for {
		// TTFB is anchored to the attempt that delivers the first byte so
		// retry backoff does not count against it.
		openedAt = time.Now()
		resp, rangeOK, openErr := d.open(runCtx, stream.StreamURL, pos, opts.Headers)
		if openErr != nil {
			if stallErr, cancelled := classifyInterrupt(runCtx); stallErr != nil {
				return summarize(false), stallErr
			} else if cancelled {
				emitter.emitFinal(wrote)
				return summarize(true), nil
			}
			if errors.Is(openErr, ErrRangeNotSatisfiable) {
				// A satisfied resume offset means there is nothing
				// left to transfer.
				if expected != types.LengthUnknown && pos == expected {
					emitter.emitFinal(wrote)
					return summarize(false), nil
				}
				return summarize(false), &types.NetworkError{Op: "open stream", Err: openErr}
			}
			if errors.Is(openErr, ErrRangeNotSupported) {
				return summarize(false), &types.NetworkError{Op: "open stream", Err: openErr}
			}
			if isRetryableError(openErr, d.config) && attempt < d.config.MaxRetries {
				backoff := d.config.backoffFor(attempt)
				var statusErr *httpStatusError
				if errors.As(openErr, &statusErr) && statusErr.RetryAfter > backoff {
					backoff = statusErr.RetryAfter
				}
				if waitErr := waitBackoff(runCtx, backoff); waitErr != nil {
					if stallErr, cancelled := classifyInterrupt(runCtx); stallErr != nil {
						return summarize(false), stallErr
					} else if cancelled {
						emitter.emitFinal(wrote)
						return summarize(true), nil
					}
					return summarize(false), waitErr
				}
				attempt++
				continue
			}
			return summarize(false), &types.NetworkError{Op: "open stream", Err: openErr}
		}

		copyErr := func() error {
			defer resp.Body.Close()
			for {
				n, readErr := resp.Body.Read(buf)
				if n > 0 {
					if ttfb == 0 {
						ttfb = time.Since(openedAt)
					}
					if watchdog != nil {
						watchdog.reset()
					}
					if _, writeErr := w.Write(buf[:n]); writeErr != nil {
						return &sinkError{err: writeErr}
					}
					pos += int64(n)
					wrote += int64(n)
					received.Store(wrote)
					emitter.maybeEmit(wrote)
				}
				if readErr != nil {
					return readErr
				}
			}
		}()

		if copyErr == io.EOF {
			if expected != types.LengthUnknown && pos != expected {
				emitter.emitFinal(wrote)
				return summarize(false), &types.SizeMismatchError{Expected: expected, Received: pos}
			}
			emitter.emitFinal(wrote)
			return summarize(false), nil
		}

		var sinkErr *sinkError
		if errors.As(copyErr, &sinkErr) {
			return summarize(false), fmt.Errorf("write output: %w", sinkErr.err)
		}

		if stallErr, cancelled := classifyInterrupt(runCtx); stallErr != nil {
			return summarize(false), stallErr
		} else if cancelled {
			emitter.emitFinal(wrote)
			return summarize(true), nil
		}

		// Connection dropped mid-body; continue from the current offset
		// when the origin honors ranges and budget remains.
		if rangeOK && attempt < d.config.MaxRetries {
			attempt++
			resumed = resumed || wrote > 0
			if waitErr := waitBackoff(runCtx, d.config.backoffFor(attempt-1)); waitErr != nil {
				if stallErr, cancelled := classifyInterrupt(runCtx); stallErr != nil {
					return summarize(false), stallErr
				} else if cancelled {
					emitter.emitFinal(wrote)
					return summarize(true), nil
				}
				return summarize(false), waitErr
			}
			continue
		}
		return summarize(false), &types.NetworkError{Op: "read stream", Err: copyErr}
	}
}

func (d *Downloader) open(ctx context.Context, rawURL string, offset int64, headers http.Header) (*http.Response, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, false, err
	}
	applyRequestHeaders(req, headers)
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, false, err
	}
	switch resp.StatusCode {
	case http.StatusPartialContent:
		return resp, true, nil
	case http.StatusOK:
		if offset > 0 {
			resp.Body.Close()
			return nil, false, ErrRangeNotSupported
		}
		rangeOK := strings.EqualFold(strings.TrimSpace(resp.Header.Get("Accept-Ranges")), "bytes")
		return resp, rangeOK, nil
	case http.StatusRequestedRangeNotSatisfiable:
		resp.Body.Close()
		return nil, false, ErrRangeNotSatisfiable
	default:
		status := resp.StatusCode
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		resp.Body.Close()
		return nil, false, &httpStatusError{StatusCode: status, RetryAfter: retryAfter}
	}
}

// classifyInterrupt inspects a cancelled transfer context. A stall watchdog
// firing returns its typed error; anything else is cooperative cancellation.
func classifyInterrupt(ctx context.Context) (*types.StallTimeoutError, bool) {
	if ctx.Err() == nil {
		return nil, false
	}
	cause := context.Cause(ctx)
	var stall *types.StallTimeoutError
	if errors.As(cause, &stall) {
		return stall, false
	}
	return nil, true
}

type sinkError struct {
	err error
}

func (e *sinkError) Error() string { return e.err.Error() }

type stallWatchdog struct {
	window time.Duration
	timer  *time.Timer
}

func newStallWatchdog(window time.Duration, received *atomic.Int64, cancel context.CancelCauseFunc) *stallWatchdog {
	w := &stallWatchdog{window: window}
	w.timer = time.AfterFunc(window, func() {
		cancel(&types.StallTimeoutError{Window: window, Received: received.Load()})
	})
	return w
}

func (w *stallWatchdog) reset() { w.timer.Reset(w.window) }
func (w *stallWatchdog) stop()  { w.timer.Stop() }
