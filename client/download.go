package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ytgrab/ytgrab/internal/downloader"
	"github.com/ytgrab/ytgrab/internal/selector"
)

// Progress and Summary are re-exported transfer reports.
type (
	Progress = downloader.Progress
	Summary  = downloader.Summary
)

// DownloadOptions controls stream choice and output placement.
type DownloadOptions struct {
	// Kind filters candidate streams; KindBestAvailable by default.
	Kind StreamKind
	// Quality constrains candidates, e.g. a bitrate cap.
	Quality QualityPref
	// Itag pins an exact stream and bypasses selection.
	Itag int
	// OutputPath defaults to "<videoID>-<itag><ext>" in the working
	// directory.
	OutputPath string
	// Resume continues a previous partial download of the same output
	// file via a range request.
	Resume     bool
	OnProgress func(Progress)
}

// DownloadResult describes a finished download.
type DownloadResult struct {
	VideoID    string
	Itag       int
	OutputPath string
	Summary    Summary
}

// Download runs the whole pipeline: metadata, resolution, selection, then a
// streaming transfer to a local file. A cancelled transfer returns a result
// with Summary.Cancelled set and keeps the partial file for a later Resume.
func (c *Client) Download(ctx context.Context, input string, options DownloadOptions) (*DownloadResult, error) {
	videoID, err := ExtractVideoID(input)
	if err != nil {
		return nil, err
	}

	stream, err := c.pickStream(ctx, videoID, options)
	if err != nil {
		return nil, err
	}

	outputPath := options.OutputPath
	if outputPath == "" {
		outputPath = defaultOutputPath(videoID, stream)
	}

	summary, err := c.downloadToFile(ctx, stream, outputPath, options)
	if err != nil {
		return nil, err
	}
	return &DownloadResult{
		VideoID:    videoID,
		Itag:       stream.Itag,
		OutputPath: outputPath,
		Summary:    summary,
	}, nil
}

// DownloadStream copies one already resolved stream to w.
func (c *Client) DownloadStream(ctx context.Context, stream ResolvedStream, w io.Writer, onProgress func(Progress)) (Summary, error) {
	if !stream.ExpiresAt.IsZero() && time.Now().After(stream.ExpiresAt) {
		c.logger.Warnf("itag %d: stream URL expired at %s, transfer may be refused", stream.Itag, stream.ExpiresAt.Format(time.RFC3339))
	}
	return c.transfers.Download(ctx, stream, w, downloader.Options{
		ChunkSize:        c.config.ChunkSize,
		ProgressInterval: c.config.ProgressInterval,
		StallTimeout:     c.config.StallTimeout,
		ExpiryMargin:     c.config.effectiveExpiryMargin(),
		Headers:          c.config.RequestHeaders,
		OnProgress:       onProgress,
	})
}

func (c *Client) pickStream(ctx context.Context, videoID string, options DownloadOptions) (ResolvedStream, error) {
	fetchCtx, cancel := withDefaultTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	streams, err := c.resolveStreams(fetchCtx, videoID)
	if err != nil {
		return ResolvedStream{}, err
	}

	if options.Itag != 0 {
		for _, s := range streams {
			if s.Itag == options.Itag {
				return s, nil
			}
		}
		return ResolvedStream{}, fmt.Errorf("itag %d not offered for %s: %w", options.Itag, videoID, ErrNoSuitableStream)
	}
	return selector.Select(streams, options.Kind, options.Quality)
}

func (c *Client) downloadToFile(ctx context.Context, stream ResolvedStream, path string, options DownloadOptions) (Summary, error) {
	var startOffset int64
	flags := os.O_CREATE | os.O_WRONLY
	if options.Resume {
		if st, err := os.Stat(path); err == nil {
			startOffset = st.Size()
		}
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	if stream.ContentLength != LengthUnknown && startOffset > 0 {
		if startOffset == stream.ContentLength {
			// Nothing left to transfer.
			return Summary{Resumed: true}, nil
		}
		if startOffset > stream.ContentLength {
			c.logger.Warnf("partial file %s is larger than the stream (%d > %d bytes), restarting", path, startOffset, stream.ContentLength)
			startOffset = 0
			flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
		}
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return Summary{}, err
	}

	summary, dlErr := c.transfers.Download(ctx, stream, f, downloader.Options{
		ChunkSize:        c.config.ChunkSize,
		ProgressInterval: c.config.ProgressInterval,
		StallTimeout:     c.config.StallTimeout,
		StartOffset:      startOffset,
		ExpiryMargin:     c.config.effectiveExpiryMargin(),
		Headers:          c.config.RequestHeaders,
		OnProgress:       options.OnProgress,
	})
	closeErr := f.Close()
	if dlErr != nil {
		// Keep the partial file; a later Resume can continue it.
		return summary, dlErr
	}
	if closeErr != nil {
		return summary, closeErr
	}
	if summary.ExpiryApproached {
		c.logger.Warnf("itag %d: stream URL was close to expiry at completion", stream.Itag)
	}
	return summary, nil
}

func defaultOutputPath(videoID string, stream ResolvedStream) string {
	return videoID + "-" + strconv.Itoa(stream.Itag) + extensionFor(stream.MimeType)
}

func extensionFor(mimeType string) string {
	mt := strings.ToLower(mimeType)
	switch {
	case strings.HasPrefix(mt, "audio/mp4"):
		return ".m4a"
	case strings.HasPrefix(mt, "video/mp4"):
		return ".mp4"
	case strings.HasPrefix(mt, "audio/webm"), strings.HasPrefix(mt, "video/webm"):
		return ".webm"
	case strings.HasPrefix(mt, "video/3gpp"):
		return ".3gp"
	default:
		return ".bin"
	}
}

// fallbackToBestAvailable reports whether an audio-only miss should retry
// with the full candidate set.
func fallbackToBestAvailable(err error) bool {
	return errors.Is(err, ErrNoSuitableStream)
}
