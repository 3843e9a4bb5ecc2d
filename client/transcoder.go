package client

import (
	"context"
	"os"

	"github.com/ytgrab/ytgrab/internal/convert"
	"github.com/ytgrab/ytgrab/internal/selector"
)

// AudioOptions shapes extracted audio; see convert.AudioOptions.
type AudioOptions = convert.AudioOptions

// AudioConverter turns a downloaded media file into an audio file.
type AudioConverter interface {
	Available() error
	ExtractAudio(ctx context.Context, inputPath, outputPath string, opts AudioOptions) error
}

// NewFFmpegConverter builds the default external-ffmpeg converter. An empty
// binary means "ffmpeg" on PATH.
func NewFFmpegConverter(binary string) AudioConverter {
	return &convert.FFmpeg{Binary: binary}
}

// ExtractAudioOptions controls the download-then-convert pipeline.
type ExtractAudioOptions struct {
	// OutputPath defaults to "<videoID>.flac".
	OutputPath string
	Audio      AudioOptions
	Quality    QualityPref
	// KeepSource leaves the downloaded media file next to the output
	// instead of deleting it after conversion.
	KeepSource bool
	OnProgress func(Progress)
}

// ExtractAudio downloads the best audio stream and converts it with the
// configured AudioConverter, FLAC by default. When the video offers no pure
// audio track the best available stream is downloaded and its audio track
// extracted.
func (c *Client) ExtractAudio(ctx context.Context, input string, options ExtractAudioOptions) (*DownloadResult, error) {
	if c.config.AudioConverter == nil {
		return nil, ErrAudioConverterNotConfigured
	}
	if err := c.config.AudioConverter.Available(); err != nil {
		return nil, err
	}

	videoID, err := ExtractVideoID(input)
	if err != nil {
		return nil, err
	}

	stream, err := c.pickAudioSource(ctx, videoID, options.Quality)
	if err != nil {
		return nil, err
	}

	outputPath := options.OutputPath
	if outputPath == "" {
		outputPath = videoID + ".flac"
	}
	sourcePath := outputPath + ".source" + extensionFor(stream.MimeType)

	summary, err := c.downloadToFile(ctx, stream, sourcePath, DownloadOptions{OnProgress: options.OnProgress})
	if err != nil {
		return nil, err
	}

	result := &DownloadResult{
		VideoID:    videoID,
		Itag:       stream.Itag,
		OutputPath: outputPath,
		Summary:    summary,
	}
	if summary.Cancelled {
		// No conversion of a truncated source; the partial download
		// stays for a later resume.
		result.OutputPath = sourcePath
		return result, nil
	}

	if err := c.config.AudioConverter.ExtractAudio(ctx, sourcePath, outputPath, options.Audio); err != nil {
		return nil, err
	}
	if !options.KeepSource {
		if err := os.Remove(sourcePath); err != nil {
			c.logger.Warnf("could not remove source file %s: %v", sourcePath, err)
		}
	}
	return result, nil
}

func (c *Client) pickAudioSource(ctx context.Context, videoID string, pref QualityPref) (ResolvedStream, error) {
	fetchCtx, cancel := withDefaultTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	streams, err := c.resolveStreams(fetchCtx, videoID)
	if err != nil {
		return ResolvedStream{}, err
	}
	stream, err := selector.Select(streams, KindAudioOnly, pref)
	if err != nil && fallbackToBestAvailable(err) {
		return selector.Select(streams, KindBestAvailable, pref)
	}
	return stream, err
}
