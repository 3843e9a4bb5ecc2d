package client

import (
	"context"
	"os"
	"strconv"

	"github.com/ytgrab/ytgrab/internal/convert"
	"github.com/ytgrab/ytgrab/internal/selector"
)

// MuxMetadata is written into the merged container as tags.
type MuxMetadata = convert.Metadata

// Muxer merges separate video and audio files into one container. The
// default ffmpeg converter implements it.
type Muxer interface {
	Available() error
	Mux(ctx context.Context, videoPath, audioPath, outputPath string, meta MuxMetadata) error
}

// MuxOptions controls the download-both-tracks-then-merge pipeline.
type MuxOptions struct {
	// OutputPath defaults to "<videoID>-<videoItag>+<audioItag><ext>".
	OutputPath string
	Quality    QualityPref
	// KeepSources leaves the downloaded track files next to the output.
	KeepSources bool
	OnProgress  func(Progress)
}

// MuxResult describes a finished merge. When the video offers no separate
// tracks and an already muxed stream was downloaded instead, VideoItag and
// AudioItag are equal.
type MuxResult struct {
	VideoID    string
	VideoItag  int
	AudioItag  int
	OutputPath string
	Video      Summary
	Audio      Summary
}

// DownloadMuxed downloads the best video-only and audio-only streams and
// merges them with the configured converter. Adaptive tracks usually carry
// higher quality than any premuxed stream; when the video offers none, the
// best premuxed stream is downloaded as-is. A cancelled transfer keeps its
// partial track file and reports Cancelled in the matching Summary.
func (c *Client) DownloadMuxed(ctx context.Context, input string, options MuxOptions) (*MuxResult, error) {
	muxer, ok := c.config.AudioConverter.(Muxer)
	if !ok {
		return nil, ErrMuxerNotConfigured
	}
	if err := muxer.Available(); err != nil {
		return nil, err
	}

	videoID, err := ExtractVideoID(input)
	if err != nil {
		return nil, err
	}

	fetchCtx, cancel := withDefaultTimeout(ctx, c.config.RequestTimeout)
	info, infoErr := c.videoInfo(fetchCtx, videoID)
	streams, err := c.resolveStreams(fetchCtx, videoID)
	cancel()
	if err != nil {
		return nil, err
	}
	if infoErr != nil {
		info = &VideoInfo{ID: videoID}
	}

	video, err := selector.Select(streams, KindVideoOnly, options.Quality)
	if err != nil && fallbackToBestAvailable(err) {
		return c.muxFallback(ctx, videoID, options)
	}
	if err != nil {
		return nil, err
	}
	audio, err := selector.Select(streams, KindAudioOnly, options.Quality)
	if err != nil && fallbackToBestAvailable(err) {
		return c.muxFallback(ctx, videoID, options)
	}
	if err != nil {
		return nil, err
	}

	outputPath := options.OutputPath
	if outputPath == "" {
		outputPath = videoID + "-" + strconv.Itoa(video.Itag) + "+" + strconv.Itoa(audio.Itag) + extensionFor(video.MimeType)
	}
	videoPath := outputPath + ".video" + extensionFor(video.MimeType)
	audioPath := outputPath + ".audio" + extensionFor(audio.MimeType)

	result := &MuxResult{
		VideoID:    videoID,
		VideoItag:  video.Itag,
		AudioItag:  audio.Itag,
		OutputPath: outputPath,
	}

	result.Video, err = c.downloadToFile(ctx, video, videoPath, DownloadOptions{OnProgress: options.OnProgress})
	if err != nil {
		return nil, err
	}
	if result.Video.Cancelled {
		result.OutputPath = videoPath
		return result, nil
	}

	result.Audio, err = c.downloadToFile(ctx, audio, audioPath, DownloadOptions{OnProgress: options.OnProgress})
	if err != nil {
		return nil, err
	}
	if result.Audio.Cancelled {
		result.OutputPath = audioPath
		return result, nil
	}

	meta := MuxMetadata{Title: info.Title, Artist: info.Author}
	if err := muxer.Mux(ctx, videoPath, audioPath, outputPath, meta); err != nil {
		return nil, err
	}
	if !options.KeepSources {
		for _, p := range []string{videoPath, audioPath} {
			if err := os.Remove(p); err != nil {
				c.logger.Warnf("could not remove track file %s: %v", p, err)
			}
		}
	}
	return result, nil
}

// muxFallback downloads the best premuxed stream when the video has no
// separate adaptive tracks.
func (c *Client) muxFallback(ctx context.Context, videoID string, options MuxOptions) (*MuxResult, error) {
	dl, err := c.Download(ctx, videoID, DownloadOptions{
		Kind:       KindMuxed,
		Quality:    options.Quality,
		OutputPath: options.OutputPath,
		OnProgress: options.OnProgress,
	})
	if err != nil {
		return nil, err
	}
	return &MuxResult{
		VideoID:    dl.VideoID,
		VideoItag:  dl.Itag,
		AudioItag:  dl.Itag,
		OutputPath: dl.OutputPath,
		Video:      dl.Summary,
	}, nil
}
