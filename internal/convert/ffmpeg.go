package convert

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

const (
	defaultBinary           = "ffmpeg"
	defaultCompressionLevel = 8
)

// AudioOptions shapes the extracted audio track.
type AudioOptions struct {
	// Codec is the target audio codec, flac by default.
	Codec string
	// CompressionLevel applies to flac; ignored for other codecs.
	CompressionLevel int
	// Bitrate applies to lossy codecs, e.g. "192k"; ignored for flac.
	Bitrate string
}

// FFmpeg shells out to an external ffmpeg binary for audio extraction.
type FFmpeg struct {
	// Binary overrides the executable looked up on PATH.
	Binary string
}

func (f *FFmpeg) binary() string {
	if f.Binary != "" {
		return f.Binary
	}
	return defaultBinary
}

// Available reports whether the configured binary can be found.
func (f *FFmpeg) Available() error {
	if _, err := exec.LookPath(f.binary()); err != nil {
		return fmt.Errorf("ffmpeg not available: %w", err)
	}
	return nil
}

// ExtractAudio demuxes and re-encodes the audio track of inPath into outPath,
// overwriting any existing file at outPath.
func (f *FFmpeg) ExtractAudio(ctx context.Context, inPath, outPath string, opts AudioOptions) error {
	cmd := exec.CommandContext(ctx, f.binary(), extractAudioArgs(inPath, outPath, opts)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg audio extraction failed: %w (%s)", err, stderrTail(stderr.String()))
	}
	return nil
}

func extractAudioArgs(inPath, outPath string, opts AudioOptions) []string {
	codec := opts.Codec
	if codec == "" {
		codec = "flac"
	}
	args := []string{"-i", inPath, "-vn", "-acodec", codec}
	if codec == "flac" {
		level := opts.CompressionLevel
		if level <= 0 {
			level = defaultCompressionLevel
		}
		args = append(args, "-compression_level", strconv.Itoa(level))
	} else if opts.Bitrate != "" {
		args = append(args, "-ab", opts.Bitrate)
	}
	return append(args, "-y", outPath)
}

// stderrTail keeps the last few lines of ffmpeg output; the useful error is
// at the end and full logs are noisy.
func stderrTail(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > 4 {
		lines = lines[len(lines)-4:]
	}
	return strings.Join(lines, " | ")
}
