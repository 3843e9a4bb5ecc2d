package convert

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// Metadata is written into the muxed container as ffmpeg metadata tags.
// Empty fields are omitted.
type Metadata struct {
	Title   string
	Artist  string
	Date    string
	Comment string
}

// Mux stream-copies separate video and audio files into one container at
// outPath, overwriting any existing file there. The inputs are left in place.
func (f *FFmpeg) Mux(ctx context.Context, videoPath, audioPath, outPath string, meta Metadata) error {
	cmd := exec.CommandContext(ctx, f.binary(), muxArgs(videoPath, audioPath, outPath, meta)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg mux failed: %w (%s)", err, stderrTail(stderr.String()))
	}
	return nil
}

func muxArgs(videoPath, audioPath, outPath string, meta Metadata) []string {
	args := []string{
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-c:a", "copy",
	}
	for _, tag := range []struct{ key, value string }{
		{"title", meta.Title},
		{"artist", meta.Artist},
		{"date", meta.Date},
		{"comment", meta.Comment},
	} {
		if tag.value != "" {
			args = append(args, "-metadata", tag.key+"="+tag.value)
		}
	}
	return append(args, "-y", outPath)
}
