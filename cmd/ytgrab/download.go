package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ytgrab/ytgrab/client"
)

var downloadCmd = &cobra.Command{
	Use:   "download [video]",
	Short: "Download one stream of a video to a local file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings()
		if err != nil {
			return err
		}
		kindFlag, _ := cmd.Flags().GetString("kind")
		kind, err := parseKind(kindFlag)
		if err != nil {
			return err
		}
		itag, _ := cmd.Flags().GetInt("itag")
		maxBitrate, _ := cmd.Flags().GetInt("max-bitrate")
		output, _ := cmd.Flags().GetString("output")
		resume, _ := cmd.Flags().GetBool("resume")
		merge, _ := cmd.Flags().GetBool("merge")

		ctx, cancel := signalContext()
		defer cancel()

		c := newClient(cfg)
		if merge {
			return runMerge(ctx, c, args[0], client.MuxOptions{
				OutputPath: output,
				Quality:    client.QualityPref{MaxBitrate: maxBitrate},
				OnProgress: renderProgress,
			})
		}
		result, err := c.Download(ctx, args[0], client.DownloadOptions{
			Kind:       kind,
			Quality:    client.QualityPref{MaxBitrate: maxBitrate},
			Itag:       itag,
			OutputPath: output,
			Resume:     resume,
			OnProgress: renderProgress,
		})
		if err != nil {
			return err
		}
		finishProgress()

		if result.Summary.Cancelled {
			fmt.Printf("Interrupted; partial file kept at %s, rerun with --resume to continue\n", result.OutputPath)
			return nil
		}
		fmt.Printf("Saved itag %d to %s (%s in %s, %s avg)\n",
			result.Itag, result.OutputPath,
			sizeLabel(result.Summary.TotalBytes),
			result.Summary.Elapsed.Round(timeRounding),
			rateLabel(result.Summary.AverageBps))
		return nil
	},
}

func init() {
	downloadCmd.Flags().StringP("kind", "k", "best", "stream kind: best, audio, video, muxed")
	downloadCmd.Flags().Int("itag", 0, "pin an exact stream by itag")
	downloadCmd.Flags().Int("max-bitrate", 0, "bitrate ceiling in bits/sec (0 = uncapped)")
	downloadCmd.Flags().StringP("output", "o", "", "output file path")
	downloadCmd.Flags().Bool("resume", false, "continue a previous partial download")
	downloadCmd.Flags().Bool("merge", false, "download separate video and audio tracks and merge them with ffmpeg")
}

func runMerge(ctx context.Context, c *client.Client, input string, options client.MuxOptions) error {
	result, err := c.DownloadMuxed(ctx, input, options)
	if err != nil {
		return err
	}
	finishProgress()

	if result.Video.Cancelled || result.Audio.Cancelled {
		fmt.Printf("Interrupted; partial track kept at %s\n", result.OutputPath)
		return nil
	}
	if result.VideoItag == result.AudioItag {
		fmt.Printf("No separate tracks offered; saved premuxed itag %d to %s\n", result.VideoItag, result.OutputPath)
		return nil
	}
	fmt.Printf("Merged itags %d+%d into %s\n", result.VideoItag, result.AudioItag, result.OutputPath)
	return nil
}

func parseKind(s string) (client.StreamKind, error) {
	switch s {
	case "", "best":
		return client.KindBestAvailable, nil
	case "audio":
		return client.KindAudioOnly, nil
	case "video":
		return client.KindVideoOnly, nil
	case "muxed":
		return client.KindMuxed, nil
	default:
		return 0, fmt.Errorf("unknown stream kind %q", s)
	}
}

const timeRounding = 100 * time.Millisecond

var progressShown bool

// renderProgress redraws a single status line. Callbacks are already
// rate-limited by the client's ProgressInterval.
func renderProgress(p client.Progress) {
	progressShown = true
	if p.Total > 0 {
		fmt.Fprintf(os.Stderr, "\r%6.1f%%  %s / %s  %s   ",
			p.Fraction*100, sizeLabel(p.Received), sizeLabel(p.Total), rateLabel(p.Bps))
		return
	}
	fmt.Fprintf(os.Stderr, "\r%s  %s   ", sizeLabel(p.Received), rateLabel(p.Bps))
}

func finishProgress() {
	if progressShown {
		fmt.Fprintln(os.Stderr)
		progressShown = false
	}
}

func rateLabel(bps float64) string {
	const mib = 1 << 20
	if bps >= mib {
		return fmt.Sprintf("%.1f MiB/s", bps/mib)
	}
	return fmt.Sprintf("%.1f KiB/s", bps/(1<<10))
}
