package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ytgrab/ytgrab/client"
)

var formatsCmd = &cobra.Command{
	Use:   "formats [video]",
	Short: "List the available streams for a video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		c := newClient(cfg)
		info, err := c.Video(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("%s - %s (%s)\n", info.Title, info.Author, info.Duration)
		if info.URLValidity > 0 {
			fmt.Printf("Stream URLs valid for %s\n", info.URLValidity)
		}
		fmt.Println()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ITAG\tTRACKS\tQUALITY\tBITRATE\tSIZE\tMIME\tPROTECTED")
		for _, s := range info.Streams {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%v\n",
				s.Itag, trackLabel(s), qualityLabel(s),
				bitrateLabel(s.Bitrate), sizeLabel(s.ContentLength),
				s.MimeType, s.Ciphered())
		}
		return w.Flush()
	},
}

func trackLabel(s client.StreamDescriptor) string {
	switch {
	case s.HasAudio && s.HasVideo:
		return "audio+video"
	case s.HasAudio:
		return "audio"
	case s.HasVideo:
		return "video"
	default:
		return "none"
	}
}

func qualityLabel(s client.StreamDescriptor) string {
	if s.QualityLabel != "" {
		return s.QualityLabel
	}
	if s.Quality != "" {
		return s.Quality
	}
	return "-"
}

func bitrateLabel(bitrate int) string {
	if bitrate == client.BitrateUnknown {
		return "?"
	}
	return strconv.Itoa(bitrate/1000) + " kbps"
}

func sizeLabel(length int64) string {
	if length == client.LengthUnknown {
		return "?"
	}
	const mib = 1 << 20
	if length >= mib {
		return fmt.Sprintf("%.1f MiB", float64(length)/mib)
	}
	return fmt.Sprintf("%.1f KiB", float64(length)/(1<<10))
}
