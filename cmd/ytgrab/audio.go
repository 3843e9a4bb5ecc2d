package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ytgrab/ytgrab/client"
)

var audioCmd = &cobra.Command{
	Use:   "audio [video]",
	Short: "Download the best audio stream and convert it with ffmpeg",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings()
		if err != nil {
			return err
		}
		output, _ := cmd.Flags().GetString("output")
		codec, _ := cmd.Flags().GetString("codec")
		compression, _ := cmd.Flags().GetInt("compression-level")
		bitrate, _ := cmd.Flags().GetString("bitrate")
		maxBitrate, _ := cmd.Flags().GetInt("max-bitrate")
		keepSource, _ := cmd.Flags().GetBool("keep-source")

		ctx, cancel := signalContext()
		defer cancel()

		c := newClient(cfg)
		result, err := c.ExtractAudio(ctx, args[0], client.ExtractAudioOptions{
			OutputPath: output,
			Audio: client.AudioOptions{
				Codec:            codec,
				CompressionLevel: compression,
				Bitrate:          bitrate,
			},
			Quality:    client.QualityPref{MaxBitrate: maxBitrate},
			KeepSource: keepSource,
			OnProgress: renderProgress,
		})
		if err != nil {
			return err
		}
		finishProgress()

		if result.Summary.Cancelled {
			fmt.Printf("Interrupted; partial source kept at %s\n", result.OutputPath)
			return nil
		}
		fmt.Printf("Saved audio to %s\n", result.OutputPath)
		return nil
	},
}

func init() {
	audioCmd.Flags().StringP("output", "o", "", "output file path (default <videoID>.flac)")
	audioCmd.Flags().String("codec", "", "target audio codec (default flac)")
	audioCmd.Flags().Int("compression-level", 0, "flac compression level (default 8)")
	audioCmd.Flags().String("bitrate", "", "target bitrate for lossy codecs, e.g. 192k")
	audioCmd.Flags().Int("max-bitrate", 0, "source stream bitrate ceiling in bits/sec")
	audioCmd.Flags().Bool("keep-source", false, "keep the downloaded media file after conversion")
}
