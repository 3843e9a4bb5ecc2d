package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ytgrab/ytgrab/client"
	"github.com/ytgrab/ytgrab/internal/downloader"
)

var (
	configPath string
	flagProxy  string
	flagLevel  string

	rootCmd = &cobra.Command{
		Use:           "ytgrab",
		Short:         "ytgrab resolves and downloads platform media streams",
		Long:          "ytgrab fetches video metadata, resolves protected stream URLs and downloads the selected stream, with optional audio extraction via ffmpeg.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ./ytgrab.yaml, $HOME/.ytgrab/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagProxy, "proxy", "", "HTTP(S) proxy URL")
	rootCmd.PersistentFlags().StringVar(&flagLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(formatsCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(audioCmd)
}

// newClient assembles a client from the merged file/env/flag settings.
func newClient(cfg settings) *client.Client {
	return client.New(client.Config{
		ProxyURL:         cfg.Proxy,
		Logger:           newLogger(cfg.LogLevel),
		ClientOrder:      cfg.ClientOrder,
		RequestTimeout:   cfg.RequestTimeout,
		PreferredLocale:  cfg.Locale,
		Transport:        downloader.TransportConfig{MaxRetries: cfg.MaxRetries},
		ChunkSize:        cfg.ChunkSize,
		ProgressInterval: cfg.ProgressInterval,
		StallTimeout:     cfg.StallTimeout,
		ExpiryMargin:     cfg.ExpiryMargin,
		AudioConverter:   client.NewFFmpegConverter(cfg.FFmpeg),
	})
}

// signalContext cancels on SIGINT/SIGTERM so a running transfer stops
// cooperatively and keeps its partial file.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
