package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mossy-p/emocall/config"
	"github.com/mossy-p/emocall/internal/ui"
)

var flagServer string

var rootCmd = &cobra.Command{
	Use:   "emocall",
	Short: "Video calls with a live emotion overlay",
	Long: `emocall joins emotion-overlay video calls from the terminal.

It connects to a signaling server, negotiates a WebRTC call with the other
participant of a room and exchanges emotion readings alongside the media.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagServer, "server", "s", "", "signaling websocket url (default $SIGNALING_URL)")
	rootCmd.AddCommand(createCmd, joinCmd, roomsCmd, tokenCmd)
}

// Execute runs the root command.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flagServer != "" {
		cfg.SignalingURL = flagServer
	}
	return cfg, nil
}

// httpBase derives the server's HTTP origin from its websocket url.
func httpBase(wsURL string) (string, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	default:
		return "", fmt.Errorf("invalid server url %q: expected ws or wss", wsURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/ws")
	u.RawQuery = ""
	return strings.TrimSuffix(u.String(), "/"), nil
}
