package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/spf13/cobra"

	"github.com/mossy-p/emocall/config"
	"github.com/mossy-p/emocall/internal/call"
	"github.com/mossy-p/emocall/internal/logger"
	"github.com/mossy-p/emocall/internal/signaling"
	"github.com/mossy-p/emocall/internal/ui"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a room and wait for someone to join",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCall(cmd.Context(), "")
	},
}

var joinCmd = &cobra.Command{
	Use:   "join <room-id>",
	Short: "Join an existing room",
	Example: `  emocall join k3x9a
  emocall join k3x9a --server wss://calls.example.com/ws`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCall(cmd.Context(), strings.TrimSpace(args[0]))
	},
}

const controlsHelp = "controls: [v] video  [a] audio  [e] emotions  [q] leave"

func runCall(parent context.Context, roomID string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	base, err := httpBase(cfg.SignalingURL)
	if err != nil {
		return err
	}
	log := logger.New(cfg.Environment)

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	api, err := call.NewAPI(logger.PionFactory(cfg.Environment))
	if err != nil {
		return err
	}

	client, err := signaling.Dial(ctx, cfg.SignalingURL, log)
	if err != nil {
		return err
	}
	defer client.Close()

	term := ui.NewTerminal(os.Stdout)
	session := call.NewSession(call.SessionConfig{
		Transport:  client,
		Media:      call.NewSyntheticMedia("emocall"),
		Detector:   call.NewSyntheticDetector(base+"/models", uint64(time.Now().UnixNano())),
		Renderer:   term,
		ICEServers: iceServers(ctx, base, cfg, log),
		API:        api,
		Log:        log,
	})

	if roomID == "" {
		if roomID, err = session.Create(ctx); err != nil {
			return err
		}
		fmt.Println(ui.RoomCreated(roomID))
	} else if err := session.Join(ctx, roomID); err != nil {
		return err
	}
	ui.PrintSuccess("joined room " + roomID)
	fmt.Println(ui.MutedStyle.Render(controlsHelp))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go controls(os.Stdin, session, cancel)

	err = session.Run(ctx)
	if session.RoomID() != "" {
		if leaveErr := session.Leave(context.Background()); leaveErr != nil {
			log.Debug("leave failed", slog.Any("error", leaveErr))
		}
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// controls reads single-letter commands from r until it ends or q is read.
func controls(r io.Reader, session *call.Session, quit context.CancelFunc) {
	video, audio := true, true
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		switch strings.TrimSpace(scanner.Text()) {
		case "v":
			video = !video
			session.SetTrackEnabled(webrtc.RTPCodecTypeVideo, video)
			fmt.Println(ui.MutedStyle.Render(fmt.Sprintf("video %s", onOff(video))))
		case "a":
			audio = !audio
			session.SetTrackEnabled(webrtc.RTPCodecTypeAudio, audio)
			fmt.Println(ui.MutedStyle.Render(fmt.Sprintf("audio %s", onOff(audio))))
		case "e":
			fmt.Println(ui.MutedStyle.Render(fmt.Sprintf("emotions %s", onOff(session.ToggleEmotions()))))
		case "q":
			quit()
			return
		case "":
		default:
			fmt.Println(ui.MutedStyle.Render(controlsHelp))
		}
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// iceServers asks the server which ICE servers to use and falls back to the
// local configuration.
func iceServers(ctx context.Context, base string, cfg *config.Config, log *slog.Logger) []webrtc.ICEServer {
	servers, err := fetchICEServers(ctx, base)
	if err == nil {
		return servers
	}
	log.Debug("using local ice servers", slog.Any("error", err))
	servers, err = cfg.ICE.Servers()
	if err != nil {
		log.Warn("invalid local ice servers", slog.Any("error", err))
		return nil
	}
	return servers
}

func fetchICEServers(ctx context.Context, base string) ([]webrtc.ICEServer, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/ice-servers", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ice servers: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		ICEServers []webrtc.ICEServer `json:"iceServers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.ICEServers, nil
}
