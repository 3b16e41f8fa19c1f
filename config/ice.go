package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pion/webrtc/v4"
)

// ICEConfig lists the address-discovery servers handed to peers.
// The default uses two independent STUN hosts.
type ICEConfig struct {
	URLs       []string `env:"ICE_SERVERS" env-separator:"," env-default:"stun:stun.l.google.com:19302,stun:stun1.l.google.com:19302"`
	Username   string   `env:"TURN_USERNAME"`
	Credential string   `env:"TURN_CREDENTIAL"`
}

// Servers groups the configured urls into pion ICE servers: one entry per
// STUN url and one shared entry carrying the TURN credentials.
func (c ICEConfig) Servers() ([]webrtc.ICEServer, error) {
	var (
		servers []webrtc.ICEServer
		turn    []string
	)
	for _, raw := range c.URLs {
		url := strings.TrimSpace(raw)
		if url == "" {
			continue
		}
		switch {
		case strings.HasPrefix(url, "stun:"), strings.HasPrefix(url, "stuns:"):
			servers = append(servers, webrtc.ICEServer{URLs: []string{url}})
		case strings.HasPrefix(url, "turn:"), strings.HasPrefix(url, "turns:"):
			turn = append(turn, url)
		default:
			return nil, fmt.Errorf("ICE_SERVERS: unsupported url scheme: %q", url)
		}
	}

	if len(turn) > 0 {
		if strings.TrimSpace(c.Username) == "" || strings.TrimSpace(c.Credential) == "" {
			return nil, errors.New("TURN_USERNAME/TURN_CREDENTIAL: both must be set when ICE_SERVERS lists a turn url")
		}
		servers = append(servers, webrtc.ICEServer{
			URLs:       turn,
			Username:   c.Username,
			Credential: c.Credential,
		})
	}
	return servers, nil
}
