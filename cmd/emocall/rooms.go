package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/mossy-p/emocall/internal/models"
	"github.com/mossy-p/emocall/internal/ui"
)

var flagToken string

var roomsCmd = &cobra.Command{
	Use:   "rooms [room-id]",
	Short: "Show room occupancy",
	Long: `Show how many participants are in a room. Without a room id, lists
every live room; that needs an operator token.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		base, err := httpBase(cfg.SignalingURL)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		var rooms []models.RoomInfo
		if len(args) == 1 {
			var room models.RoomInfo
			if err := getJSON(ctx, base+"/api/rooms/"+url.PathEscape(args[0]), "", &room); err != nil {
				return err
			}
			rooms = append(rooms, room)
		} else {
			var body struct {
				Rooms []models.RoomInfo `json:"rooms"`
			}
			if err := getJSON(ctx, base+"/api/rooms", flagToken, &body); err != nil {
				return err
			}
			rooms = body.Rooms
		}

		fmt.Println(ui.RoomsTable(rooms))
		return nil
	},
}

func init() {
	roomsCmd.Flags().StringVarP(&flagToken, "token", "t", "", "operator bearer token")
}

func getJSON(ctx context.Context, target, token string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("not authorized: pass an operator token with --token")
	case http.StatusNotFound:
		return fmt.Errorf("room listing is disabled on this server")
	default:
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
