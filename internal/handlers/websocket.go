package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mossy-p/emocall/internal/models"
	"github.com/mossy-p/emocall/internal/relay"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 64 * 1024
)

var errClientEvent = errors.New("event is server to client only")

// Signaling upgrades browser connections and bridges them to the relay.
type Signaling struct {
	relay      *relay.Relay
	upgrader   websocket.Upgrader
	outboxSize int
	log        *slog.Logger
}

func NewSignaling(r *relay.Relay, allowedOrigins []string, outboxSize int, log *slog.Logger) *Signaling {
	return &Signaling{
		relay: r,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(req *http.Request) bool {
				return OriginAllowed(allowedOrigins, req.Header.Get("Origin"))
			},
		},
		outboxSize: outboxSize,
		log:        log.With(slog.String("component", "signaling")),
	}
}

// Client is one websocket connection. It is the relay's sink for the
// participant it represents.
type Client struct {
	ID   string
	Conn *websocket.Conn

	outbox chan models.Frame
	done   chan struct{}
	log    *slog.Logger
}

// Send queues a frame without blocking. Frames for a closed or saturated
// connection are dropped.
func (c *Client) Send(frame models.Frame) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.outbox <- frame:
		return true
	default:
		return false
	}
}

// HandleSignaling upgrades the request and runs the connection's pumps.
func (s *Signaling) HandleSignaling(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("failed to upgrade connection", slog.Any("error", err))
		return
	}

	client := &Client{
		ID:     uuid.New().String(),
		Conn:   conn,
		outbox: make(chan models.Frame, s.outboxSize),
		done:   make(chan struct{}),
	}
	client.log = s.log.With(slog.String("participant", client.ID))

	if err := s.relay.Submit(relay.Connect{Participant: client.ID, Sink: client}); err != nil {
		client.log.Warn("relay unavailable", slog.Any("error", err))
		_ = conn.Close()
		return
	}
	client.log.Info("peer connected", slog.String("remote", conn.RemoteAddr().String()))

	go client.writePump()
	go s.readPump(client)
}

func (s *Signaling) readPump(c *Client) {
	defer func() {
		close(c.done)
		_ = c.Conn.Close()
		if err := s.relay.Submit(relay.Disconnect{Participant: c.ID}); err != nil {
			c.log.Debug("relay stopped before disconnect", slog.Any("error", err))
		}
		c.log.Info("peer disconnected")
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame models.Frame
		if err := c.Conn.ReadJSON(&frame); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				c.log.Warn("failed to parse frame", slog.Any("error", err))
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket error", slog.Any("error", err))
			}
			return
		}

		ev, err := Translate(c.ID, frame)
		if err != nil {
			c.log.Warn("ignoring frame", slog.String("event", string(frame.Event)), slog.Any("error", err))
			continue
		}
		if err := s.relay.Submit(ev); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case frame := <-c.outbox:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteJSON(frame); err != nil {
				c.log.Warn("failed to write frame", slog.Any("error", err))
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// Translate maps a client frame to the relay event it requests.
func Translate(participant string, frame models.Frame) (relay.Event, error) {
	if !frame.Event.Valid() {
		return nil, fmt.Errorf("unknown event %q", frame.Event)
	}
	switch frame.Event {
	case models.EventJoinRoom:
		var roomID string
		if err := frame.Decode(&roomID); err != nil {
			return nil, err
		}
		return relay.JoinRoom{Participant: participant, RoomID: roomID}, nil

	case models.EventLeaveRoom:
		var roomID string
		if err := frame.Decode(&roomID); err != nil {
			return nil, err
		}
		return relay.LeaveRoom{Participant: participant, RoomID: roomID}, nil

	case models.EventSignal:
		var req models.SignalRequest
		if err := frame.Decode(&req); err != nil {
			return nil, err
		}
		return relay.Signal{Participant: participant, RoomID: req.RoomID, Envelope: req.Signal}, nil

	case models.EventEmotionData:
		var req models.EmotionRequest
		if err := frame.Decode(&req); err != nil {
			return nil, err
		}
		return relay.Emotion{Participant: participant, RoomID: req.RoomID, Emotions: req.Emotions}, nil

	case models.EventUserConnected, models.EventUserDisconnected,
		models.EventParticipantCount, models.EventConnected:
		return nil, errClientEvent
	}
	return nil, fmt.Errorf("unhandled event %q", frame.Event)
}
