// Package signaling is the client side of the relay connection: one
// websocket carrying event frames in both directions.
package signaling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mossy-p/emocall/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var ErrClosed = errors.New("signaling connection closed")

// Client manages the websocket connection to the relay.
type Client struct {
	conn     *websocket.Conn
	incoming chan models.Frame
	outgoing chan models.Frame
	done     chan struct{}
	once     sync.Once
	log      *slog.Logger
}

// Dial connects to the relay at url.
func Dial(ctx context.Context, url string, log *slog.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	c := &Client{
		conn:     conn,
		incoming: make(chan models.Frame, 32),
		outgoing: make(chan models.Frame, 32),
		done:     make(chan struct{}),
		log:      log.With(slog.String("component", "signaling-client")),
	}

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.readPump()
	go c.writePump()

	return c, nil
}

func (c *Client) readPump() {
	defer func() {
		c.Close()
		close(c.incoming)
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var frame models.Frame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn("relay connection lost", slog.Any("error", err))
			}
			return
		}
		// Any frame, not only pongs, proves the relay is alive.
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		select {
		case c.incoming <- frame:
		case <-c.done:
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.outgoing:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(frame); err != nil {
				c.log.Warn("failed to write frame", slog.Any("error", err))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Emit sends an event to the relay.
func (c *Client) Emit(event models.Event, data any) error {
	frame, err := models.NewFrame(event, data)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.outgoing <- frame:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// Incoming yields frames from the relay. It is closed when the connection
// ends.
func (c *Client) Incoming() <-chan models.Frame {
	return c.incoming
}

// Close ends the connection. It is safe to call more than once.
func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}
