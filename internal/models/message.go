package models

import (
	"encoding/json"
	"fmt"
)

// Event names the kind of a frame exchanged over the signaling connection.
type Event string

const (
	EventJoinRoom         Event = "join-room"
	EventLeaveRoom        Event = "leave-room"
	EventSignal           Event = "signal"
	EventEmotionData      Event = "emotion-data"
	EventUserConnected    Event = "user-connected"
	EventUserDisconnected Event = "user-disconnected"
	EventParticipantCount Event = "participant-count"
	EventConnected        Event = "connected"
)

// Valid reports whether e is one of the known events.
func (e Event) Valid() bool {
	switch e {
	case EventJoinRoom, EventLeaveRoom, EventSignal, EventEmotionData,
		EventUserConnected, EventUserDisconnected, EventParticipantCount, EventConnected:
		return true
	}
	return false
}

// Frame is the unit written to and read from the websocket.
type Frame struct {
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewFrame marshals data as the frame payload.
func NewFrame(event Event, data any) (Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Frame{}, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return Frame{Event: event, Data: raw}, nil
}

// Decode unmarshals the frame payload into v.
func (f Frame) Decode(v any) error {
	if len(f.Data) == 0 {
		return fmt.Errorf("%s: empty payload", f.Event)
	}
	if err := json.Unmarshal(f.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", f.Event, err)
	}
	return nil
}

// SignalRequest is the client->server signal payload.
type SignalRequest struct {
	RoomID string          `json:"roomID"`
	Signal json.RawMessage `json:"signal"`
}

// SignalDelivery is the server->client signal payload.
type SignalDelivery struct {
	Signal   json.RawMessage `json:"signal"`
	SenderID string          `json:"senderID"`
}

// EmotionRequest is the client->server emotion payload.
type EmotionRequest struct {
	RoomID   string          `json:"roomID"`
	Emotions json.RawMessage `json:"emotions"`
}

// EmotionDelivery is the server->client emotion payload.
type EmotionDelivery struct {
	Emotions json.RawMessage `json:"emotions"`
}
