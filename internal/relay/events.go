package relay

import (
	"encoding/json"

	"github.com/mossy-p/emocall/internal/registry"
)

// Event is an inbound event processed by the relay loop. The set of
// implementations is closed; Handle switches over all of them.
type Event interface {
	isEvent()
}

// Connect registers the sink that receives frames for a new participant.
type Connect struct {
	Participant string
	Sink        Sink
}

// JoinRoom moves a participant into a room.
type JoinRoom struct {
	Participant string
	RoomID      string
}

// LeaveRoom removes a participant from a room without closing its connection.
type LeaveRoom struct {
	Participant string
	RoomID      string
}

// Signal carries an offer, answer or candidate to the other room members.
type Signal struct {
	Participant string
	RoomID      string
	Envelope    json.RawMessage
}

// Emotion carries an emotion payload to the other room members.
type Emotion struct {
	Participant string
	RoomID      string
	Emotions    json.RawMessage
}

// Disconnect is emitted by the transport when a connection goes away.
type Disconnect struct {
	Participant string
}

// inspect runs a read-only query against the registry inside the loop.
type inspect struct {
	fn   func(*registry.Registry)
	done chan struct{}
}

func (Connect) isEvent()    {}
func (JoinRoom) isEvent()   {}
func (LeaveRoom) isEvent()  {}
func (Signal) isEvent()     {}
func (Emotion) isEvent()    {}
func (Disconnect) isEvent() {}
func (inspect) isEvent()    {}
