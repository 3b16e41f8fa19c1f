// Package presence mirrors room occupancy into an external store so other
// processes can read it. The relay never reads it back.
package presence

import (
	"context"
	"log/slog"
	"time"
)

const (
	queueSize = 512
	opTimeout = 2 * time.Second
)

// Store persists room membership sets.
type Store interface {
	Add(ctx context.Context, roomID, participant string) error
	Remove(ctx context.Context, roomID, participant string) error
}

type op struct {
	roomID      string
	participant string
	joined      bool
}

// Mirror implements relay.Observer. Updates are queued and applied in order
// by Run, so a slow store never stalls the relay.
type Mirror struct {
	store Store
	ops   chan op
	log   *slog.Logger
}

func NewMirror(store Store, log *slog.Logger) *Mirror {
	return &Mirror{
		store: store,
		ops:   make(chan op, queueSize),
		log:   log.With(slog.String("component", "presence")),
	}
}

func (m *Mirror) ParticipantJoined(roomID, participant string, _ int) {
	m.enqueue(op{roomID: roomID, participant: participant, joined: true})
}

func (m *Mirror) ParticipantLeft(roomID, participant string, _ int) {
	m.enqueue(op{roomID: roomID, participant: participant})
}

func (m *Mirror) enqueue(o op) {
	select {
	case m.ops <- o:
	default:
		m.log.Warn("presence queue full, dropping update",
			slog.String("room", o.roomID),
			slog.String("participant", o.participant),
		)
	}
}

// Run applies queued updates until ctx is cancelled.
func (m *Mirror) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case o := <-m.ops:
			m.apply(ctx, o)
		}
	}
}

func (m *Mirror) apply(ctx context.Context, o op) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var err error
	if o.joined {
		err = m.store.Add(ctx, o.roomID, o.participant)
	} else {
		err = m.store.Remove(ctx, o.roomID, o.participant)
	}
	if err != nil {
		m.log.Warn("presence update failed",
			slog.String("room", o.roomID),
			slog.String("participant", o.participant),
			slog.Bool("joined", o.joined),
			slog.Any("error", err),
		)
	}
}
