// Package relay routes signaling and emotion payloads between members of
// the same room and broadcasts membership changes.
//
// Every event is handled to completion on a single goroutine, so the
// registry needs no locking. Events from one connection are handled in the
// order they were submitted.
package relay

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mossy-p/emocall/internal/models"
	"github.com/mossy-p/emocall/internal/registry"
)

const defaultQueueSize = 1024

var ErrStopped = errors.New("relay stopped")

type Relay struct {
	registry *registry.Registry
	sinks    map[string]Sink
	events   chan Event
	stopped  chan struct{}
	observer Observer
	log      *slog.Logger
}

type Option func(*Relay)

// WithObserver installs an observer for membership changes.
func WithObserver(o Observer) Option {
	return func(r *Relay) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithQueueSize sets the inbound event buffer.
func WithQueueSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.events = make(chan Event, n)
		}
	}
}

// New creates a relay that owns reg from now on.
func New(reg *registry.Registry, log *slog.Logger, opts ...Option) *Relay {
	if log == nil {
		log = slog.Default()
	}
	r := &Relay{
		registry: reg,
		sinks:    make(map[string]Sink),
		events:   make(chan Event, defaultQueueSize),
		stopped:  make(chan struct{}),
		observer: nopObserver{},
		log:      log.With(slog.String("component", "relay")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes submitted events until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	defer close(r.stopped)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.events:
			r.Handle(ev)
		}
	}
}

// Submit queues ev for the loop. It blocks while the queue is full and
// returns ErrStopped once Run has returned.
func (r *Relay) Submit(ev Event) error {
	return r.submit(context.Background(), ev)
}

func (r *Relay) submit(ctx context.Context, ev Event) error {
	select {
	case <-r.stopped:
		return ErrStopped
	default:
	}
	select {
	case r.events <- ev:
		return nil
	case <-r.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Inspect runs fn against the registry on the relay goroutine and waits
// for it to finish. ctx bounds both the enqueue and the wait. fn must not
// retain the registry, and may still run after Inspect gave up on it.
func (r *Relay) Inspect(ctx context.Context, fn func(*registry.Registry)) error {
	done := make(chan struct{})
	if err := r.submit(ctx, inspect{fn: fn, done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-r.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Room returns the occupancy of roomID.
func (r *Relay) Room(ctx context.Context, roomID string) (models.RoomInfo, error) {
	var size int
	if err := r.Inspect(ctx, func(reg *registry.Registry) {
		size = reg.Size(roomID)
	}); err != nil {
		return models.RoomInfo{}, err
	}
	return models.RoomInfo{ID: roomID, Participants: size}, nil
}

// Rooms returns the occupancy of every live room.
func (r *Relay) Rooms(ctx context.Context) ([]models.RoomInfo, error) {
	var out []models.RoomInfo
	if err := r.Inspect(ctx, func(reg *registry.Registry) {
		for id, size := range reg.Rooms() {
			out = append(out, models.RoomInfo{ID: id, Participants: size})
		}
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// Handle processes a single event. It is called by Run; tests may call it
// directly as long as nothing else is running the loop.
func (r *Relay) Handle(ev Event) {
	switch ev := ev.(type) {
	case Connect:
		r.connect(ev)
	case JoinRoom:
		r.join(ev)
	case LeaveRoom:
		r.leave(ev)
	case Signal:
		r.signal(ev)
	case Emotion:
		r.emotion(ev)
	case Disconnect:
		r.disconnect(ev)
	case inspect:
		ev.fn(r.registry)
		close(ev.done)
	default:
		r.log.Error("unhandled relay event", slog.Any("event", ev))
	}
}

func (r *Relay) connect(ev Connect) {
	r.sinks[ev.Participant] = ev.Sink
	r.sendTo(ev.Participant, mustFrame(models.EventConnected, ev.Participant))
	r.log.Debug("participant connected", slog.String("participant", ev.Participant))
}

func (r *Relay) join(ev JoinRoom) {
	if ev.RoomID == "" {
		r.log.Warn("join without room id", slog.String("participant", ev.Participant))
		return
	}

	rejoin := r.registry.IsMember(ev.Participant, ev.RoomID)
	if previous := r.registry.Join(ev.Participant, ev.RoomID); previous != "" {
		r.departed(previous, ev.Participant)
	}

	size := r.registry.Size(ev.RoomID)
	if !rejoin {
		r.observer.ParticipantJoined(ev.RoomID, ev.Participant, size)
		r.broadcast(ev.RoomID, ev.Participant, mustFrame(models.EventUserConnected, ev.Participant))
	}
	r.broadcast(ev.RoomID, "", mustFrame(models.EventParticipantCount, size))

	r.log.Info("participant joined room",
		slog.String("participant", ev.Participant),
		slog.String("room", ev.RoomID),
		slog.Int("size", size),
	)
}

func (r *Relay) leave(ev LeaveRoom) {
	if !r.registry.Leave(ev.Participant, ev.RoomID) {
		r.log.Debug("leave for room not joined",
			slog.String("participant", ev.Participant),
			slog.String("room", ev.RoomID),
		)
		return
	}
	r.departed(ev.RoomID, ev.Participant)
}

func (r *Relay) disconnect(ev Disconnect) {
	delete(r.sinks, ev.Participant)

	roomID, ok := r.registry.RoomOf(ev.Participant)
	if ok {
		r.registry.Leave(ev.Participant, roomID)
		r.departed(roomID, ev.Participant)
	}
	r.log.Debug("participant disconnected", slog.String("participant", ev.Participant))
}

// departed notifies the remaining members of roomID after participant has
// already been removed from it.
func (r *Relay) departed(roomID, participant string) {
	size := r.registry.Size(roomID)
	r.observer.ParticipantLeft(roomID, participant, size)
	r.log.Info("participant left room",
		slog.String("participant", participant),
		slog.String("room", roomID),
		slog.Int("size", size),
	)
	if size == 0 {
		return
	}
	r.broadcast(roomID, participant, mustFrame(models.EventUserDisconnected, participant))
	r.broadcast(roomID, participant, mustFrame(models.EventParticipantCount, size))
}

func (r *Relay) signal(ev Signal) {
	if !r.routable(ev.Participant, ev.RoomID, models.EventSignal) {
		return
	}
	frame, err := models.NewFrame(models.EventSignal, models.SignalDelivery{
		Signal:   ev.Envelope,
		SenderID: ev.Participant,
	})
	if err != nil {
		r.log.Warn("dropping signal", slog.String("participant", ev.Participant), slog.Any("error", err))
		return
	}
	r.broadcast(ev.RoomID, ev.Participant, frame)
}

func (r *Relay) emotion(ev Emotion) {
	if !r.routable(ev.Participant, ev.RoomID, models.EventEmotionData) {
		return
	}
	frame, err := models.NewFrame(models.EventEmotionData, models.EmotionDelivery{Emotions: ev.Emotions})
	if err != nil {
		r.log.Warn("dropping emotions", slog.String("participant", ev.Participant), slog.Any("error", err))
		return
	}
	r.broadcast(ev.RoomID, ev.Participant, frame)
}

func (r *Relay) routable(participant, roomID string, event models.Event) bool {
	if r.registry.IsMember(participant, roomID) {
		return true
	}
	r.log.Debug("dropping frame for room not joined",
		slog.String("event", string(event)),
		slog.String("participant", participant),
		slog.String("room", roomID),
	)
	return false
}

// broadcast delivers frame to every member of roomID except exclude.
func (r *Relay) broadcast(roomID, exclude string, frame models.Frame) {
	for _, member := range r.registry.MembersOf(roomID) {
		if member == exclude {
			continue
		}
		r.sendTo(member, frame)
	}
}

func (r *Relay) sendTo(participant string, frame models.Frame) {
	sink, ok := r.sinks[participant]
	if !ok {
		return
	}
	if !sink.Send(frame) {
		r.log.Warn("failed to send frame, buffer full",
			slog.String("participant", participant),
			slog.String("event", string(frame.Event)),
		)
	}
}

func mustFrame(event models.Event, data any) models.Frame {
	frame, err := models.NewFrame(event, data)
	if err != nil {
		panic(err)
	}
	return frame
}
