package call

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/mossy-p/emocall/internal/models"
)

// Transport is the session's connection to the relay.
type Transport interface {
	Emit(event models.Event, data any) error
	Incoming() <-chan models.Frame
}

// Renderer presents the call to the user.
type Renderer interface {
	Alert(msg string)
	HideEmotions()
	ParticipantCount(n int)
	ConnectionState(s State)
	LocalEmotions(e models.Emotions)
	RemoteEmotions(e models.Emotions)
	RemoteTrack(kind string)
	ClearRemote()
}

type SessionConfig struct {
	Transport  Transport
	Media      MediaSource
	Detector   Detector
	Renderer   Renderer
	ICEServers []webrtc.ICEServer
	API        *webrtc.API
	// EmotionInterval defaults to DefaultEmotionInterval.
	EmotionInterval time.Duration
	Log             *slog.Logger
}

// Session drives one participant through a call: it owns local media, the
// peer connection and the emotion loop, and reacts to relay events.
type Session struct {
	cfg SessionConfig
	log *slog.Logger

	selfID       atomic.Value
	modelMissing atomic.Bool

	mu          sync.Mutex
	roomID      string
	tracks      []webrtc.TrackLocal
	peer        *Peer
	stopEmotion context.CancelFunc
	emotionDone chan struct{}
}

func NewSession(cfg SessionConfig) *Session {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	if cfg.EmotionInterval <= 0 {
		cfg.EmotionInterval = DefaultEmotionInterval
	}
	return &Session{
		cfg: cfg,
		log: log.With(slog.String("component", "session")),
	}
}

// ID is the participant id the relay assigned, once known.
func (s *Session) ID() string {
	id, _ := s.selfID.Load().(string)
	return id
}

// RoomID is the room currently joined, or "".
func (s *Session) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

// Create joins a freshly generated room and returns its id.
func (s *Session) Create(ctx context.Context) (string, error) {
	roomID := models.NewRoomID()
	if err := s.Join(ctx, roomID); err != nil {
		return "", err
	}
	return roomID, nil
}

// Join acquires local media, enters roomID and starts the emotion loop.
// Switching rooms keeps local media and replaces the peer connection.
func (s *Session) Join(ctx context.Context, roomID string) error {
	if roomID == "" {
		return ErrEmptyRoom
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.roomID == roomID {
		return nil
	}
	acquired := false
	if s.tracks == nil {
		tracks, err := s.cfg.Media.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMediaUnavailable, err)
		}
		s.tracks = tracks
		acquired = true
	}
	if s.roomID != "" {
		s.stopEmotionsLocked()
		s.closePeerLocked()
	}

	s.roomID = roomID
	s.peer = s.newPeer(roomID)

	if err := s.cfg.Transport.Emit(models.EventJoinRoom, roomID); err != nil {
		s.closePeerLocked()
		s.roomID = ""
		if acquired {
			s.cfg.Media.Release()
			s.tracks = nil
		}
		return fmt.Errorf("join room: %w", err)
	}
	s.log.Info("joined room", slog.String("room", roomID))

	s.startEmotionsLocked()
	return nil
}

// Leave exits the room, stops the emotion loop and releases local media.
func (s *Session) Leave(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.roomID == "" {
		return ErrNotJoined
	}
	roomID := s.roomID

	s.stopEmotionsLocked()
	s.closePeerLocked()
	s.cfg.Media.Release()
	s.tracks = nil
	s.roomID = ""
	s.cfg.Renderer.ClearRemote()

	if err := s.cfg.Transport.Emit(models.EventLeaveRoom, roomID); err != nil {
		return fmt.Errorf("leave room: %w", err)
	}
	s.log.Info("left room", slog.String("room", roomID))
	return nil
}

// ToggleEmotions starts or stops the emotion loop and reports whether it is
// now running.
func (s *Session) ToggleEmotions() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopEmotion != nil {
		s.stopEmotionsLocked()
		return false
	}
	if s.roomID == "" || s.modelMissing.Load() {
		return false
	}
	s.startEmotionsLocked()
	return true
}

// SetTrackEnabled mutes or unmutes a local track kind.
func (s *Session) SetTrackEnabled(kind webrtc.RTPCodecType, enabled bool) {
	s.cfg.Media.SetEnabled(kind, enabled)
}

// Run handles relay events until ctx is cancelled or the transport closes.
func (s *Session) Run(ctx context.Context) error {
	incoming := s.cfg.Transport.Incoming()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-incoming:
			if !ok {
				return ErrSignalingClosed
			}
			s.handle(ctx, frame)
		}
	}
}

func (s *Session) handle(ctx context.Context, frame models.Frame) {
	switch frame.Event {
	case models.EventConnected:
		var id string
		if err := frame.Decode(&id); err != nil {
			s.log.Warn("bad connected frame", slog.Any("error", err))
			return
		}
		s.selfID.Store(id)
		s.log.Info("connected to relay", slog.String("participant", id))

	case models.EventUserConnected:
		s.withPeer(func(p *Peer) {
			if err := p.Offer(ctx); err != nil {
				s.negotiationFailed(err)
			}
		})

	case models.EventSignal:
		var delivery models.SignalDelivery
		if err := frame.Decode(&delivery); err != nil {
			s.log.Warn("bad signal frame", slog.Any("error", err))
			return
		}
		env, err := models.ParseEnvelope(delivery.Signal)
		if err != nil {
			s.log.Warn("bad signal envelope", slog.String("sender", delivery.SenderID), slog.Any("error", err))
			return
		}
		s.withPeer(func(p *Peer) {
			if err := p.HandleEnvelope(ctx, env); err != nil {
				s.negotiationFailed(err)
			}
		})

	case models.EventUserDisconnected:
		s.mu.Lock()
		if s.peer != nil {
			s.closePeerLocked()
			s.peer = s.newPeer(s.roomID)
		}
		s.mu.Unlock()
		s.cfg.Renderer.ClearRemote()

	case models.EventParticipantCount:
		var n int
		if err := frame.Decode(&n); err != nil {
			s.log.Warn("bad participant count", slog.Any("error", err))
			return
		}
		s.cfg.Renderer.ParticipantCount(n)

	case models.EventEmotionData:
		var delivery models.EmotionDelivery
		if err := frame.Decode(&delivery); err != nil {
			s.log.Warn("bad emotion frame", slog.Any("error", err))
			return
		}
		var emotions models.Emotions
		if err := json.Unmarshal(delivery.Emotions, &emotions); err != nil {
			s.log.Warn("bad emotion payload", slog.Any("error", err))
			return
		}
		s.cfg.Renderer.RemoteEmotions(emotions)

	default:
		s.log.Debug("ignoring event", slog.String("event", string(frame.Event)))
	}
}

func (s *Session) withPeer(fn func(*Peer)) {
	s.mu.Lock()
	p := s.peer
	s.mu.Unlock()
	if p == nil {
		s.log.Debug("no call in progress")
		return
	}
	fn(p)
}

func (s *Session) negotiationFailed(err error) {
	switch {
	case errors.Is(err, ErrNoConnection):
		s.log.Debug("dropping signal without connection", slog.Any("error", err))
	case errors.Is(err, ErrClosed), errors.Is(err, context.Canceled):
		s.log.Debug("dropping signal for closed peer", slog.Any("error", err))
	case errors.Is(err, ErrUnknownEnvelope):
		s.log.Warn("dropping unknown signal", slog.Any("error", err))
	default:
		s.log.Error("negotiation failed", slog.Any("error", err))
		s.cfg.Renderer.Alert("Connection failed: " + err.Error())
	}
}

func (s *Session) newPeer(roomID string) *Peer {
	p := NewPeer(PeerConfig{
		ICEServers: s.cfg.ICEServers,
		API:        s.cfg.API,
		Tracks:     s.tracks,
		Signaler: SignalerFunc(func(env models.Envelope) error {
			raw, err := json.Marshal(env)
			if err != nil {
				return err
			}
			return s.cfg.Transport.Emit(models.EventSignal, models.SignalRequest{RoomID: roomID, Signal: raw})
		}),
		Log: s.log,
	})
	p.OnStateChange(s.cfg.Renderer.ConnectionState)
	p.OnError(s.negotiationFailed)
	p.OnTrack(func(track *webrtc.TrackRemote) {
		s.cfg.Renderer.RemoteTrack(track.Kind().String())
		go drain(track)
	})
	return p
}

// drain consumes a remote track until its connection closes.
func drain(track *webrtc.TrackRemote) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := track.Read(buf); err != nil {
			return
		}
	}
}

func (s *Session) closePeerLocked() {
	if s.peer == nil {
		return
	}
	if err := s.peer.Close(); err != nil {
		s.log.Debug("failed to close peer", slog.Any("error", err))
	}
	s.peer = nil
}

func (s *Session) startEmotionsLocked() {
	if s.modelMissing.Load() || s.cfg.Detector == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.stopEmotion = cancel
	s.emotionDone = done

	roomID := s.roomID
	go func() {
		defer close(done)
		if err := s.cfg.Detector.Load(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.modelMissing.Store(true)
			s.log.Warn("emotion model unavailable", slog.Any("error", err))
			s.cfg.Renderer.HideEmotions()
			return
		}
		RunEmotionLoop(ctx, s.cfg.Detector, s.cfg.EmotionInterval, func(e models.Emotions) {
			s.cfg.Renderer.LocalEmotions(e)
			s.emitEmotions(roomID, e)
		}, s.log)
	}()
}

func (s *Session) emitEmotions(roomID string, e models.Emotions) {
	raw, err := json.Marshal(e)
	if err != nil {
		s.log.Warn("failed to encode emotions", slog.Any("error", err))
		return
	}
	if err := s.cfg.Transport.Emit(models.EventEmotionData, models.EmotionRequest{RoomID: roomID, Emotions: raw}); err != nil {
		s.log.Debug("failed to send emotions", slog.Any("error", err))
	}
}

func (s *Session) stopEmotionsLocked() {
	if s.stopEmotion == nil {
		return
	}
	s.stopEmotion()
	<-s.emotionDone
	s.stopEmotion = nil
	s.emotionDone = nil
}
