// Package call is the client half of a video call: local media, the
// WebRTC offer/answer exchange with the remote participant, and the
// emotion overlay loop.
package call

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"

	"github.com/mossy-p/emocall/internal/models"
)

// State is the lifecycle of a Peer.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

var ErrConnectionFailed = errors.New("connection failed")

// Signaler delivers an envelope to the other members of the room.
type Signaler interface {
	Signal(env models.Envelope) error
}

// SignalerFunc adapts a function to Signaler.
type SignalerFunc func(env models.Envelope) error

func (f SignalerFunc) Signal(env models.Envelope) error { return f(env) }

// NewAPI builds a pion API that logs through factory.
func NewAPI(factory logging.LoggerFactory) (*webrtc.API, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}
	s := webrtc.SettingEngine{LoggerFactory: factory}
	return webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithSettingEngine(s)), nil
}

type PeerConfig struct {
	ICEServers []webrtc.ICEServer
	// API defaults to pion's package-level constructors when nil.
	API      *webrtc.API
	Tracks   []webrtc.TrackLocal
	Signaler Signaler
	Log      *slog.Logger
}

// Peer negotiates one WebRTC connection with the remote participant.
//
// Envelopes are signaled while the peer lock is held, so an offer or answer
// always leaves before the candidates gathered for it. Callbacks queued
// under the lock run after it is released, in transition order, before the
// method that queued them returns.
type Peer struct {
	cfg PeerConfig
	log *slog.Logger

	mu      sync.Mutex
	pc      *webrtc.PeerConnection
	state   State
	pending []func()
	closing []*webrtc.PeerConnection

	// notifyMu is taken before mu is released, so callback batches
	// run in the order their sections held mu.
	notifyMu sync.Mutex

	onStateChange func(State)
	onError       func(error)
	onTrack       func(*webrtc.TrackRemote)
}

func NewPeer(cfg PeerConfig) *Peer {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Peer{
		cfg: cfg,
		log: log.With(slog.String("component", "peer")),
	}
}

// OnStateChange registers fn for state transitions. Set callbacks before
// the first Offer or HandleEnvelope.
func (p *Peer) OnStateChange(fn func(State)) { p.onStateChange = fn }

// OnError registers fn for asynchronous failures, such as ICE failing after
// negotiation succeeded.
func (p *Peer) OnError(fn func(error)) { p.onError = fn }

// OnTrack registers fn for remote media tracks.
func (p *Peer) OnTrack(fn func(*webrtc.TrackRemote)) { p.onTrack = fn }

func (p *Peer) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Offer starts a negotiation as the offering side. An existing connection
// is replaced.
func (p *Peer) Offer(ctx context.Context) error {
	p.mu.Lock()
	defer p.unlock()

	if p.state == StateClosed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.pc != nil {
		p.log.Info("replacing existing connection")
		p.abandonLocked()
	}

	pc, err := p.connectLocked()
	if err != nil {
		return err
	}
	if err := p.attachTracksLocked(pc); err != nil {
		return err
	}

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		p.abandonLocked()
		return negotiationError("create offer", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		p.abandonLocked()
		return negotiationError("set local description", err)
	}
	if err := p.cfg.Signaler.Signal(models.Envelope{Type: string(models.EnvelopeOffer), SDP: offer.SDP}); err != nil {
		p.abandonLocked()
		return negotiationError("send offer", err)
	}
	return nil
}

// HandleEnvelope applies a signal received from the remote participant.
func (p *Peer) HandleEnvelope(ctx context.Context, env models.Envelope) error {
	p.mu.Lock()
	defer p.unlock()

	if p.state == StateClosed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	switch env.Kind() {
	case models.EnvelopeOffer:
		return p.answerLocked(env)

	case models.EnvelopeAnswer:
		if p.pc == nil {
			return ErrNoConnection
		}
		desc := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: env.SDP}
		if err := p.pc.SetRemoteDescription(desc); err != nil {
			p.abandonLocked()
			return negotiationError("set remote description", err)
		}
		return nil

	case models.EnvelopeCandidate:
		if p.pc == nil {
			return ErrNoConnection
		}
		err := p.pc.AddICECandidate(webrtc.ICECandidateInit{
			Candidate:        env.Candidate,
			SDPMid:           env.SDPMid,
			SDPMLineIndex:    env.SDPMLineIndex,
			UsernameFragment: env.UsernameFragment,
		})
		if err != nil {
			return negotiationError("add ice candidate", err)
		}
		return nil
	}
	return ErrUnknownEnvelope
}

// answerLocked applies the remote offer before attaching local tracks, so
// the tracks land on the transceivers the offer created.
func (p *Peer) answerLocked(env models.Envelope) error {
	if p.pc != nil {
		p.log.Info("offer replaces existing connection")
		p.abandonLocked()
	}
	pc, err := p.connectLocked()
	if err != nil {
		return err
	}

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: env.SDP}); err != nil {
		p.abandonLocked()
		return negotiationError("set remote description", err)
	}
	if err := p.attachTracksLocked(pc); err != nil {
		return err
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		p.abandonLocked()
		return negotiationError("create answer", err)
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		p.abandonLocked()
		return negotiationError("set local description", err)
	}
	if err := p.cfg.Signaler.Signal(models.Envelope{Type: string(models.EnvelopeAnswer), SDP: answer.SDP}); err != nil {
		p.abandonLocked()
		return negotiationError("send answer", err)
	}
	return nil
}

// Close tears down the connection. The peer cannot be reused. The Closed
// transition has been reported by the time Close returns.
func (p *Peer) Close() error {
	p.mu.Lock()
	if p.state == StateClosed {
		p.mu.Unlock()
		return nil
	}
	pc := p.pc
	p.pc = nil
	p.setStateLocked(StateClosed)
	p.unlock()

	if pc == nil {
		return nil
	}
	return pc.Close()
}

func (p *Peer) connectLocked() (*webrtc.PeerConnection, error) {
	conf := webrtc.Configuration{ICEServers: p.cfg.ICEServers}

	var (
		pc  *webrtc.PeerConnection
		err error
	)
	if p.cfg.API != nil {
		pc, err = p.cfg.API.NewPeerConnection(conf)
	} else {
		pc, err = webrtc.NewPeerConnection(conf)
	}
	if err != nil {
		return nil, negotiationError("create peer connection", err)
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		p.sendCandidate(pc, c.ToJSON())
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		p.connectionStateChanged(pc, s)
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		p.log.Info("remote track", slog.String("kind", track.Kind().String()))
		if p.onTrack != nil {
			p.onTrack(track)
		}
	})

	p.pc = pc
	p.setStateLocked(StateConnecting)
	return pc, nil
}

func (p *Peer) attachTracksLocked(pc *webrtc.PeerConnection) error {
	for _, track := range p.cfg.Tracks {
		if _, err := pc.AddTrack(track); err != nil {
			p.abandonLocked()
			return negotiationError("add track", err)
		}
	}
	return nil
}

func (p *Peer) sendCandidate(pc *webrtc.PeerConnection, init webrtc.ICECandidateInit) {
	p.mu.Lock()
	defer p.unlock()

	if p.pc != pc {
		return
	}
	err := p.cfg.Signaler.Signal(models.Envelope{
		Candidate:        init.Candidate,
		SDPMid:           init.SDPMid,
		SDPMLineIndex:    init.SDPMLineIndex,
		UsernameFragment: init.UsernameFragment,
	})
	if err != nil {
		p.log.Warn("failed to send candidate", slog.Any("error", err))
	}
}

func (p *Peer) connectionStateChanged(pc *webrtc.PeerConnection, s webrtc.PeerConnectionState) {
	p.mu.Lock()
	defer p.unlock()

	if p.pc != pc {
		return
	}
	p.log.Debug("connection state", slog.String("state", s.String()))

	switch s {
	case webrtc.PeerConnectionStateConnected:
		p.setStateLocked(StateConnected)
	case webrtc.PeerConnectionStateFailed:
		p.log.Warn("connection failed, abandoning it")
		p.abandonLocked()
		if p.onError != nil {
			fn := p.onError
			p.pending = append(p.pending, func() { fn(negotiationError("ice", ErrConnectionFailed)) })
		}
	}
}

// abandonLocked drops the current connection and returns to Idle. pion
// may run state callbacks from inside Close, so the close itself waits
// until the lock is released.
func (p *Peer) abandonLocked() {
	if p.pc != nil {
		p.closing = append(p.closing, p.pc)
		p.pc = nil
	}
	p.setStateLocked(StateIdle)
}

func (p *Peer) setStateLocked(s State) {
	if p.state == s {
		return
	}
	p.state = s
	if p.onStateChange != nil {
		fn := p.onStateChange
		p.pending = append(p.pending, func() { fn(s) })
	}
}

// unlock releases mu, then runs the callbacks and closes queued by the
// section that held it.
func (p *Peer) unlock() {
	pending, closing := p.pending, p.closing
	p.pending, p.closing = nil, nil

	if len(pending) == 0 {
		p.mu.Unlock()
	} else {
		p.notifyMu.Lock()
		p.mu.Unlock()
		for _, fn := range pending {
			fn()
		}
		p.notifyMu.Unlock()
	}

	for _, pc := range closing {
		if err := pc.Close(); err != nil {
			p.log.Debug("failed to close connection", slog.Any("error", err))
		}
	}
}
