package call

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// MediaSource supplies the local tracks of a call. A source is acquired by
// at most one session at a time.
type MediaSource interface {
	Acquire(ctx context.Context) ([]webrtc.TrackLocal, error)
	Release()
	SetEnabled(kind webrtc.RTPCodecType, enabled bool)
}

const (
	videoFrameInterval = time.Second / 30
	audioFrameInterval = 20 * time.Millisecond
)

// SyntheticMedia produces a VP8 video track and an Opus audio track fed with
// blank samples. It stands in for a camera and microphone on hosts that have
// neither.
type SyntheticMedia struct {
	StreamID string

	mu      sync.Mutex
	tracks  map[webrtc.RTPCodecType]*webrtc.TrackLocalStaticSample
	enabled map[webrtc.RTPCodecType]bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewSyntheticMedia(streamID string) *SyntheticMedia {
	return &SyntheticMedia{StreamID: streamID}
}

func (m *SyntheticMedia) Acquire(ctx context.Context) ([]webrtc.TrackLocal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tracks != nil {
		return nil, ErrMediaBusy
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", m.StreamID)
	if err != nil {
		return nil, fmt.Errorf("create video track: %w", err)
	}
	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", m.StreamID)
	if err != nil {
		return nil, fmt.Errorf("create audio track: %w", err)
	}

	m.tracks = map[webrtc.RTPCodecType]*webrtc.TrackLocalStaticSample{
		webrtc.RTPCodecTypeVideo: video,
		webrtc.RTPCodecTypeAudio: audio,
	}
	m.enabled = map[webrtc.RTPCodecType]bool{
		webrtc.RTPCodecTypeVideo: true,
		webrtc.RTPCodecTypeAudio: true,
	}

	feedCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.wg.Add(2)
	go m.feed(feedCtx, webrtc.RTPCodecTypeVideo, video, videoFrameInterval, []byte{0x10, 0x02, 0x00, 0x9d, 0x01, 0x2a})
	go m.feed(feedCtx, webrtc.RTPCodecTypeAudio, audio, audioFrameInterval, []byte{0xf8, 0xff, 0xfe})

	return []webrtc.TrackLocal{video, audio}, nil
}

func (m *SyntheticMedia) feed(ctx context.Context, kind webrtc.RTPCodecType, track *webrtc.TrackLocalStaticSample, interval time.Duration, payload []byte) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !m.Enabled(kind) {
				continue
			}
			// Errors only mean no peer is bound yet.
			_ = track.WriteSample(media.Sample{Data: payload, Duration: interval})
		}
	}
}

// Release stops the feeders and forgets the tracks.
func (m *SyntheticMedia) Release() {
	m.mu.Lock()
	cancel := m.cancel
	m.tracks = nil
	m.enabled = nil
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		m.wg.Wait()
	}
}

func (m *SyntheticMedia) SetEnabled(kind webrtc.RTPCodecType, enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enabled != nil {
		m.enabled[kind] = enabled
	}
}

// Enabled reports whether samples of kind are currently produced.
func (m *SyntheticMedia) Enabled(kind webrtc.RTPCodecType) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled[kind]
}
