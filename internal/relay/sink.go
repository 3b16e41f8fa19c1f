package relay

import "github.com/mossy-p/emocall/internal/models"

// Sink receives frames addressed to one participant. Send must not block;
// it returns false when the frame was dropped.
type Sink interface {
	Send(frame models.Frame) bool
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(models.Frame) bool

func (f SinkFunc) Send(frame models.Frame) bool { return f(frame) }

// Observer is told about membership changes after the registry has been
// updated. Calls happen on the relay goroutine and must return quickly.
type Observer interface {
	ParticipantJoined(roomID, participant string, size int)
	ParticipantLeft(roomID, participant string, size int)
}

type nopObserver struct{}

func (nopObserver) ParticipantJoined(string, string, int) {}
func (nopObserver) ParticipantLeft(string, string, int)   {}
