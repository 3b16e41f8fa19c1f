package ui

import (
	"fmt"
	"io"
	"sync"

	"github.com/mossy-p/emocall/internal/call"
	"github.com/mossy-p/emocall/internal/models"
)

// Terminal prints call events as they happen. Emotion panels are redrawn
// only when the dominant emotion changes.
type Terminal struct {
	mu            sync.Mutex
	w             io.Writer
	hidden        bool
	localDominant string
	peerDominant  string
}

func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

var _ call.Renderer = (*Terminal)(nil)

func (t *Terminal) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.w, format+"\n", args...)
}

func (t *Terminal) Alert(msg string) {
	t.printf("%s %s", ErrorStyle.Render(IconError), ErrorStyle.Render(msg))
}

func (t *Terminal) HideEmotions() {
	t.mu.Lock()
	t.hidden = true
	t.mu.Unlock()
	t.printf("%s %s", WarningStyle.Render(IconWarning), WarningStyle.Render("Emotion detection unavailable"))
}

func (t *Terminal) ParticipantCount(n int) {
	t.printf("%s %s", IconPeer, MutedStyle.Render(fmt.Sprintf("%d in room", n)))
}

func (t *Terminal) ConnectionState(s call.State) {
	t.printf("%s %s", IconConnect, MutedStyle.Render("call "+s.String()))
}

func (t *Terminal) LocalEmotions(e models.Emotions) {
	t.emotions("You", e, &t.localDominant)
}

func (t *Terminal) RemoteEmotions(e models.Emotions) {
	t.emotions("Peer", e, &t.peerDominant)
}

func (t *Terminal) emotions(title string, e models.Emotions, last *string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.hidden {
		return
	}
	dominant := e.Dominant()
	if dominant == *last {
		return
	}
	*last = dominant
	fmt.Fprintln(t.w, EmotionView(title, e))
}

func (t *Terminal) RemoteTrack(kind string) {
	t.printf("%s %s", IconPeer, SuccessStyle.Render("receiving remote "+kind))
}

func (t *Terminal) ClearRemote() {
	t.mu.Lock()
	t.peerDominant = ""
	t.mu.Unlock()
	t.printf("%s %s", IconPeer, MutedStyle.Render("peer left"))
}
