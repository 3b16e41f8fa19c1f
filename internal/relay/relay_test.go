package relay

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mossy-p/emocall/internal/models"
	"github.com/mossy-p/emocall/internal/registry"
)

type recordingSink struct {
	mu     sync.Mutex
	frames []models.Frame
	full   bool
}

func (s *recordingSink) Send(f models.Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.full {
		return false
	}
	s.frames = append(s.frames, f)
	return true
}

// take returns and clears the recorded frames, skipping the initial
// connected frame.
func (s *recordingSink) take() []models.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Frame
	for _, f := range s.frames {
		if f.Event == models.EventConnected {
			continue
		}
		out = append(out, f)
	}
	s.frames = nil
	return out
}

type recordingObserver struct {
	joined []string
	left   []string
}

func (o *recordingObserver) ParticipantJoined(roomID, participant string, size int) {
	o.joined = append(o.joined, roomID+"/"+participant)
}

func (o *recordingObserver) ParticipantLeft(roomID, participant string, size int) {
	o.left = append(o.left, roomID+"/"+participant)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRelay(t *testing.T, ids ...string) (*Relay, *registry.Registry, map[string]*recordingSink) {
	t.Helper()
	reg := registry.New()
	r := New(reg, testLogger())
	sinks := make(map[string]*recordingSink, len(ids))
	for _, id := range ids {
		s := &recordingSink{}
		sinks[id] = s
		r.Handle(Connect{Participant: id, Sink: s})
	}
	return r, reg, sinks
}

type event struct {
	Event models.Event
	Data  string
}

func events(t *testing.T, frames []models.Frame) []event {
	t.Helper()
	out := make([]event, 0, len(frames))
	for _, f := range frames {
		out = append(out, event{Event: f.Event, Data: string(f.Data)})
	}
	return out
}

func TestConnectSendsParticipantID(t *testing.T) {
	_, _, sinks := newTestRelay(t, "p1")

	require.Len(t, sinks["p1"].frames, 1)
	assert.Equal(t, models.EventConnected, sinks["p1"].frames[0].Event)
	assert.JSONEq(t, `"p1"`, string(sinks["p1"].frames[0].Data))
}

func TestScenarioTwoPartyCall(t *testing.T) {
	r, reg, sinks := newTestRelay(t, "p1", "p2")
	p1, p2 := sinks["p1"], sinks["p2"]

	// P1 alone: only its own count.
	r.Handle(JoinRoom{Participant: "p1", RoomID: "abcde"})
	assert.Equal(t, []event{{models.EventParticipantCount, "1"}}, events(t, p1.take()))

	// P2 joins: P1 learns about P2, both see the count.
	r.Handle(JoinRoom{Participant: "p2", RoomID: "abcde"})
	assert.Equal(t, []event{
		{models.EventUserConnected, `"p2"`},
		{models.EventParticipantCount, "2"},
	}, events(t, p1.take()))
	assert.Equal(t, []event{{models.EventParticipantCount, "2"}}, events(t, p2.take()))

	// Offer goes to P2 only.
	offer := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	r.Handle(Signal{Participant: "p1", RoomID: "abcde", Envelope: offer})
	assert.Empty(t, p1.take())
	got := p2.take()
	require.Len(t, got, 1)
	assert.Equal(t, models.EventSignal, got[0].Event)
	var delivery models.SignalDelivery
	require.NoError(t, json.Unmarshal(got[0].Data, &delivery))
	assert.Equal(t, "p1", delivery.SenderID)
	assert.JSONEq(t, string(offer), string(delivery.Signal))

	// P2 disconnects: P1 gets one notification and the new count.
	r.Handle(Disconnect{Participant: "p2"})
	assert.Equal(t, []event{
		{models.EventUserDisconnected, `"p2"`},
		{models.EventParticipantCount, "1"},
	}, events(t, p1.take()))
	assert.Equal(t, []string{"p1"}, reg.MembersOf("abcde"))
}

func TestScenarioSoloDisconnect(t *testing.T) {
	r, reg, sinks := newTestRelay(t, "p1", "bystander")
	r.Handle(JoinRoom{Participant: "p1", RoomID: "solo"})
	sinks["p1"].take()

	r.Handle(Disconnect{Participant: "p1"})

	assert.NotContains(t, reg.Rooms(), "solo")
	assert.Empty(t, sinks["p1"].take())
	assert.Empty(t, sinks["bystander"].take())
}

func TestDisconnectOutsideRoomSendsNothing(t *testing.T) {
	obs := &recordingObserver{}
	reg := registry.New()
	r := New(reg, testLogger(), WithObserver(obs))
	other := &recordingSink{}
	r.Handle(Connect{Participant: "p1", Sink: &recordingSink{}})
	r.Handle(Connect{Participant: "p2", Sink: other})
	r.Handle(JoinRoom{Participant: "p2", RoomID: "abcde"})
	other.take()

	r.Handle(Disconnect{Participant: "p1"})

	assert.Empty(t, other.take())
	assert.Empty(t, obs.left)
}

func TestJoinCountMatchesMembers(t *testing.T) {
	r, reg, sinks := newTestRelay(t, "a", "b", "c")

	for _, id := range []string{"a", "b", "c"} {
		r.Handle(JoinRoom{Participant: id, RoomID: "room"})
		want, err := json.Marshal(len(reg.MembersOf("room")))
		require.NoError(t, err)
		for _, member := range reg.MembersOf("room") {
			got := sinks[member].take()
			require.NotEmpty(t, got)
			last := got[len(got)-1]
			assert.Equal(t, models.EventParticipantCount, last.Event)
			assert.Equal(t, string(want), string(last.Data))
		}
	}
}

func TestSignalReachesAllOthersNeverSender(t *testing.T) {
	r, _, sinks := newTestRelay(t, "a", "b", "c")
	for _, id := range []string{"a", "b", "c"} {
		r.Handle(JoinRoom{Participant: id, RoomID: "room"})
	}
	for _, s := range sinks {
		s.take()
	}

	r.Handle(Signal{Participant: "b", RoomID: "room", Envelope: json.RawMessage(`{"candidate":"c1"}`)})

	assert.Empty(t, sinks["b"].take())
	assert.Len(t, sinks["a"].take(), 1)
	assert.Len(t, sinks["c"].take(), 1)
}

func TestSignalFromNonMemberIsDropped(t *testing.T) {
	r, _, sinks := newTestRelay(t, "a", "b")
	r.Handle(JoinRoom{Participant: "a", RoomID: "room"})
	sinks["a"].take()

	r.Handle(Signal{Participant: "b", RoomID: "room", Envelope: json.RawMessage(`{}`)})
	r.Handle(Signal{Participant: "a", RoomID: "missing", Envelope: json.RawMessage(`{}`)})

	assert.Empty(t, sinks["a"].take())
	assert.Empty(t, sinks["b"].take())
}

func TestEmotionForwardedVerbatim(t *testing.T) {
	r, _, sinks := newTestRelay(t, "a", "b")
	r.Handle(JoinRoom{Participant: "a", RoomID: "room"})
	r.Handle(JoinRoom{Participant: "b", RoomID: "room"})
	sinks["a"].take()
	sinks["b"].take()

	payload := json.RawMessage(`{"happy":0.9,"sad":0.05,"bogus":7}`)
	r.Handle(Emotion{Participant: "a", RoomID: "room", Emotions: payload})

	assert.Empty(t, sinks["a"].take())
	got := sinks["b"].take()
	require.Len(t, got, 1)
	assert.Equal(t, models.EventEmotionData, got[0].Event)
	assert.JSONEq(t, `{"emotions":{"happy":0.9,"sad":0.05,"bogus":7}}`, string(got[0].Data))
}

func TestRejoinSameRoomDoesNotReannounce(t *testing.T) {
	r, _, sinks := newTestRelay(t, "a", "b")
	r.Handle(JoinRoom{Participant: "a", RoomID: "room"})
	r.Handle(JoinRoom{Participant: "b", RoomID: "room"})
	sinks["a"].take()

	r.Handle(JoinRoom{Participant: "b", RoomID: "room"})

	assert.Equal(t, []event{{models.EventParticipantCount, "2"}}, events(t, sinks["a"].take()))
}

func TestJoinOtherRoomNotifiesPreviousRoom(t *testing.T) {
	r, reg, sinks := newTestRelay(t, "a", "b")
	r.Handle(JoinRoom{Participant: "a", RoomID: "one"})
	r.Handle(JoinRoom{Participant: "b", RoomID: "one"})
	sinks["a"].take()
	sinks["b"].take()

	r.Handle(JoinRoom{Participant: "b", RoomID: "two"})

	assert.Equal(t, []event{
		{models.EventUserDisconnected, `"b"`},
		{models.EventParticipantCount, "1"},
	}, events(t, sinks["a"].take()))
	assert.Equal(t, []event{{models.EventParticipantCount, "1"}}, events(t, sinks["b"].take()))
	assert.Equal(t, []string{"a"}, reg.MembersOf("one"))
	assert.Equal(t, []string{"b"}, reg.MembersOf("two"))
}

func TestLeaveRoomKeepsConnection(t *testing.T) {
	r, reg, sinks := newTestRelay(t, "a", "b")
	r.Handle(JoinRoom{Participant: "a", RoomID: "room"})
	r.Handle(JoinRoom{Participant: "b", RoomID: "room"})
	sinks["a"].take()
	sinks["b"].take()

	r.Handle(LeaveRoom{Participant: "b", RoomID: "wrong"})
	assert.Empty(t, sinks["a"].take())

	r.Handle(LeaveRoom{Participant: "b", RoomID: "room"})
	assert.Equal(t, []event{
		{models.EventUserDisconnected, `"b"`},
		{models.EventParticipantCount, "1"},
	}, events(t, sinks["a"].take()))
	assert.Equal(t, []string{"a"}, reg.MembersOf("room"))

	// b can still join elsewhere on the same connection.
	r.Handle(JoinRoom{Participant: "b", RoomID: "other"})
	assert.Equal(t, []event{{models.EventParticipantCount, "1"}}, events(t, sinks["b"].take()))
}

func TestFullSinkDoesNotBlockOthers(t *testing.T) {
	r, _, sinks := newTestRelay(t, "a", "b", "c")
	for _, id := range []string{"a", "b", "c"} {
		r.Handle(JoinRoom{Participant: id, RoomID: "room"})
	}
	for _, s := range sinks {
		s.take()
	}
	sinks["b"].full = true

	r.Handle(Signal{Participant: "a", RoomID: "room", Envelope: json.RawMessage(`{}`)})

	assert.Len(t, sinks["c"].take(), 1)
}

func TestObserverSeesMembershipChanges(t *testing.T) {
	obs := &recordingObserver{}
	r := New(registry.New(), testLogger(), WithObserver(obs))
	r.Handle(Connect{Participant: "a", Sink: &recordingSink{}})
	r.Handle(Connect{Participant: "b", Sink: &recordingSink{}})

	r.Handle(JoinRoom{Participant: "a", RoomID: "one"})
	r.Handle(JoinRoom{Participant: "b", RoomID: "one"})
	r.Handle(JoinRoom{Participant: "a", RoomID: "two"})
	r.Handle(Disconnect{Participant: "b"})

	assert.Equal(t, []string{"one/a", "one/b", "two/a"}, obs.joined)
	assert.Equal(t, []string{"one/a", "one/b"}, obs.left)
}

func TestRunProcessesSubmittedEvents(t *testing.T) {
	reg := registry.New()
	r := New(reg, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)

	sink := &recordingSink{}
	require.NoError(t, r.Submit(Connect{Participant: "a", Sink: sink}))
	require.NoError(t, r.Submit(JoinRoom{Participant: "a", RoomID: "room"}))

	info, err := r.Room(ctx, "room")
	require.NoError(t, err)
	assert.Equal(t, models.RoomInfo{ID: "room", Participants: 1}, info)

	rooms, err := r.Rooms(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.RoomInfo{{ID: "room", Participants: 1}}, rooms)

	cancel()
	require.Eventually(t, func() bool {
		return r.Submit(Disconnect{Participant: "a"}) == ErrStopped
	}, time.Second, 10*time.Millisecond)
}

func TestInspectGivesUpWhenQueueIsFull(t *testing.T) {
	r := New(registry.New(), testLogger(), WithQueueSize(1))
	require.NoError(t, r.Submit(JoinRoom{Participant: "a", RoomID: "room"}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := r.Room(ctx, "room")

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}
