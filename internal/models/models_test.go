package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeKind(t *testing.T) {
	tests := []struct {
		raw  string
		want EnvelopeKind
	}{
		{`{"type":"offer","sdp":"v=0"}`, EnvelopeOffer},
		{`{"type":"answer","sdp":"v=0"}`, EnvelopeAnswer},
		{`{"candidate":"candidate:1 1 udp 1 10.0.0.1 5000 typ host","sdpMid":"0","sdpMLineIndex":0}`, EnvelopeCandidate},
		{`{"type":"offer"}`, EnvelopeUnknown},
		{`{"type":"pranswer","sdp":"v=0"}`, EnvelopeUnknown},
	}
	for _, tt := range tests {
		env, err := ParseEnvelope(json.RawMessage(tt.raw))
		require.NoError(t, err)
		assert.Equal(t, tt.want, env.Kind(), tt.raw)
	}
}

func TestParseEnvelopeEmpty(t *testing.T) {
	_, err := ParseEnvelope(nil)
	assert.ErrorIs(t, err, ErrEmptyEnvelope)

	_, err = ParseEnvelope(json.RawMessage("null"))
	assert.ErrorIs(t, err, ErrEmptyEnvelope)
}

func TestCandidateFieldsSurvive(t *testing.T) {
	env, err := ParseEnvelope(json.RawMessage(`{"candidate":"c","sdpMid":"0","sdpMLineIndex":1,"usernameFragment":"u"}`))
	require.NoError(t, err)

	require.NotNil(t, env.SDPMid)
	require.NotNil(t, env.SDPMLineIndex)
	require.NotNil(t, env.UsernameFragment)
	assert.Equal(t, "0", *env.SDPMid)
	assert.EqualValues(t, 1, *env.SDPMLineIndex)
	assert.Equal(t, "u", *env.UsernameFragment)
}

func TestFrameDecode(t *testing.T) {
	frame, err := NewFrame(EventJoinRoom, "abcde")
	require.NoError(t, err)

	var roomID string
	require.NoError(t, frame.Decode(&roomID))
	assert.Equal(t, "abcde", roomID)

	assert.Error(t, Frame{Event: EventJoinRoom}.Decode(&roomID))
	assert.True(t, EventSignal.Valid())
	assert.False(t, Event("bogus").Valid())
}

func TestEmotionsTop(t *testing.T) {
	e := Emotions{
		EmotionNeutral:   0.1,
		EmotionHappy:     0.6,
		EmotionSad:       0.05,
		EmotionSurprised: 0.2,
		EmotionAngry:     0.05,
	}

	top := e.Top(3)

	assert.Equal(t, []Score{
		{Label: EmotionHappy, Value: 0.6},
		{Label: EmotionSurprised, Value: 0.2},
		{Label: EmotionNeutral, Value: 0.1},
	}, top)
	assert.Equal(t, EmotionHappy, e.Dominant())
	assert.Len(t, e.Top(10), 5)
	assert.Empty(t, Emotions{}.Dominant())
}

func TestNewRoomID(t *testing.T) {
	id := NewRoomID()

	assert.Len(t, id, RoomIDLength)
	assert.Regexp(t, `^[0-9a-z]{5}$`, id)
}
