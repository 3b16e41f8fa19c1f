package models

import (
	"encoding/json"
	"errors"
)

// EnvelopeKind classifies a signaling envelope.
type EnvelopeKind string

const (
	EnvelopeOffer     EnvelopeKind = "offer"
	EnvelopeAnswer    EnvelopeKind = "answer"
	EnvelopeCandidate EnvelopeKind = "candidate"
	EnvelopeUnknown   EnvelopeKind = ""
)

var ErrEmptyEnvelope = errors.New("empty envelope")

// Envelope mirrors the browser's RTCSessionDescriptionInit and
// RTCIceCandidateInit JSON shapes so both can travel in the same field.
// The relay never decodes it; only clients do.
type Envelope struct {
	Type string `json:"type,omitempty"`
	SDP  string `json:"sdp,omitempty"`

	Candidate        string  `json:"candidate,omitempty"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

// Kind reports which of offer, answer or candidate the envelope carries.
func (e Envelope) Kind() EnvelopeKind {
	switch {
	case e.Type == string(EnvelopeOffer) && e.SDP != "":
		return EnvelopeOffer
	case e.Type == string(EnvelopeAnswer) && e.SDP != "":
		return EnvelopeAnswer
	case e.Candidate != "":
		return EnvelopeCandidate
	}
	return EnvelopeUnknown
}

// ParseEnvelope decodes a raw signal payload.
func ParseEnvelope(raw json.RawMessage) (Envelope, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return Envelope{}, ErrEmptyEnvelope
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}
