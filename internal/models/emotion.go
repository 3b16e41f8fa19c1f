package models

import "sort"

// Emotion labels produced by the face-expression model.
const (
	EmotionNeutral   = "neutral"
	EmotionHappy     = "happy"
	EmotionSad       = "sad"
	EmotionAngry     = "angry"
	EmotionFearful   = "fearful"
	EmotionDisgusted = "disgusted"
	EmotionSurprised = "surprised"
)

// EmotionLabels lists the model vocabulary in display order.
var EmotionLabels = []string{
	EmotionNeutral,
	EmotionHappy,
	EmotionSad,
	EmotionAngry,
	EmotionFearful,
	EmotionDisgusted,
	EmotionSurprised,
}

// Emotions maps a label to a confidence score in [0,1].
type Emotions map[string]float64

// Score is one entry of an Emotions map.
type Score struct {
	Label string
	Value float64
}

// Top returns the n highest scores, highest first. Ties are broken by label.
func (e Emotions) Top(n int) []Score {
	scores := make([]Score, 0, len(e))
	for label, v := range e {
		scores = append(scores, Score{Label: label, Value: v})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Value != scores[j].Value {
			return scores[i].Value > scores[j].Value
		}
		return scores[i].Label < scores[j].Label
	})
	if n >= 0 && n < len(scores) {
		scores = scores[:n]
	}
	return scores
}

// Dominant returns the label with the highest score, or "" when empty.
func (e Emotions) Dominant() string {
	top := e.Top(1)
	if len(top) == 0 {
		return ""
	}
	return top[0].Label
}
