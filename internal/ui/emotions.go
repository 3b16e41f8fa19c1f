package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mossy-p/emocall/internal/models"
)

const (
	meterWidth  = 20
	meterCount  = 3
	unknownFace = "🤔"
)

var emotionIcons = map[string]string{
	models.EmotionNeutral:   "😐",
	models.EmotionHappy:     "😊",
	models.EmotionSad:       "😢",
	models.EmotionAngry:     "😠",
	models.EmotionFearful:   "😨",
	models.EmotionDisgusted: "🤢",
	models.EmotionSurprised: "😮",
}

// EmotionIcon returns the face shown for a label.
func EmotionIcon(label string) string {
	if icon, ok := emotionIcons[label]; ok {
		return icon
	}
	return unknownFace
}

// EmotionView renders the dominant emotion and the top three meters.
func EmotionView(title string, e models.Emotions) string {
	dominant := e.Dominant()
	if dominant == "" {
		return BoxStyle.Render(fmt.Sprintf("%s\n%s", TitleStyle.Render(title), MutedStyle.Render("no face detected")))
	}

	lines := []string{
		TitleStyle.Render(title),
		fmt.Sprintf("%s %s", EmotionIcon(dominant), BoldStyle.Render(dominant)),
	}
	for _, score := range e.Top(meterCount) {
		lines = append(lines, Meter(score))
	}
	return BoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// Meter renders one score as a labelled bar with a percentage.
func Meter(s models.Score) string {
	v := math.Max(0, math.Min(1, s.Value))
	filled := int(math.Round(v * meterWidth))
	bar := meterFilledStyle.Render(strings.Repeat("█", filled)) +
		meterEmptyStyle.Render(strings.Repeat("░", meterWidth-filled))
	return fmt.Sprintf("%s %s %3.0f%%", meterLabelStyle.Render(s.Label), bar, v*100)
}
