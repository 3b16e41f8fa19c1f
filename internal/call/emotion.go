package call

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/mossy-p/emocall/internal/models"
)

// DefaultEmotionInterval matches a 30 fps display refresh.
const DefaultEmotionInterval = time.Second / 30

// Detector infers the expression of the local participant.
type Detector interface {
	// Load prepares the model. It returns ErrModelUnavailable when the
	// model files cannot be obtained.
	Load(ctx context.Context) error
	// Detect returns nil emotions when no face is found.
	Detect(ctx context.Context) (models.Emotions, error)
}

// RunEmotionLoop samples detector every tick and hands each result to sink
// until ctx is cancelled. Detection errors are logged and skipped.
func RunEmotionLoop(ctx context.Context, detector Detector, tick time.Duration, sink func(models.Emotions), log *slog.Logger) {
	if tick <= 0 {
		tick = DefaultEmotionInterval
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		emotions, err := detector.Detect(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Debug("emotion detection failed", slog.Any("error", err))
			continue
		}
		if emotions != nil {
			sink(emotions)
		}
	}
}

// Model manifests served under /models.
var modelManifests = []string{
	"tiny_face_detector_model-weights_manifest.json",
	"face_expression_model-weights_manifest.json",
}

// SyntheticDetector checks that the face-expression model is published by
// the server and then produces a slowly drifting expression. Terminal
// clients have no camera frames to run the model on.
type SyntheticDetector struct {
	ModelsURL string
	Client    *http.Client

	mu     sync.Mutex
	rng    *rand.Rand
	scores models.Emotions
}

func NewSyntheticDetector(modelsURL string, seed uint64) *SyntheticDetector {
	return &SyntheticDetector{
		ModelsURL: modelsURL,
		Client:    &http.Client{Timeout: 10 * time.Second},
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (d *SyntheticDetector) Load(ctx context.Context) error {
	if d.ModelsURL == "" {
		return nil
	}
	for _, name := range modelManifests {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.ModelsURL+"/"+name, nil)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrModelUnavailable, err)
		}
		resp, err := d.Client.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrModelUnavailable, err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%w: %s returned %d", ErrModelUnavailable, name, resp.StatusCode)
		}
	}
	return nil
}

func (d *SyntheticDetector) Detect(ctx context.Context) (models.Emotions, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.scores == nil {
		d.scores = make(models.Emotions, len(models.EmotionLabels))
		for _, label := range models.EmotionLabels {
			d.scores[label] = d.rng.Float64()
		}
	}

	var total float64
	for _, label := range models.EmotionLabels {
		v := d.scores[label] + (d.rng.Float64()-0.5)*0.1
		d.scores[label] = min(max(v, 0.001), 1)
		total += d.scores[label]
	}

	out := make(models.Emotions, len(d.scores))
	for label, v := range d.scores {
		out[label] = v / total
	}
	return out, nil
}
