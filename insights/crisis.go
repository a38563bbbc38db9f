// Package insights hosts the ML-assisted analysis seams. The sentiment and
// mood-prediction models run in an external service; this package only holds
// the client-side interfaces plus the local crisis keyword screen, which must
// work even when the ML service is down.
package insights

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
)

// Scorer is the opaque interface to the external sentiment service: text in,
// score in [-1, 1] out.
type Scorer interface {
	Score(ctx context.Context, text string) (float64, error)
}

// defaultCrisisKeywords trigger an immediate crisis alert when present in a
// chat message, independent of any model score.
var defaultCrisisKeywords = []string{
	"suicide",
	"kill myself",
	"end my life",
	"self harm",
	"self-harm",
	"hurt myself",
	"want to die",
	"no reason to live",
}

// recommendedActions is the fixed action list carried by a crisis alert.
var recommendedActions = []string{
	"Reach out to a trusted friend or family member",
	"Call or text the 988 Suicide & Crisis Lifeline",
	"Contact your therapist or counselor",
	"If you are in immediate danger, call emergency services",
}

// CrisisDetector screens free text for crisis language. The keyword screen is
// always active; a Scorer widens the net when one is configured.
type CrisisDetector struct {
	keywords  []string
	scorer    Scorer
	threshold float64
}

// CrisisDetectorOption defines a function type to modify the CrisisDetector
// instance.
type CrisisDetectorOption func(*CrisisDetector)

// WithScorer adds a sentiment scorer. Texts scoring at or below threshold are
// flagged even without a keyword hit.
func WithScorer(scorer Scorer, threshold float64) CrisisDetectorOption {
	return func(d *CrisisDetector) {
		d.scorer = scorer
		d.threshold = threshold
	}
}

// NewCrisisDetector builds a detector with the default keyword list.
func NewCrisisDetector(options ...CrisisDetectorOption) *CrisisDetector {
	d := &CrisisDetector{keywords: defaultCrisisKeywords}
	for _, opt := range options {
		opt(d)
	}
	return d
}

// Detect reports whether the text contains crisis language. Matching is
// case-insensitive substring matching; false negatives are worse than false
// positives here. A configured scorer can only add detections, and a scorer
// failure degrades to the keyword screen rather than blocking the message.
func (d *CrisisDetector) Detect(ctx context.Context, text string) bool {
	lowered := strings.ToLower(text)
	for _, keyword := range d.keywords {
		if strings.Contains(lowered, keyword) {
			return true
		}
	}
	if d.scorer == nil || text == "" {
		return false
	}
	score, err := d.scorer.Score(ctx, text)
	if err != nil {
		log.Warn().Err(err).Msg("sentiment scoring failed, keyword screen only")
		return false
	}
	return score <= d.threshold
}

// RecommendedActions returns the action list for a crisis alert payload.
func RecommendedActions() []string {
	out := make([]string, len(recommendedActions))
	copy(out, recommendedActions)
	return out
}
