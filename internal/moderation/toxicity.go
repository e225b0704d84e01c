package moderation

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/wavestack/automod/internal/classifier"
)

// hateCategories are the classifier categories treated as hate speech.
var hateCategories = []string{"identity_hate", "insult", "severe_toxic"}

// ToxicityResult is the outcome of a toxicity check.
type ToxicityResult struct {
	IsToxic       bool               `json:"is_toxic"`
	ToxicityScore float64            `json:"toxicity_score"`
	Categories    map[string]float64 `json:"categories"`
	Reason        string             `json:"reason,omitempty"`
}

// ToxicityDetector combines a per-category classifier score with an optional
// contextual AI judgment. The contextual verdict can only flag a message,
// never clear one the classifier already flagged, and its reason is used only
// when the classifier did not supply one.
//
// Both capabilities degrade open: a failed or timed-out call means "not toxic
// via that path", never an error to the caller.
type ToxicityDetector struct {
	classifier classifier.Classifier
	contextual classifier.ContextualModerator
	threshold  float64
}

// NewToxicityDetector creates a detector from the given capabilities. Pass
// the null implementations for whichever capability is not configured.
func NewToxicityDetector(c classifier.Classifier, m classifier.ContextualModerator, threshold float64) *ToxicityDetector {
	if c == nil {
		c = classifier.NullClassifier{}
	}
	if m == nil {
		m = classifier.NullModerator{}
	}
	return &ToxicityDetector{classifier: c, contextual: m, threshold: threshold}
}

// CheckToxicity scores message for toxicity.
func (d *ToxicityDetector) CheckToxicity(ctx context.Context, message string) ToxicityResult {
	var result ToxicityResult

	scores, err := d.classifier.Predict(ctx, message)
	if err != nil {
		log.Printf("[toxicity] classifier check failed: %v (degrading open)", err)
	} else if len(scores) > 0 {
		result.Categories = scores
		category, score := maxCategory(scores)
		result.ToxicityScore = score

		if score >= d.threshold {
			result.IsToxic = true
			result.Reason = fmt.Sprintf("High %s score (%.2f)", category, score)
		}
	}

	toxic, reason, err := d.contextual.Judge(ctx, message)
	if err != nil {
		log.Printf("[toxicity] contextual check failed: %v (degrading open)", err)
	} else if toxic {
		result.IsToxic = true
		if result.Reason == "" {
			result.Reason = "AI: " + reason
		}
	}

	return result
}

// CheckHateSpeech reports whether any hate-related category exceeds the
// toxicity threshold.
func (d *ToxicityDetector) CheckHateSpeech(ctx context.Context, message string) bool {
	result := d.CheckToxicity(ctx, message)
	for _, category := range hateCategories {
		if result.Categories[category] > d.threshold {
			return true
		}
	}
	return false
}

// maxCategory returns the highest-scoring category. Ties break on category
// name so results are deterministic.
func maxCategory(scores map[string]float64) (string, float64) {
	categories := make([]string, 0, len(scores))
	for c := range scores {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	best, bestScore := "", 0.0
	for _, c := range categories {
		if scores[c] > bestScore {
			best, bestScore = c, scores[c]
		}
	}
	return best, bestScore
}
