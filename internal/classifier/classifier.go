// Package classifier defines the external text-understanding capabilities the
// moderation engine can be wired with: a per-category toxicity classifier and
// a contextual yes/no moderator backed by the AI personality service. Both are
// narrow interfaces with null implementations so callers never branch on
// "is a model configured".
package classifier

import "context"

// Classifier scores text against toxicity categories. Implementations return
// a mapping such as {"toxic": 0.91, "insult": 0.40, ...} with scores in [0,1].
type Classifier interface {
	Predict(ctx context.Context, text string) (map[string]float64, error)
}

// ContextualModerator gives a contextual TOXIC/SAFE judgment with a short
// reason. It can only flag content; a SAFE verdict never overrides other
// detectors.
type ContextualModerator interface {
	Judge(ctx context.Context, text string) (toxic bool, reason string, err error)
}

// NullClassifier is the no-op classifier used when no model is configured.
// It never flags anything.
type NullClassifier struct{}

// Predict returns no category scores.
func (NullClassifier) Predict(ctx context.Context, text string) (map[string]float64, error) {
	return nil, nil
}

// NullModerator is the no-op contextual moderator.
type NullModerator struct{}

// Judge always returns a SAFE verdict.
func (NullModerator) Judge(ctx context.Context, text string) (bool, string, error) {
	return false, "", nil
}
