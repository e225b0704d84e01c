package moderation

import (
	"context"
	"errors"
	"testing"
)

type fakeClassifier struct {
	scores map[string]float64
	err    error
}

func (f fakeClassifier) Predict(ctx context.Context, text string) (map[string]float64, error) {
	return f.scores, f.err
}

type fakeModerator struct {
	toxic  bool
	reason string
	err    error
}

func (f fakeModerator) Judge(ctx context.Context, text string) (bool, string, error) {
	return f.toxic, f.reason, f.err
}

func TestCheckToxicity_NoCapabilities(t *testing.T) {
	d := NewToxicityDetector(nil, nil, 0.7)

	result := d.CheckToxicity(context.Background(), "whatever")
	if result.IsToxic {
		t.Error("null capabilities flagged a message")
	}
	if result.ToxicityScore != 0 {
		t.Errorf("ToxicityScore = %v, want 0", result.ToxicityScore)
	}
	if result.Reason != "" {
		t.Errorf("Reason = %q, want empty", result.Reason)
	}
}

func TestCheckToxicity_ClassifierThreshold(t *testing.T) {
	tests := []struct {
		name       string
		scores     map[string]float64
		wantToxic  bool
		wantScore  float64
		wantReason string
	}{
		{
			"above threshold",
			map[string]float64{"toxic": 0.91, "insult": 0.40},
			true, 0.91, "High toxic score (0.91)",
		},
		{
			"below threshold",
			map[string]float64{"toxic": 0.42, "obscene": 0.10},
			false, 0.42, "",
		},
		{
			"max category wins",
			map[string]float64{"toxic": 0.50, "identity_hate": 0.95},
			true, 0.95, "High identity_hate score (0.95)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewToxicityDetector(fakeClassifier{scores: tt.scores}, nil, 0.7)
			result := d.CheckToxicity(context.Background(), "msg")

			if result.IsToxic != tt.wantToxic {
				t.Errorf("IsToxic = %v, want %v", result.IsToxic, tt.wantToxic)
			}
			if result.ToxicityScore != tt.wantScore {
				t.Errorf("ToxicityScore = %v, want %v", result.ToxicityScore, tt.wantScore)
			}
			if result.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", result.Reason, tt.wantReason)
			}
		})
	}
}

func TestCheckToxicity_ContextualVerdict(t *testing.T) {
	t.Run("flags an otherwise safe message", func(t *testing.T) {
		d := NewToxicityDetector(nil, fakeModerator{toxic: true, reason: "veiled threat"}, 0.7)
		result := d.CheckToxicity(context.Background(), "msg")

		if !result.IsToxic {
			t.Fatal("contextual flag ignored")
		}
		if result.Reason != "AI: veiled threat" {
			t.Errorf("Reason = %q, want AI reason", result.Reason)
		}
	})

	t.Run("classifier reason takes precedence", func(t *testing.T) {
		d := NewToxicityDetector(
			fakeClassifier{scores: map[string]float64{"threat": 0.88}},
			fakeModerator{toxic: true, reason: "something else"},
			0.7,
		)
		result := d.CheckToxicity(context.Background(), "msg")

		if result.Reason != "High threat score (0.88)" {
			t.Errorf("Reason = %q, want classifier reason", result.Reason)
		}
	})

	t.Run("safe verdict never unflags", func(t *testing.T) {
		d := NewToxicityDetector(
			fakeClassifier{scores: map[string]float64{"toxic": 0.95}},
			fakeModerator{toxic: false},
			0.7,
		)
		if result := d.CheckToxicity(context.Background(), "msg"); !result.IsToxic {
			t.Error("SAFE contextual verdict cleared a classifier flag")
		}
	})
}

func TestCheckToxicity_DegradesOpen(t *testing.T) {
	d := NewToxicityDetector(
		fakeClassifier{err: errors.New("model unavailable")},
		fakeModerator{err: errors.New("timeout")},
		0.7,
	)

	result := d.CheckToxicity(context.Background(), "msg")
	if result.IsToxic {
		t.Error("capability failure produced a toxic verdict")
	}
	if result.ToxicityScore != 0 {
		t.Errorf("ToxicityScore = %v, want 0", result.ToxicityScore)
	}
}

func TestCheckHateSpeech(t *testing.T) {
	tests := []struct {
		name   string
		scores map[string]float64
		want   bool
	}{
		{"identity hate", map[string]float64{"identity_hate": 0.8}, true},
		{"insult", map[string]float64{"insult": 0.75}, true},
		{"severe toxic", map[string]float64{"severe_toxic": 0.9}, true},
		{"general toxic only", map[string]float64{"toxic": 0.95}, false},
		{"hate below threshold", map[string]float64{"identity_hate": 0.5}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewToxicityDetector(fakeClassifier{scores: tt.scores}, nil, 0.7)
			if got := d.CheckHateSpeech(context.Background(), "msg"); got != tt.want {
				t.Errorf("CheckHateSpeech() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMaxCategory_DeterministicTieBreak(t *testing.T) {
	scores := map[string]float64{"threat": 0.8, "insult": 0.8}
	for i := 0; i < 10; i++ {
		if category, _ := maxCategory(scores); category != "insult" {
			t.Fatalf("maxCategory tie broke to %q, want %q", category, "insult")
		}
	}
}
