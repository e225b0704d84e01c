package moderation

import (
	"reflect"
	"strings"
	"testing"
)

func TestNewFilterSeedsContent(t *testing.T) {
	f := NewFilter([]string{"badword"}, []string{"go away"})

	if got := f.BannedWords(); !reflect.DeepEqual(got, []string{"badword"}) {
		t.Fatalf("BannedWords() = %v, want [badword]", got)
	}
	if result := f.CheckContent("please go away now"); !result.HasViolation {
		t.Fatal("seeded phrase not detected")
	}
}

func TestCheckContent_BannedWord(t *testing.T) {
	f := NewFilter([]string{"hate", "scamlink"}, nil)

	tests := []struct {
		name      string
		input     string
		violation string
	}{
		{"exact match", "i hate this", "Banned word: hate"},
		{"case insensitive", "I HATE this", "Banned word: hate"},
		{"mixed case", "HaTe", "Banned word: hate"},
		{"with punctuation", "hate!", "Banned word: hate"},
		{"obfuscated with dots", "h.a.t.e this", "Banned word (obfuscated): hate"},
		{"leetspeak single sub", "h4te this", "Banned word (variant): hate"},
		{"leetspeak multi sub", "h4t3 this", "Banned word (variant): hate"},
		{"spaced out", "h a t e", "Banned word (variant): hate"},
		{"second word", "visit scamlink now", "Banned word: scamlink"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := f.CheckContent(tt.input)
			if !result.HasViolation {
				t.Fatalf("CheckContent(%q).HasViolation = false, want true", tt.input)
			}
			if !containsString(result.Violations, tt.violation) {
				t.Errorf("CheckContent(%q).Violations = %v, want to contain %q",
					tt.input, result.Violations, tt.violation)
			}
		})
	}
}

func TestCheckContent_BannedPhrase(t *testing.T) {
	f := NewFilter(nil, []string{"kill yourself", "Go Die"})

	tests := []struct {
		name    string
		input   string
		blocked bool
	}{
		{"exact phrase", "kill yourself", true},
		{"phrase in sentence", "you should kill yourself now", true},
		{"case insensitive phrase", "KILL YOURSELF", true},
		{"phrase lowercased at insert", "just go die already", true},
		{"words separated", "kill and yourself", false},
		{"clean message", "i love this chat", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := f.CheckContent(tt.input)
			if result.HasViolation != tt.blocked {
				t.Errorf("CheckContent(%q).HasViolation = %v, want %v",
					tt.input, result.HasViolation, tt.blocked)
			}
		})
	}
}

func TestCheckContent_CleanMessage(t *testing.T) {
	f := NewFilter([]string{"badword"}, []string{"banned phrase"})

	msg := "Hello there, lovely stream!"
	result := f.CheckContent(msg)

	if result.HasViolation {
		t.Fatalf("clean message flagged: %v", result.Violations)
	}
	if len(result.Violations) != 0 {
		t.Errorf("Violations = %v, want empty", result.Violations)
	}
	if result.FilteredMessage != msg {
		t.Errorf("FilteredMessage = %q, want original %q", result.FilteredMessage, msg)
	}
}

func TestCheckContent_Idempotent(t *testing.T) {
	f := NewFilter([]string{"hate"}, []string{"no scams"})

	msg := "h4t3 and no scams here"
	first := f.CheckContent(msg)
	second := f.CheckContent(msg)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated checks differ:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestCheckContent_Masking(t *testing.T) {
	f := NewFilter([]string{"badword"}, nil)

	result := f.CheckContent("this BadWord is bad")
	if result.FilteredMessage != "this *** is bad" {
		t.Errorf("FilteredMessage = %q, want %q", result.FilteredMessage, "this *** is bad")
	}

	// Variant hits raise violations but are not masked.
	result = f.CheckContent("this b@dword is bad")
	if !result.HasViolation {
		t.Fatal("variant form not detected")
	}
	if !strings.Contains(result.FilteredMessage, "b@dword") {
		t.Errorf("variant form was masked: %q", result.FilteredMessage)
	}
}

func TestAddRemoveBannedWord(t *testing.T) {
	f := NewFilter(nil, nil)

	f.AddBannedWord("SpamWord")

	result := f.CheckContent("buy SpamWord today")
	if !containsString(result.Violations, "Banned word: spamword") {
		t.Fatalf("added word not detected: %v", result.Violations)
	}
	if got := f.BannedWords(); !reflect.DeepEqual(got, []string{"spamword"}) {
		t.Fatalf("BannedWords() = %v, want [spamword]", got)
	}

	f.RemoveBannedWord("spamword")
	if result := f.CheckContent("buy SpamWord today"); result.HasViolation {
		t.Errorf("removed word still detected: %v", result.Violations)
	}
	if got := f.BannedWords(); len(got) != 0 {
		t.Errorf("BannedWords() after removal = %v, want empty", got)
	}
}

func TestGenerateVariants(t *testing.T) {
	variants := generateVariants("hate")

	if variants[0] != "hate" {
		t.Errorf("first variant = %q, want the word itself", variants[0])
	}
	for _, want := range []string{"h4te", "hat3", "ha7e", "h a t e", "h.a.t.e"} {
		if !containsString(variants, want) {
			t.Errorf("variants of %q missing %q: %v", "hate", want, variants)
		}
	}
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
