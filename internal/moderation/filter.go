// Package moderation implements the auto-moderation pipeline: a banned
// word/phrase filter, a multi-signal spam detector, a toxicity detector, and
// the engine that combines their verdicts into a single advisory decision.
package moderation

import (
	"regexp"
	"sort"
	"strings"
	"sync"
)

// substitutions maps characters to the look-alikes people use to slip words
// past exact matching. One substitution pass per character class; variants
// are not combined across classes, which keeps the variant list linear in
// word length instead of exploding combinatorially.
var substitutions = []struct {
	char string
	subs []string
}{
	{"a", []string{"@", "4", "α"}},
	{"e", []string{"3", "ε"}},
	{"i", []string{"1", "!", "í"}},
	{"o", []string{"0", "ο"}},
	{"s", []string{"$", "5", "ς"}},
	{"t", []string{"7", "+"}},
	{"l", []string{"1", "|"}},
}

// cleanPattern strips everything except lowercase alphanumerics and spaces,
// defeating punctuation-based obfuscation like "h.a.t.e".
var cleanPattern = regexp.MustCompile(`[^a-z0-9\s]`)

// bannedWord is one entry in the banned set with everything precomputed at
// insertion time so per-message checks stay bounded by vocabulary size.
type bannedWord struct {
	word     string
	boundary *regexp.Regexp // \b<word>\b against the lowercased message
	mask     *regexp.Regexp // case-insensitive matcher for *** replacement
	variants []string       // word itself, substitution forms, spaced, dotted
}

// FilterResult is the outcome of a banned-content check.
type FilterResult struct {
	HasViolation    bool     `json:"has_violation"`
	Violations      []string `json:"violations"`
	FilteredMessage string   `json:"filtered_message"`
}

// Filter detects banned words and phrases, including common bypass variants.
// Words match on word boundaries, through punctuation stripping, and against
// precomputed leetspeak/spaced/dotted variants; phrases match as plain
// case-insensitive substrings. Safe for concurrent use.
type Filter struct {
	mu      sync.RWMutex
	words   map[string]*bannedWord
	phrases []string
}

// NewFilter creates a filter seeded with the given banned words and phrases.
func NewFilter(words, phrases []string) *Filter {
	f := &Filter{words: make(map[string]*bannedWord)}
	for _, w := range words {
		f.AddBannedWord(w)
	}
	for _, p := range phrases {
		f.AddBannedPhrase(p)
	}
	return f
}

// AddBannedWord adds word to the banned set and precomputes its bypass
// variants and match patterns. Words are stored lowercased.
func (f *Filter) AddBannedWord(word string) {
	lower := strings.ToLower(strings.TrimSpace(word))
	if lower == "" {
		return
	}

	bw := &bannedWord{
		word:     lower,
		boundary: regexp.MustCompile(`\b` + regexp.QuoteMeta(lower) + `\b`),
		mask:     regexp.MustCompile(`(?i)` + regexp.QuoteMeta(lower)),
		variants: generateVariants(lower),
	}

	f.mu.Lock()
	f.words[lower] = bw
	f.mu.Unlock()
}

// AddBannedPhrase adds a phrase matched as a contiguous substring. Phrases
// are stored lowercased; duplicates are ignored.
func (f *Filter) AddBannedPhrase(phrase string) {
	lower := strings.ToLower(strings.TrimSpace(phrase))
	if lower == "" {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.phrases {
		if p == lower {
			return
		}
	}
	f.phrases = append(f.phrases, lower)
}

// RemoveBannedWord removes word and its variants from the banned set.
func (f *Filter) RemoveBannedWord(word string) {
	f.mu.Lock()
	delete(f.words, strings.ToLower(strings.TrimSpace(word)))
	f.mu.Unlock()
}

// BannedWords returns the banned words in sorted order.
func (f *Filter) BannedWords() []string {
	f.mu.RLock()
	words := make([]string, 0, len(f.words))
	for w := range f.words {
		words = append(words, w)
	}
	f.mu.RUnlock()

	sort.Strings(words)
	return words
}

// CheckContent checks message for banned words and phrases. Pure with respect
// to message: no state is mutated and identical inputs yield identical
// results.
//
// FilteredMessage masks exact banned-word matches with "***". Obfuscated and
// variant hits still raise violations but are left unmasked in the filtered
// text, matching the established output contract of the service.
func (f *Filter) CheckContent(message string) FilterResult {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var violations []string
	lower := strings.ToLower(message)
	clean := cleanPattern.ReplaceAllString(lower, "")

	// Deterministic violation order regardless of map iteration.
	words := make([]string, 0, len(f.words))
	for w := range f.words {
		words = append(words, w)
	}
	sort.Strings(words)

	for _, w := range words {
		bw := f.words[w]

		if bw.boundary.MatchString(lower) {
			violations = append(violations, "Banned word: "+w)
		}

		if strings.Contains(clean, w) {
			violations = append(violations, "Banned word (obfuscated): "+w)
		}

		matched := false
		for _, variant := range bw.variants {
			if strings.Contains(lower, variant) {
				matched = true
				break
			}
		}
		// The precomputed list holds one substitution per pass, so a message
		// obfuscating several characters at once ("h4t3") matches none of
		// them. Reversing the substitutions for this word's characters
		// catches those combined forms.
		if !matched && strings.Contains(unsubstitute(lower, w), w) {
			matched = true
		}
		if matched {
			violations = append(violations, "Banned word (variant): "+w)
		}
	}

	for _, phrase := range f.phrases {
		if strings.Contains(lower, phrase) {
			violations = append(violations, "Banned phrase: "+phrase)
		}
	}

	filtered := message
	if len(violations) > 0 {
		for _, w := range words {
			filtered = f.words[w].mask.ReplaceAllString(filtered, "***")
		}
	}

	return FilterResult{
		HasViolation:    len(violations) > 0,
		Violations:      violations,
		FilteredMessage: filtered,
	}
}

// unsubstitute maps look-alike characters in message back to the canonical
// characters that appear in word. Ambiguous look-alikes ("1" stands in for
// both i and l) resolve to whichever of the word's characters comes first in
// the substitution table. The mapping is context-free, so digit- or
// symbol-heavy text can collapse into a banned word and raise a false
// positive; that is the accepted cost of catching multi-character
// obfuscations.
func unsubstitute(message, word string) string {
	for _, s := range substitutions {
		if !strings.Contains(word, s.char) {
			continue
		}
		for _, sub := range s.subs {
			message = strings.ReplaceAll(message, sub, s.char)
		}
	}
	return message
}

// generateVariants builds the bypass variants for a lowercased word: the word
// itself, one variant per substitution character present in the word, and the
// spaced and dotted structural forms. The identity variant is always first.
func generateVariants(word string) []string {
	variants := []string{word}

	for _, s := range substitutions {
		if !strings.Contains(word, s.char) {
			continue
		}
		for _, sub := range s.subs {
			variants = append(variants, strings.ReplaceAll(word, s.char, sub))
		}
	}

	chars := strings.Split(word, "")
	variants = append(variants, strings.Join(chars, " "))
	variants = append(variants, strings.Join(chars, "."))

	return variants
}
