package moderation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"

	"golang.org/x/net/publicsuffix"

	"github.com/wavestack/automod/internal/config"
)

// Compiled patterns for spam detection, shared by every call.
var (
	mentionPattern = regexp.MustCompile(`@\w+`)
	linkPattern    = regexp.MustCompile(`https?://\S+`)

	// spamKeywordPatterns are the classic solicitation shapes. The first
	// match wins; later patterns are not checked once one hits.
	spamKeywordPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(buy|sell|cheap|discount|offer|deal).*(now|today|limited)`),
		regexp.MustCompile(`(?i)(click here|check out|visit|go to).*(link|website)`),
		regexp.MustCompile(`(?i)(free|prize|winner|won|claim).*(money|gift|reward)`),
		regexp.MustCompile(`(?i)(dm me|message me|add me).*(discord|telegram|whatsapp)`),
	}
)

// Score deltas per triggered signal. Scores accumulate additively and are
// compared against the spam threshold and the fixed action tiers; they are
// not normalized to [0,1].
const (
	scoreTooShort      = 0.2
	scoreTooLong       = 0.3
	scoreCaps          = 0.4
	scoreEmojis        = 0.3
	scoreMentions      = 0.4
	scoreLinks         = 0.5
	scoreUnsafeLink    = 0.8 // per unsafe link
	scoreRepeatedChars = 0.3
	scoreRepeatFlood   = 0.6
	scoreSpamKeywords  = 0.4
)

// charFloodThreshold is the run length of identical characters that counts
// as flooding.
const charFloodThreshold = 6

// SpamResult is the outcome of a spam check.
type SpamResult struct {
	IsSpam    bool     `json:"is_spam"`
	SpamScore float64  `json:"spam_score"`
	Reasons   []string `json:"reasons"`
	Action    string   `json:"action"` // none, warn, delete, timeout
}

type historyEntry struct {
	message string
	ts      time.Time
}

// SpamDetector scores messages against independent heuristics: length, caps
// ratio, emoji/mention/link counts, link domain safety, character flooding,
// repeat-message flooding, and spam keyword patterns. It keeps a per-user
// message history for repeat detection and a process-lifetime cache of link
// safety verdicts. Safe for concurrent use.
type SpamDetector struct {
	cfg config.Config
	now func() time.Time

	mu        sync.Mutex
	history   map[string][]historyEntry
	linkCache map[string]bool
}

// NewSpamDetector creates a detector with the given settings.
func NewSpamDetector(cfg config.Config) *SpamDetector {
	return &SpamDetector{
		cfg:       cfg,
		now:       time.Now,
		history:   make(map[string][]historyEntry),
		linkCache: make(map[string]bool),
	}
}

// CheckSpam scores message and recommends an action. Users holding a
// whitelisted role short-circuit to a clean result without running any
// checks or touching the message history.
func (d *SpamDetector) CheckSpam(message, userID string, userRoles []string) SpamResult {
	for _, role := range userRoles {
		for _, exempt := range d.cfg.WhitelistRoles {
			if role == exempt {
				return SpamResult{Action: ActionNone}
			}
		}
	}

	var reasons []string
	score := 0.0

	length := len([]rune(message))
	if length < d.cfg.MinMessageLength {
		reasons = append(reasons, "Message too short")
		score += scoreTooShort
	}
	if length > d.cfg.MaxMessageLength {
		reasons = append(reasons, "Message too long")
		score += scoreTooLong
	}

	if ratio := capsRatio(message); ratio > d.cfg.MaxCapsRatio {
		reasons = append(reasons, fmt.Sprintf("Excessive caps (%.0f%%)", ratio*100))
		score += scoreCaps
	}

	if n := countEmojis(message); n > d.cfg.MaxEmojis {
		reasons = append(reasons, fmt.Sprintf("Excessive emojis (%d)", n))
		score += scoreEmojis
	}

	if n := len(mentionPattern.FindAllString(message, -1)); n > d.cfg.MaxMentions {
		reasons = append(reasons, fmt.Sprintf("Excessive mentions (%d)", n))
		score += scoreMentions
	}

	links := linkPattern.FindAllString(message, -1)
	if len(links) > d.cfg.MaxLinks {
		reasons = append(reasons, fmt.Sprintf("Excessive links (%d)", len(links)))
		score += scoreLinks
	}
	for _, link := range links {
		if !d.linkSafe(link) {
			reasons = append(reasons, "Suspicious link: "+link)
			score += scoreUnsafeLink
		}
	}

	if hasCharFlood(message) {
		reasons = append(reasons, "Repeated characters")
		score += scoreRepeatedChars
	}

	if d.checkRepeatFlood(userID, message) {
		reasons = append(reasons, "Repeated message spam")
		score += scoreRepeatFlood
	}

	for _, pattern := range spamKeywordPatterns {
		if pattern.MatchString(message) {
			reasons = append(reasons, "Spam keyword pattern detected")
			score += scoreSpamKeywords
			break
		}
	}

	action := ActionNone
	if score >= d.cfg.SpamThreshold {
		switch {
		case score >= 0.8:
			if d.cfg.AutoTimeout {
				action = ActionTimeout
			} else {
				action = ActionDelete
			}
		case score >= 0.6:
			if d.cfg.AutoDelete {
				action = ActionDelete
			} else {
				action = ActionWarn
			}
		default:
			action = ActionWarn
		}
	}

	return SpamResult{
		IsSpam:    score >= d.cfg.SpamThreshold,
		SpamScore: score,
		Reasons:   reasons,
		Action:    action,
	}
}

// linkSafe reports whether a URL passes the domain policy. Verdicts are
// memoized per URL for the life of the process. Malformed URLs are unsafe,
// not errors.
func (d *SpamDetector) linkSafe(link string) bool {
	if !d.cfg.CheckLinkSafety {
		return true
	}

	d.mu.Lock()
	verdict, cached := d.linkCache[link]
	d.mu.Unlock()
	if cached {
		return verdict
	}

	safe := d.evaluateLink(link)

	d.mu.Lock()
	d.linkCache[link] = safe
	d.mu.Unlock()
	return safe
}

func (d *SpamDetector) evaluateLink(link string) bool {
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return false
	}

	// Registrable domain, e.g. clips.twitch.tv -> twitch.tv. Hosts without
	// a recognizable public suffix are treated as unsafe.
	domain, err := publicsuffix.EffectiveTLDPlusOne(strings.ToLower(u.Hostname()))
	if err != nil {
		return false
	}

	for _, blocked := range d.cfg.BlockedDomains {
		if domain == blocked {
			return false
		}
	}

	if len(d.cfg.AllowedDomains) > 0 {
		for _, allowed := range d.cfg.AllowedDomains {
			if domain == allowed || strings.HasSuffix(domain, "."+allowed) {
				return true
			}
		}
		return false
	}

	return true
}

// checkRepeatFlood records message in the user's history, prunes entries
// older than the repeat window, and reports whether the identical message has
// now been seen at least RepeatMessageCount times inside the window (the
// count includes the message being checked, so with a threshold of 3 the 3rd
// identical submission trips the flag).
func (d *SpamDetector) checkRepeatFlood(userID, message string) bool {
	now := d.now()
	cutoff := now.Add(-d.cfg.RepeatMessageWindow)

	d.mu.Lock()
	defer d.mu.Unlock()

	entries := d.history[userID]
	kept := entries[:0]
	for _, e := range entries {
		if e.ts.After(cutoff) {
			kept = append(kept, e)
		}
	}
	kept = append(kept, historyEntry{message: message, ts: now})
	d.history[userID] = kept

	count := 0
	for _, e := range kept {
		if e.message == message {
			count++
		}
	}
	return count >= d.cfg.RepeatMessageCount
}

// capsRatio returns the fraction of characters that are uppercase.
func capsRatio(message string) float64 {
	runes := []rune(message)
	if len(runes) == 0 {
		return 0
	}
	upper := 0
	for _, r := range runes {
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return float64(upper) / float64(len(runes))
}

// countEmojis counts runes in the common emoji blocks (emoticons, misc
// symbols and pictographs, transport, regional indicators).
func countEmojis(message string) int {
	n := 0
	for _, r := range message {
		switch {
		case r >= 0x1F600 && r <= 0x1F64F,
			r >= 0x1F300 && r <= 0x1F5FF,
			r >= 0x1F680 && r <= 0x1F6FF,
			r >= 0x1F1E0 && r <= 0x1F1FF:
			n++
		}
	}
	return n
}

// hasCharFlood reports whether any character repeats charFloodThreshold or
// more times consecutively. RE2 has no backreferences, so this is a linear
// scan.
func hasCharFlood(message string) bool {
	count := 1
	prev := rune(-1)
	for _, r := range message {
		if r == prev {
			count++
			if count >= charFloodThreshold {
				return true
			}
		} else {
			count = 1
			prev = r
		}
	}
	return false
}
