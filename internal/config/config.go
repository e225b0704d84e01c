// Package config holds the auto-moderation service settings. Every option
// has a default suitable for local development; Load applies environment
// variable overrides on top of Default, following the same pattern as the
// other service binaries (default struct + env overrides, no config files).
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full configuration surface of the moderation service.
type Config struct {
	// Server
	ListenAddr string // address for the HTTP API, e.g. ":8700"

	// Backing services
	RedisAddr   string // Redis for the rate limiter and the redis ledger backend
	NATSURL     string // NATS for async moderation checks ("" disables the worker)
	DatabaseURL string // Postgres for the violation audit log ("" disables auditing)

	// Ledger
	LedgerBackend string // "memory" (per-process) or "redis" (shared across replicas)

	// Toxicity detection
	ToxicityThreshold float64 // 0-1, higher = stricter
	UseClassifier     bool    // call the toxicity classifier service
	ToxicityAPIURL    string  // base URL of the toxicity classifier service
	UseAIModeration   bool    // call the AI personality for contextual review
	AIPersonalityURL  string  // base URL of the AI personality service

	// Spam detection
	SpamThreshold    float64 // total score at or above which a message is spam
	MaxCapsRatio     float64 // max fraction of uppercase characters
	MaxEmojis        int     // max emoji count per message
	MaxMentions      int     // max @mentions per message
	MaxLinks         int     // max links per message
	MinMessageLength int     // messages shorter than this score as spam
	MaxMessageLength int     // messages longer than this score as spam

	// Repeat message detection
	RepeatMessageCount  int           // identical messages within the window that count as flooding
	RepeatMessageWindow time.Duration // sliding window for repeat detection

	// Link moderation
	AllowedDomains  []string // if non-empty, only these domains (and subdomains) are safe
	BlockedDomains  []string // always unsafe
	CheckLinkSafety bool

	// Banned content seeds (runtime additions go through the filter API)
	BannedWords   []string
	BannedPhrases []string

	// Enforcement
	AutoDelete      bool
	AutoTimeout     bool
	AutoBan         bool
	TimeoutDuration time.Duration // base timeout; severe violations double it
	ViolationsForBan int          // ledger entries within 24h before a ban

	// Whitelist
	WhitelistRoles []string // roles exempt from all moderation
	WhitelistUsers []string // user ids exempt from all moderation

	// Rate limiting of the check endpoint (per user id)
	RateLimitEnabled bool
	RateLimitCount   int
	RateLimitWindow  time.Duration

	// Logging
	LogViolations bool // log a line for every flagged message
}

// Default returns the configuration used when no environment overrides are set.
// Thresholds and limits match the platform-wide moderation defaults.
func Default() Config {
	return Config{
		ListenAddr: ":8700",

		RedisAddr:   "localhost:6379",
		NATSURL:     "",
		DatabaseURL: "",

		LedgerBackend: "memory",

		ToxicityThreshold: 0.7,
		UseClassifier:     false,
		ToxicityAPIURL:    "http://toxicity-classifier:8210",
		UseAIModeration:   false,
		AIPersonalityURL:  "http://ai-personality:8200",

		SpamThreshold:    0.6,
		MaxCapsRatio:     0.7,
		MaxEmojis:        10,
		MaxMentions:      5,
		MaxLinks:         2,
		MinMessageLength: 1,
		MaxMessageLength: 500,

		RepeatMessageCount:  3,
		RepeatMessageWindow: 60 * time.Second,

		AllowedDomains:  []string{"youtube.com", "youtu.be", "twitch.tv", "twitter.com", "x.com"},
		BlockedDomains:  nil,
		CheckLinkSafety: true,

		AutoDelete:       true,
		AutoTimeout:      false,
		AutoBan:          false,
		TimeoutDuration:  5 * time.Minute,
		ViolationsForBan: 5,

		WhitelistRoles: []string{"mod", "vip", "broadcaster", "admin"},
		WhitelistUsers: nil,

		RateLimitEnabled: false,
		RateLimitCount:   30,
		RateLimitWindow:  10 * time.Second,

		LogViolations: true,
	}
}

// Load returns Default with environment variable overrides applied.
// Unparseable values are ignored and the default is kept.
func Load() Config {
	c := Default()

	envString(&c.ListenAddr, "LISTEN_ADDR")
	envString(&c.RedisAddr, "REDIS_ADDR")
	envString(&c.NATSURL, "NATS_URL")
	envString(&c.DatabaseURL, "DATABASE_URL")
	envString(&c.LedgerBackend, "LEDGER_BACKEND")

	envFloat(&c.ToxicityThreshold, "TOXICITY_THRESHOLD")
	envBool(&c.UseClassifier, "USE_CLASSIFIER")
	envString(&c.ToxicityAPIURL, "TOXICITY_API_URL")
	envBool(&c.UseAIModeration, "USE_AI_MODERATION")
	envString(&c.AIPersonalityURL, "AI_PERSONALITY_URL")

	envFloat(&c.SpamThreshold, "SPAM_THRESHOLD")
	envFloat(&c.MaxCapsRatio, "MAX_CAPS_RATIO")
	envInt(&c.MaxEmojis, "MAX_EMOJIS")
	envInt(&c.MaxMentions, "MAX_MENTIONS")
	envInt(&c.MaxLinks, "MAX_LINKS")
	envInt(&c.MinMessageLength, "MIN_MESSAGE_LENGTH")
	envInt(&c.MaxMessageLength, "MAX_MESSAGE_LENGTH")

	envInt(&c.RepeatMessageCount, "REPEAT_MESSAGE_COUNT")
	envSeconds(&c.RepeatMessageWindow, "REPEAT_MESSAGE_WINDOW")

	envList(&c.AllowedDomains, "ALLOWED_DOMAINS")
	envList(&c.BlockedDomains, "BLOCKED_DOMAINS")
	envBool(&c.CheckLinkSafety, "CHECK_LINK_SAFETY")

	envList(&c.BannedWords, "BANNED_WORDS")
	envList(&c.BannedPhrases, "BANNED_PHRASES")

	envBool(&c.AutoDelete, "AUTO_DELETE")
	envBool(&c.AutoTimeout, "AUTO_TIMEOUT")
	envBool(&c.AutoBan, "AUTO_BAN")
	envSeconds(&c.TimeoutDuration, "TIMEOUT_DURATION")
	envInt(&c.ViolationsForBan, "VIOLATIONS_FOR_BAN")

	envList(&c.WhitelistRoles, "WHITELIST_ROLES")
	envList(&c.WhitelistUsers, "WHITELIST_USERS")

	envBool(&c.RateLimitEnabled, "RATE_LIMIT_ENABLED")
	envInt(&c.RateLimitCount, "RATE_LIMIT_COUNT")
	envSeconds(&c.RateLimitWindow, "RATE_LIMIT_WINDOW")

	envBool(&c.LogViolations, "LOG_VIOLATIONS")

	return c
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// envSeconds reads a whole number of seconds, matching how the platform's
// other services express window and timeout settings.
func envSeconds(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			*dst = time.Duration(n) * time.Second
		}
	}
}

// envList reads a comma-separated list, trimming whitespace around entries.
// Empty entries are dropped.
func envList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}
