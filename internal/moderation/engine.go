package moderation

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/wavestack/automod/internal/config"
	"github.com/wavestack/automod/internal/ledger"
	"github.com/wavestack/automod/internal/metrics"
)

// severity tiers for a violating message.
type severity int

const (
	severityNone severity = iota
	severityMinor
	severityModerate
	severitySevere
)

// severityTiers is evaluated top-down; the first matching predicate wins.
// The count-based severe condition deliberately outranks the score tiers:
// three distinct violations escalate even when no single detector is
// confident on its own.
var severityTiers = []struct {
	level severity
	match func(maxScore float64, violations int) bool
}{
	{severitySevere, func(s float64, n int) bool { return s >= 0.9 || n >= 3 }},
	{severityModerate, func(s float64, n int) bool { return s >= 0.7 }},
	{severityMinor, func(s float64, n int) bool { return s >= 0.5 }},
}

// Engine runs a message through the content filter, toxicity detector, and
// spam detector in order, aggregates their violations and scores, applies the
// severity policy, and maintains the per-user violation ledger that drives
// ban escalation.
//
// Detector scores are keyed "filter", "toxicity", and "spam" in
// Decision.Scores. Filter hits always score 1.0.
type Engine struct {
	cfg      config.Config
	filter   *Filter
	toxicity *ToxicityDetector
	spam     *SpamDetector
	ledger   ledger.Ledger

	whitelistRoles map[string]struct{}
	whitelistUsers map[string]struct{}
}

// NewEngine wires the three detectors and the ledger into an engine.
func NewEngine(cfg config.Config, filter *Filter, toxicity *ToxicityDetector, spam *SpamDetector, l ledger.Ledger) *Engine {
	roles := make(map[string]struct{}, len(cfg.WhitelistRoles))
	for _, r := range cfg.WhitelistRoles {
		roles[r] = struct{}{}
	}
	users := make(map[string]struct{}, len(cfg.WhitelistUsers))
	for _, u := range cfg.WhitelistUsers {
		users[u] = struct{}{}
	}

	return &Engine{
		cfg:            cfg,
		filter:         filter,
		toxicity:       toxicity,
		spam:           spam,
		ledger:         l,
		whitelistRoles: roles,
		whitelistUsers: users,
	}
}

// Filter exposes the engine's content filter for the word/phrase admin API.
func (e *Engine) Filter() *Filter {
	return e.filter
}

// ModerateMessage runs the full pipeline for one message and returns an
// advisory decision. Whitelisted users short-circuit before any detector
// runs and never touch the ledger.
func (e *Engine) ModerateMessage(ctx context.Context, req Request) Decision {
	start := time.Now()
	defer func() {
		metrics.DecisionLatency.Observe(time.Since(start).Seconds())
	}()

	if e.isWhitelisted(req) {
		metrics.ChecksTotal.WithLabelValues("whitelisted").Inc()
		return e.newDecision(false, false, false, 0, nil, nil, "Whitelisted user")
	}

	var violations []string
	scores := make(map[string]float64)

	filterResult := e.filter.CheckContent(req.Message)
	if filterResult.HasViolation {
		violations = append(violations, filterResult.Violations...)
		scores["filter"] = 1.0
		metrics.ViolationsTotal.WithLabelValues("filter").Inc()
	}

	toxicityResult := e.toxicity.CheckToxicity(ctx, req.Message)
	if toxicityResult.IsToxic {
		violations = append(violations, "Toxic content: "+toxicityResult.Reason)
		scores["toxicity"] = toxicityResult.ToxicityScore
		metrics.ViolationsTotal.WithLabelValues("toxicity").Inc()
	}

	spamResult := e.spam.CheckSpam(req.Message, req.UserID, req.UserRoles)
	if spamResult.IsSpam {
		for _, r := range spamResult.Reasons {
			violations = append(violations, "Spam: "+r)
		}
		scores["spam"] = spamResult.SpamScore
		metrics.ViolationsTotal.WithLabelValues("spam").Inc()
	}

	shouldDelete := false
	shouldTimeout := false
	shouldBan := false
	timeoutDuration := e.cfg.TimeoutDuration

	if len(violations) > 0 {
		if err := e.ledger.Record(ctx, req.UserID); err != nil {
			log.Printf("[engine] ledger record failed user=%s: %v", req.UserID, err)
		}

		maxScore := 0.0
		for _, s := range scores {
			if s > maxScore {
				maxScore = s
			}
		}

		level := severityNone
		for _, tier := range severityTiers {
			if tier.match(maxScore, len(violations)) {
				level = tier.level
				break
			}
		}

		switch level {
		case severitySevere:
			shouldDelete = e.cfg.AutoDelete
			shouldTimeout = e.cfg.AutoTimeout
			timeoutDuration = e.cfg.TimeoutDuration * 2

			count, err := e.ledger.Count(ctx, req.UserID)
			if err != nil {
				// Fail open: a ledger outage must not escalate to a ban.
				log.Printf("[engine] ledger count failed user=%s: %v", req.UserID, err)
				count = 0
			}
			if count >= e.cfg.ViolationsForBan {
				shouldBan = e.cfg.AutoBan
			}

		case severityModerate:
			shouldDelete = e.cfg.AutoDelete
			shouldTimeout = e.cfg.AutoTimeout

		case severityMinor:
			shouldDelete = e.cfg.AutoDelete
		}

		if e.cfg.LogViolations {
			log.Printf("[engine] FLAGGED user=%s username=%s platform=%s channel=%s violations=%d max_score=%.2f",
				req.UserID, req.Username, req.Platform, req.ChannelID, len(violations), maxScore)
		}
		metrics.ChecksTotal.WithLabelValues("flagged").Inc()
	} else {
		metrics.ChecksTotal.WithLabelValues("clean").Inc()
	}

	reason := strings.Join(violations, " | ")

	return e.newDecision(shouldDelete, shouldTimeout, shouldBan, timeoutDuration, violations, scores, reason)
}

// UserViolations returns the user's violation count within the rolling
// 24-hour window.
func (e *Engine) UserViolations(ctx context.Context, userID string) (int, error) {
	return e.ledger.Count(ctx, userID)
}

// ClearUserViolations wipes the user's ledger record, e.g. after a manual
// review overturns an automatic action.
func (e *Engine) ClearUserViolations(ctx context.Context, userID string) error {
	return e.ledger.Clear(ctx, userID)
}

func (e *Engine) isWhitelisted(req Request) bool {
	for _, role := range req.UserRoles {
		if _, ok := e.whitelistRoles[role]; ok {
			return true
		}
	}
	_, ok := e.whitelistUsers[req.UserID]
	return ok
}

func (e *Engine) newDecision(del, timeout, ban bool, timeoutDuration time.Duration, violations []string, scores map[string]float64, reason string) Decision {
	if timeoutDuration <= 0 {
		timeoutDuration = e.cfg.TimeoutDuration
	}
	if violations == nil {
		violations = []string{}
	}
	if scores == nil {
		scores = map[string]float64{}
	}

	var actions []string
	if del {
		actions = append(actions, ActionDelete)
		metrics.ActionsTotal.WithLabelValues(ActionDelete).Inc()
	}
	if timeout {
		actions = append(actions, ActionTimeout)
		metrics.ActionsTotal.WithLabelValues(ActionTimeout).Inc()
	}
	if ban {
		actions = append(actions, ActionBan)
		metrics.ActionsTotal.WithLabelValues(ActionBan).Inc()
	}
	if actions == nil {
		actions = []string{}
	}

	return Decision{
		ShouldDelete:    del,
		ShouldTimeout:   timeout,
		ShouldBan:       ban,
		TimeoutDuration: int(timeoutDuration.Seconds()),
		Violations:      violations,
		Scores:          scores,
		Actions:         actions,
		Reason:          reason,
	}
}
