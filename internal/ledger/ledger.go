// Package ledger tracks per-user violation timestamps inside a rolling
// 24-hour window. The engine records one entry per violating message and
// consults the count to decide ban escalation.
//
// Two backends implement the same interface: an in-memory ledger (default,
// per-process, history is intentionally lost on restart) and a Redis ledger
// for deployments that run multiple moderation replicas and need a shared
// view of a user's history.
package ledger

import (
	"context"
	"sync"
	"time"
)

// Window is the rolling period a violation stays on a user's record.
const Window = 24 * time.Hour

// Ledger records and counts violations per user id.
type Ledger interface {
	// Record appends a violation timestamp for the user and prunes entries
	// older than Window.
	Record(ctx context.Context, userID string) error

	// Count returns the number of violations inside the trailing Window.
	Count(ctx context.Context, userID string) (int, error)

	// Clear removes the user's entire record (manual moderator reset).
	Clear(ctx context.Context, userID string) error
}

// Memory is the in-process ledger. Entries are pruned on every write and
// read, so the map holds only live history. Safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	entries map[string][]time.Time
	now     func() time.Time
}

// NewMemory returns an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Record appends the current timestamp for userID, pruning expired entries.
func (m *Memory) Record(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.pruneLocked(userID)
	m.entries[userID] = append(kept, m.now())
	return nil
}

// Count returns the number of live violations for userID.
func (m *Memory) Count(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.pruneLocked(userID)
	if len(kept) == 0 {
		delete(m.entries, userID)
		return 0, nil
	}
	m.entries[userID] = kept
	return len(kept), nil
}

// Clear drops the user's record entirely.
func (m *Memory) Clear(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, userID)
	return nil
}

// pruneLocked returns userID's entries newer than the window cutoff.
// Caller must hold m.mu.
func (m *Memory) pruneLocked(userID string) []time.Time {
	cutoff := m.now().Add(-Window)
	entries := m.entries[userID]
	kept := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}
