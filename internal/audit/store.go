// Package audit provides PostgreSQL-backed storage of flagged moderation
// decisions. Each entry captures who sent what where, the violations raised,
// the detector scores, and the recommended actions, for later moderator
// review of automatic enforcement.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Store manages moderation audit records in PostgreSQL.
type Store struct {
	db *sql.DB
}

// Entry is one flagged decision to be persisted.
type Entry struct {
	ID         string             `json:"id"`
	UserID     string             `json:"user_id"`
	Username   string             `json:"username"`
	Platform   string             `json:"platform"`
	ChannelID  string             `json:"channel_id"`
	Message    string             `json:"message"`
	Violations []string           `json:"violations"`
	Scores     map[string]float64 `json:"scores"`
	Actions    []string           `json:"actions"`
	CreatedAt  time.Time          `json:"created_at"`
}

// NewStore creates an audit store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a flagged decision. Scores are marshalled to JSONB;
// violations and actions are stored as text arrays. The entry id is assigned
// here and returned via entry.ID.
func (s *Store) Create(ctx context.Context, entry *Entry) error {
	entry.ID = uuid.New().String()

	scoresJSON, err := json.Marshal(entry.Scores)
	if err != nil {
		return fmt.Errorf("audit: marshal scores: %w", err)
	}

	const query = `
		INSERT INTO moderation_events (id, user_id, username, platform, channel_id, message, violations, scores, actions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = s.db.ExecContext(ctx, query,
		entry.ID,
		entry.UserID,
		entry.Username,
		entry.Platform,
		entry.ChannelID,
		entry.Message,
		pq.Array(entry.Violations),
		scoresJSON,
		pq.Array(entry.Actions),
	)
	if err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

// Recent returns up to limit flagged decisions, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	const query = `
		SELECT id, user_id, username, platform, channel_id, message, violations, scores, actions, created_at
		FROM moderation_events
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query recent: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var scoresJSON []byte
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.Username, &e.Platform, &e.ChannelID, &e.Message,
			pq.Array(&e.Violations), &scoresJSON, pq.Array(&e.Actions), &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		if len(scoresJSON) > 0 {
			if err := json.Unmarshal(scoresJSON, &e.Scores); err != nil {
				return nil, fmt.Errorf("audit: unmarshal scores: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: rows: %w", err)
	}
	return entries, nil
}
