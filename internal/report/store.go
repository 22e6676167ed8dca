// Package report provides PostgreSQL-backed storage for abuse reports:
// who reported whom, the room context, and a snapshot of the last few
// relayed messages for moderator review.
package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/driftchat/drift/internal/transcript"
)

// validReasons matches the CHECK constraint on the abuse_reports table.
var validReasons = map[string]bool{
	"harassment": true,
	"spam":       true,
	"explicit":   true,
	"other":      true,
}

// NormalizeReason maps free-form reason input onto the allowed set,
// defaulting to "other". Report filing never fails on a bad reason.
func NormalizeReason(reason string) string {
	if validReasons[reason] {
		return reason
	}
	return "other"
}

// Report is a single abuse report to persist.
type Report struct {
	ID               int64
	ReporterIdentity string
	ReportedIdentity string
	RoomID           string
	Reason           string
	Messages         []transcript.Message
	CreatedAt        time.Time
}

// Store manages abuse reports in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a report store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts an abuse report. The message snapshot is stored as JSONB.
func (s *Store) Create(ctx context.Context, r *Report) error {
	reason := NormalizeReason(r.Reason)

	var messagesJSON []byte
	if len(r.Messages) > 0 {
		var err error
		messagesJSON, err = json.Marshal(r.Messages)
		if err != nil {
			return fmt.Errorf("report: marshal messages: %w", err)
		}
	}

	const query = `
		INSERT INTO abuse_reports (reporter_identity, reported_identity, room_id, reason, messages)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.ExecContext(ctx, query,
		r.ReporterIdentity,
		r.ReportedIdentity,
		r.RoomID,
		reason,
		messagesJSON,
	)
	if err != nil {
		return fmt.Errorf("report: insert: %w", err)
	}
	return nil
}

// List returns the most recent reports, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Report, error) {
	const query = `
		SELECT id, reporter_identity, reported_identity, room_id, reason,
		       COALESCE(messages, 'null'::jsonb), created_at
		FROM abuse_reports
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("report: list: %w", err)
	}
	defer rows.Close()

	var out []Report
	for rows.Next() {
		var (
			r        Report
			messages []byte
		)
		if err := rows.Scan(&r.ID, &r.ReporterIdentity, &r.ReportedIdentity,
			&r.RoomID, &r.Reason, &messages, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("report: scan: %w", err)
		}
		if err := json.Unmarshal(messages, &r.Messages); err != nil {
			return nil, fmt.Errorf("report: unmarshal messages: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountRecent returns the number of reports filed against an identity
// within the given window.
func (s *Store) CountRecent(ctx context.Context, reportedIdentity string, window time.Duration) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM abuse_reports
		WHERE reported_identity = $1
		  AND created_at >= NOW() - $2::interval`

	var count int
	err := s.db.QueryRowContext(ctx, query, reportedIdentity, window.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("report: count recent: %w", err)
	}
	return count, nil
}
