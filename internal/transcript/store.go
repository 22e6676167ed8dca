package transcript

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Event is the payload published over NATS for transcript lifecycle:
// the chat server emits these and the moderator persists them.
type Event struct {
	Type    string `json:"type"` // "open", "append", "close"
	RoomID  string `json:"room_id"`
	MemberA string `json:"member_a,omitempty"` // open only
	MemberB string `json:"member_b,omitempty"` // open only
	From    string `json:"from,omitempty"`     // append only
	Text    string `json:"text,omitempty"`     // append only
	Ts      int64  `json:"ts,omitempty"`       // append only, unix ms
}

// Event type values.
const (
	EventOpen   = "open"
	EventAppend = "append"
	EventClose  = "close"
)

// RoomRecord is one row of the chat_rooms table.
type RoomRecord struct {
	RoomID   string
	MemberA  string
	MemberB  string
	OpenedAt time.Time
	ClosedAt sql.NullTime
}

// Store persists transcripts in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a transcript store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// OpenRoom records a newly formed room and its member identities.
func (s *Store) OpenRoom(ctx context.Context, roomID, memberA, memberB string) error {
	const query = `
		INSERT INTO chat_rooms (room_id, member_a, member_b)
		VALUES ($1, $2, $3)
		ON CONFLICT (room_id) DO NOTHING`

	if _, err := s.db.ExecContext(ctx, query, roomID, memberA, memberB); err != nil {
		return fmt.Errorf("transcript: open room: %w", err)
	}
	return nil
}

// Append stores one relayed message.
func (s *Store) Append(ctx context.Context, roomID string, msg Message) error {
	const query = `
		INSERT INTO chat_messages (room_id, sender, body, sent_at)
		VALUES ($1, $2, $3, to_timestamp($4::double precision / 1000))`

	if _, err := s.db.ExecContext(ctx, query, roomID, msg.From, msg.Text, msg.Ts); err != nil {
		return fmt.Errorf("transcript: append: %w", err)
	}
	return nil
}

// CloseRoom marks a room's transcript as closed. Closing an already-closed
// or unknown room is a no-op.
func (s *Store) CloseRoom(ctx context.Context, roomID string) error {
	const query = `
		UPDATE chat_rooms SET closed_at = NOW()
		WHERE room_id = $1 AND closed_at IS NULL`

	if _, err := s.db.ExecContext(ctx, query, roomID); err != nil {
		return fmt.Errorf("transcript: close room: %w", err)
	}
	return nil
}

// FetchByRoom returns a room's messages in send order.
func (s *Store) FetchByRoom(ctx context.Context, roomID string) ([]Message, error) {
	const query = `
		SELECT sender, body, (EXTRACT(EPOCH FROM sent_at) * 1000)::bigint
		FROM chat_messages
		WHERE room_id = $1
		ORDER BY sent_at, id`

	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("transcript: fetch by room: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.From, &m.Text, &m.Ts); err != nil {
			return nil, fmt.Errorf("transcript: scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// RoomsByParticipant returns the rooms a given identity took part in,
// newest first.
func (s *Store) RoomsByParticipant(ctx context.Context, identity string) ([]RoomRecord, error) {
	const query = `
		SELECT room_id, member_a, member_b, opened_at, closed_at
		FROM chat_rooms
		WHERE member_a = $1 OR member_b = $1
		ORDER BY opened_at DESC`

	rows, err := s.db.QueryContext(ctx, query, identity)
	if err != nil {
		return nil, fmt.Errorf("transcript: rooms by participant: %w", err)
	}
	defer rows.Close()

	var out []RoomRecord
	for rows.Next() {
		var r RoomRecord
		if err := rows.Scan(&r.RoomID, &r.MemberA, &r.MemberB, &r.OpenedAt, &r.ClosedAt); err != nil {
			return nil, fmt.Errorf("transcript: scan room: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
