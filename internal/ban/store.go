// Package ban provides Redis-backed ban management for the moderation gate.
// Ban records are simple key-value pairs with TTL-based expiry:
//
//	Key:   ban:<identity or network address>
//	Value: <reason>
//	TTL:   ban duration (no TTL = permanent)
package ban

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Prefix is the Redis key prefix for ban records.
	Prefix = "ban:"

	// ReportsPrefix is the Redis key prefix for per-identity report
	// counters driving the escalating auto-ban.
	ReportsPrefix = "reports:"

	// Escalating ban durations.
	Ban15Min  = 15 * time.Minute // 1st offense
	Ban1Hour  = 1 * time.Hour    // 2nd offense
	Ban24Hour = 24 * time.Hour   // 3rd+ offense

	// ReportsTTL is how long the report counter lives; without new reports
	// it resets after this window.
	ReportsTTL = 24 * time.Hour

	// AutoBanThreshold is the number of reports within ReportsTTL that
	// triggers an automatic ban.
	AutoBanThreshold = 3
)

// Record is a live ban as seen by callers.
type Record struct {
	Subject string // identity or address the ban is keyed on
	Reason  string
	Until   time.Time // zero when the TTL could not be read or is absent
}

// Store manages ban records in Redis.
type Store struct {
	client *redis.Client
}

// NewStore creates a ban store using the provided Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Check looks for a live ban on either the identity or the network
// address. Returns nil when neither is banned. Redis errors are returned
// so callers can decide; the recommended policy is fail-open.
func (s *Store) Check(ctx context.Context, identity, addr string) (*Record, error) {
	for _, subject := range []string{identity, addr} {
		if subject == "" {
			continue
		}
		rec, err := s.lookup(ctx, subject)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return rec, nil
		}
	}
	return nil, nil
}

func (s *Store) lookup(ctx context.Context, subject string) (*Record, error) {
	key := Prefix + subject

	reason, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rec := &Record{Subject: subject, Reason: reason}

	// The ban exists even if the TTL can't be read; don't swallow it.
	if ttl, err := s.client.TTL(ctx, key).Result(); err == nil && ttl > 0 {
		rec.Until = time.Now().Add(ttl)
	}
	return rec, nil
}

// Ban sets a ban on a subject with the given duration and reason. The ban
// expires automatically.
func (s *Store) Ban(ctx context.Context, subject string, duration time.Duration, reason string) error {
	return s.client.Set(ctx, Prefix+subject, reason, duration).Err()
}

// Unban lifts a ban immediately.
func (s *Store) Unban(ctx context.Context, subject string) error {
	return s.client.Del(ctx, Prefix+subject).Err()
}

// List returns all live bans. Used by the moderation console.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	var out []Record
	iter := s.client.Scan(ctx, 0, Prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		subject := strings.TrimPrefix(iter.Val(), Prefix)
		rec, err := s.lookup(ctx, subject)
		if err != nil {
			return nil, fmt.Errorf("ban: list: %w", err)
		}
		if rec != nil {
			out = append(out, *rec)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("ban: list scan: %w", err)
	}
	return out, nil
}

// escalationDuration returns the ban duration for a given offense count.
func escalationDuration(offenseCount int) time.Duration {
	switch {
	case offenseCount <= 1:
		return Ban15Min
	case offenseCount == 2:
		return Ban1Hour
	default:
		return Ban24Hour
	}
}

// ReportAndCheck increments the report counter for an identity and, when
// the auto-ban threshold (3 reports in 24h) is reached, applies a ban with
// escalating duration (15m, 1h, then 24h). Returns (banned, duration).
func (s *Store) ReportAndCheck(ctx context.Context, identity string) (bool, time.Duration, error) {
	key := ReportsPrefix + identity

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("ban: report incr: %w", err)
	}

	// Set TTL only on first increment so the 24h window doesn't slide.
	if count == 1 {
		if err := s.client.Expire(ctx, key, ReportsTTL).Err(); err != nil {
			return false, 0, fmt.Errorf("ban: report expire: %w", err)
		}
	}

	if count >= AutoBanThreshold {
		duration := escalationDuration(int(count) - AutoBanThreshold + 1)
		if err := s.Ban(ctx, identity, duration, "multiple_reports"); err != nil {
			return false, 0, fmt.Errorf("ban: report ban: %w", err)
		}
		return true, duration, nil
	}

	return false, 0, nil
}
