package ban

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// newTestStore creates a Store connected to a local Redis instance and
// flushes leftover test keys. Tests that call this helper require a running
// Redis on localhost:6379 and are skipped otherwise.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	cleanup := func() {
		for _, pattern := range []string{Prefix + "test_*", ReportsPrefix + "test_*"} {
			iter := client.Scan(ctx, 0, pattern, 100).Iterator()
			for iter.Next(ctx) {
				client.Del(ctx, iter.Val())
			}
		}
	}
	cleanup()
	t.Cleanup(func() {
		cleanup()
		client.Close()
	})
	return NewStore(client)
}

func TestCheck_NotBanned(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec, err := store.Check(ctx, "test_no_ban", "test_no_addr")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec != nil {
		t.Errorf("expected nil record, got %+v", rec)
	}
}

func TestBanAndCheck(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	fp := "test_ban_check"

	if err := store.Ban(ctx, fp, 30*time.Second, "spam"); err != nil {
		t.Fatalf("Ban() error: %v", err)
	}

	rec, err := store.Check(ctx, fp, "")
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if rec == nil {
		t.Fatal("expected a ban record")
	}
	if rec.Reason != "spam" {
		t.Errorf("expected reason %q, got %q", "spam", rec.Reason)
	}
	if rec.Subject != fp {
		t.Errorf("expected subject %q, got %q", fp, rec.Subject)
	}
	remaining := time.Until(rec.Until)
	if remaining <= 0 || remaining > 30*time.Second {
		t.Errorf("expected remaining in (0,30s], got %v", remaining)
	}
}

func TestCheck_BannedByAddress(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	addr := "test_addr_10.0.0.9"

	if err := store.Ban(ctx, addr, time.Minute, "abuse"); err != nil {
		t.Fatalf("Ban() error: %v", err)
	}

	// Identity is clean, but the network address carries a ban.
	rec, err := store.Check(ctx, "test_clean_identity", addr)
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if rec == nil {
		t.Fatal("expected address ban to be found")
	}
	if rec.Subject != addr {
		t.Errorf("expected subject %q, got %q", addr, rec.Subject)
	}
}

func TestUnban(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	fp := "test_unban"

	if err := store.Ban(ctx, fp, time.Minute, "test"); err != nil {
		t.Fatalf("Ban() error: %v", err)
	}

	rec, _ := store.Check(ctx, fp, "")
	if rec == nil {
		t.Fatal("expected banned after Ban()")
	}

	if err := store.Unban(ctx, fp); err != nil {
		t.Fatalf("Unban() error: %v", err)
	}
	rec, err := store.Check(ctx, fp, "")
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if rec != nil {
		t.Errorf("expected not banned after Unban(), got %+v", rec)
	}
}

func TestList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.Ban(ctx, "test_list_a", time.Minute, "spam")
	store.Ban(ctx, "test_list_b", time.Minute, "abuse")

	bans, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}

	found := map[string]bool{}
	for _, rec := range bans {
		found[rec.Subject] = true
	}
	if !found["test_list_a"] || !found["test_list_b"] {
		t.Errorf("expected both test bans in list, got %+v", bans)
	}
}

// ---------------------------------------------------------------------------
// Escalation
// ---------------------------------------------------------------------------

func TestEscalationDuration(t *testing.T) {
	cases := []struct {
		count    int
		expected time.Duration
	}{
		{0, Ban15Min},
		{1, Ban15Min},
		{2, Ban1Hour},
		{3, Ban24Hour},
		{4, Ban24Hour},
		{10, Ban24Hour},
	}
	for _, tc := range cases {
		got := escalationDuration(tc.count)
		if got != tc.expected {
			t.Errorf("escalationDuration(%d) = %v, want %v", tc.count, got, tc.expected)
		}
	}
}

func TestReportAndCheck_BelowThreshold(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	fp := "test_report_below"

	// First report: below threshold.
	banned, duration, err := store.ReportAndCheck(ctx, fp)
	if err != nil {
		t.Fatalf("ReportAndCheck() error: %v", err)
	}
	if banned {
		t.Error("expected banned=false after 1 report")
	}
	if duration != 0 {
		t.Errorf("expected duration=0, got %v", duration)
	}

	// Second report: still below.
	banned, _, err = store.ReportAndCheck(ctx, fp)
	if err != nil {
		t.Fatalf("ReportAndCheck() error: %v", err)
	}
	if banned {
		t.Error("expected banned=false after 2 reports")
	}

	rec, _ := store.Check(ctx, fp, "")
	if rec != nil {
		t.Error("identity should not be banned with only 2 reports")
	}
}

func TestReportAndCheck_AutoBanAt3Reports(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	fp := "test_report_autoban"

	store.ReportAndCheck(ctx, fp)
	store.ReportAndCheck(ctx, fp)

	// Third report triggers the auto-ban.
	banned, duration, err := store.ReportAndCheck(ctx, fp)
	if err != nil {
		t.Fatalf("ReportAndCheck() error: %v", err)
	}
	if !banned {
		t.Fatal("expected banned=true after 3 reports")
	}
	if duration != Ban15Min {
		t.Errorf("first auto-ban: expected %v, got %v", Ban15Min, duration)
	}

	rec, _ := store.Check(ctx, fp, "")
	if rec == nil {
		t.Fatal("expected ban record after auto-ban")
	}
	if rec.Reason != "multiple_reports" {
		t.Errorf("expected reason %q, got %q", "multiple_reports", rec.Reason)
	}
}

func TestReportAndCheck_EscalatesOnRepeatOffenses(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	fp := "test_report_escalate"

	// Reports 1-3: threshold reached, 15 minute ban.
	store.ReportAndCheck(ctx, fp)
	store.ReportAndCheck(ctx, fp)
	store.ReportAndCheck(ctx, fp)

	// Report 4: second offense within the window, 1 hour.
	banned, duration, err := store.ReportAndCheck(ctx, fp)
	if err != nil {
		t.Fatalf("ReportAndCheck() error: %v", err)
	}
	if !banned {
		t.Fatal("expected banned=true for 4th report")
	}
	if duration != Ban1Hour {
		t.Errorf("second offense: expected %v, got %v", Ban1Hour, duration)
	}

	// Report 5: third offense, capped at 24 hours.
	_, duration, _ = store.ReportAndCheck(ctx, fp)
	if duration != Ban24Hour {
		t.Errorf("third offense: expected %v, got %v", Ban24Hour, duration)
	}

	// Report 6: still 24 hours, never permanent.
	_, duration, _ = store.ReportAndCheck(ctx, fp)
	if duration != Ban24Hour {
		t.Errorf("fourth offense: expected %v (capped), got %v", Ban24Hour, duration)
	}
}

func TestReportCounterTTL(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	fp := "test_report_ttl"

	store.ReportAndCheck(ctx, fp)

	// The counter must expire: TTL close to 24h.
	ttl, err := store.client.TTL(ctx, ReportsPrefix+fp).Result()
	if err != nil {
		t.Fatalf("TTL() error: %v", err)
	}
	if ttl < 86390*time.Second || ttl > 86400*time.Second {
		t.Errorf("expected TTL ~24h, got %v", ttl)
	}
}
