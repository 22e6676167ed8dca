package ws

import (
	"testing"
	"time"
)

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()

	if cfg.HeartbeatInterval != 30*time.Second {
		t.Errorf("HeartbeatInterval = %v, want 30s", cfg.HeartbeatInterval)
	}
	if cfg.HeartbeatTimeout != 10*time.Second {
		t.Errorf("HeartbeatTimeout = %v, want 10s", cfg.HeartbeatTimeout)
	}
	if cfg.PollBatchSize != defaultPollBatch {
		t.Errorf("PollBatchSize = %d, want %d", cfg.PollBatchSize, defaultPollBatch)
	}
}

func TestNewServer_FillsHeartbeatDefaults(t *testing.T) {
	s := NewServer(ServerConfig{ListenAddr: ":0"}, nil)

	if s.config.HeartbeatInterval != 30*time.Second {
		t.Errorf("zero interval should default to 30s, got %v", s.config.HeartbeatInterval)
	}
	if s.config.HeartbeatTimeout != 10*time.Second {
		t.Errorf("zero timeout should default to 10s, got %v", s.config.HeartbeatTimeout)
	}
}

func TestNewServer_KeepsConfiguredHeartbeat(t *testing.T) {
	s := NewServer(ServerConfig{
		HeartbeatInterval: 5 * time.Second,
		HeartbeatTimeout:  2 * time.Second,
	}, nil)

	if s.config.HeartbeatInterval != 5*time.Second {
		t.Errorf("configured interval overwritten: %v", s.config.HeartbeatInterval)
	}
	if s.config.HeartbeatTimeout != 2*time.Second {
		t.Errorf("configured timeout overwritten: %v", s.config.HeartbeatTimeout)
	}
}

func TestStale(t *testing.T) {
	now := time.Now()
	deadline := 40 * time.Second

	fresh := &Connection{LastPing: now.Add(-10 * time.Second)}
	if stale(fresh, now, deadline) {
		t.Error("connection active 10s ago should not be stale at a 40s deadline")
	}

	onEdge := &Connection{LastPing: now.Add(-deadline)}
	if stale(onEdge, now, deadline) {
		t.Error("connection exactly at the deadline should not be stale yet")
	}

	dead := &Connection{LastPing: now.Add(-deadline - time.Second)}
	if !stale(dead, now, deadline) {
		t.Error("connection past the deadline should be stale")
	}
}

func TestHostOnly(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"10.0.0.1:52114", "10.0.0.1"},
		{"[::1]:8080", "::1"},
		{"10.0.0.1", "10.0.0.1"}, // no port: returned as-is
	}
	for _, tc := range cases {
		if got := hostOnly(tc.in); got != tc.expected {
			t.Errorf("hostOnly(%q) = %q, want %q", tc.in, got, tc.expected)
		}
	}
}
