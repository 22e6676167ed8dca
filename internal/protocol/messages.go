// Package protocol defines the WebSocket message types exchanged between
// client and server. All messages are JSON with a consistent envelope
// carrying a type discriminator.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Client -> Server message types.
const (
	TypeSetFingerprint = "set_fingerprint"
	TypeSetProfile     = "set_profile"
	TypeSearch         = "search"
	TypeCancelSearch   = "cancel_search"
	TypeMessage        = "message"
	TypeTyping         = "typing"
	TypeEndChat        = "end_chat"
	TypeReport         = "report"
	TypePing           = "ping"
)

// Server -> Client message types.
const (
	TypeSessionCreated = "session_created"
	TypeProfileSet     = "profile_set"
	TypeQueueStatus    = "queue_status"
	TypePartnerFound   = "partner_found"
	TypePartnerLeft    = "partner_left"
	TypeRoomClosed     = "room_closed"
	TypeBanned         = "banned"
	TypeRateLimited    = "rate_limited"
	TypeError          = "error"
	TypePong           = "pong"
)

// Envelope holds the message type and the raw JSON payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON captures the full raw bytes and extracts only the "type"
// field so the payload can be decoded later into the right struct.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// Profile is the public profile shape carried on the wire, both inbound
// (set_profile) and in partner_found notifications.
type Profile struct {
	Gender  string `json:"gender"`
	Age     int    `json:"age"`
	Country string `json:"country,omitempty"`
}

// ---------------------------------------------------------------------------
// Client -> Server message structs
// ---------------------------------------------------------------------------

// SetFingerprintMsg associates a browser fingerprint hash with the
// connection for ban enforcement.
type SetFingerprintMsg struct {
	Type        string `json:"type"`
	Fingerprint string `json:"fingerprint"`
}

// SetProfileMsg sets or replaces the connection's own profile.
type SetProfileMsg struct {
	Type    string `json:"type"`
	Profile Profile `json:"profile"`
}

// SearchMsg enters the waiting registry with partner acceptance criteria.
// Any prior filter for this connection is replaced.
type SearchMsg struct {
	Type       string   `json:"type"`
	Gender     string   `json:"gender"`
	AgeBuckets []string `json:"age_buckets"`
	Country    string   `json:"country"`
}

// CancelSearchMsg leaves the waiting registry.
type CancelSearchMsg struct {
	Type string `json:"type"`
}

// ChatMsg is a text message for the current partner.
type ChatMsg struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TypingMsg signals whether the client is currently typing.
type TypingMsg struct {
	Type     string `json:"type"`
	IsTyping bool   `json:"is_typing"`
}

// EndChatMsg ends the current chat.
type EndChatMsg struct {
	Type string `json:"type"`
}

// ReportMsg reports the current chat partner.
type ReportMsg struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// PingMsg is a client-initiated keepalive ping.
type PingMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Server -> Client message structs
// ---------------------------------------------------------------------------

// SessionCreatedMsg is sent when a new connection is established.
type SessionCreatedMsg struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connection_id"`
}

// ProfileSetMsg echoes the normalized profile back to the client.
type ProfileSetMsg struct {
	Type    string  `json:"type"`
	Profile Profile `json:"profile"`
}

// QueueStatusMsg reports the current waiting registry size.
type QueueStatusMsg struct {
	Type string `json:"type"`
	Size int    `json:"size"`
}

// PartnerFoundMsg announces a successful match.
type PartnerFoundMsg struct {
	Type        string  `json:"type"`
	RoomID      string  `json:"room_id"`
	PeerProfile Profile `json:"peer_profile"`
}

// ServerChatMsg is a text message relayed from the partner.
type ServerChatMsg struct {
	Type string `json:"type"`
	From string `json:"from"`
	Text string `json:"text"`
	Ts   int64  `json:"ts"`
}

// ServerTypingMsg relays the partner's typing indicator.
type ServerTypingMsg struct {
	Type     string `json:"type"`
	IsTyping bool   `json:"is_typing"`
}

// PartnerLeftMsg tells the remaining member why the chat terminated:
// "ended", "disconnected", or "requeued".
type PartnerLeftMsg struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// RoomClosedMsg marks the room as gone.
type RoomClosedMsg struct {
	Type string `json:"type"`
}

// BannedMsg refuses admission to search; the connection is closed after it.
type BannedMsg struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
	Until  int64  `json:"until"` // unix seconds, 0 = unknown
}

// RateLimitedMsg is sent when the client exceeded a rate limit.
type RateLimitedMsg struct {
	Type       string `json:"type"`
	RetryAfter int    `json:"retry_after"`
}

// ErrorMsg communicates an error condition.
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PongMsg is the server's response to a client ping.
type PongMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// ParseClientMessage parses raw WebSocket bytes into a typed client message.
// It returns the message type, the decoded struct, and any parse error. An
// error is returned for unknown or server-only message types.
func ParseClientMessage(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse message: %w", err)
	}

	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypeSetFingerprint:
		var m SetFingerprintMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeSetProfile:
		var m SetProfileMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeSearch:
		var m SearchMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeCancelSearch:
		var m CancelSearchMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeMessage:
		var m ChatMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeTyping:
		var m TypingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeEndChat:
		var m EndChatMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeReport:
		var m ReportMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypePing:
		var m PingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown client message type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}

// NewServerMessage JSON-encodes a server message, injecting msgType under
// the "type" key.
func NewServerMessage(msgType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("protocol: failed to unmarshal payload into map: %w", err)
	}

	m["type"] = msgType

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal server message: %w", err)
	}
	return out, nil
}
