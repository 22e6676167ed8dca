package messaging

import (
	"encoding/json"
	"log"

	"github.com/driftchat/drift/internal/matching"
	"github.com/driftchat/drift/internal/transcript"
)

// ReportEvent is the report.filed payload.
type ReportEvent struct {
	Reporter string               `json:"reporter"`
	Reported string               `json:"reported"`
	Reason   string               `json:"reason"`
	RoomID   string               `json:"room_id"`
	Messages []transcript.Message `json:"messages,omitempty"`
}

// Sink implements matching.Sink by publishing boundary events over NATS.
// Publishing is fire-and-forget: failures are logged and swallowed so a
// persistence outage never reaches the matching path.
type Sink struct {
	client      *Client
	transcripts bool // when false, only reports are forwarded
}

// NewSink creates a sink over the given client. transcripts controls
// whether transcript logging is enabled.
func NewSink(client *Client, transcripts bool) *Sink {
	return &Sink{client: client, transcripts: transcripts}
}

func (s *Sink) TranscriptOpen(roomID matching.RoomID, memberA, memberB string) {
	if !s.transcripts {
		return
	}
	s.publishTranscript(transcript.Event{
		Type:    transcript.EventOpen,
		RoomID:  string(roomID),
		MemberA: memberA,
		MemberB: memberB,
	})
}

func (s *Sink) TranscriptAppend(roomID matching.RoomID, from, text string, ts int64) {
	if !s.transcripts {
		return
	}
	s.publishTranscript(transcript.Event{
		Type:   transcript.EventAppend,
		RoomID: string(roomID),
		From:   from,
		Text:   text,
		Ts:     ts,
	})
}

func (s *Sink) TranscriptClose(roomID matching.RoomID) {
	if !s.transcripts {
		return
	}
	s.publishTranscript(transcript.Event{
		Type:   transcript.EventClose,
		RoomID: string(roomID),
	})
}

func (s *Sink) FileReport(r matching.Report) {
	data, err := json.Marshal(ReportEvent{
		Reporter: r.ReporterIdentity,
		Reported: r.ReportedIdentity,
		Reason:   r.Reason,
		RoomID:   string(r.RoomID),
		Messages: r.Recent,
	})
	if err != nil {
		log.Printf("[sink] marshal report: %v", err)
		return
	}
	if err := s.client.PublishReport(data); err != nil {
		log.Printf("[sink] publish report: %v", err)
	}
}

func (s *Sink) publishTranscript(ev transcript.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[sink] marshal transcript event: %v", err)
		return
	}
	if err := s.client.PublishTranscript(data); err != nil {
		log.Printf("[sink] publish transcript event: %v", err)
	}
}
