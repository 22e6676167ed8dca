package main

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/driftchat/drift/internal/ban"
	"github.com/driftchat/drift/internal/report"
	"github.com/driftchat/drift/internal/transcript"
)

// API is the moderation console: ban management, report review, and
// transcript lookups. Every route requires the admin token.
type API struct {
	Bans        *ban.Store
	Reports     *report.Store
	Transcripts *transcript.Store
	AdminToken  string
	ReportLimit int
}

// Router builds the HTTP route table.
func (a *API) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(a.authMiddleware)

	r.HandleFunc("/api/bans", a.handleListBans).Methods(http.MethodGet)
	r.HandleFunc("/api/bans", a.handleCreateBan).Methods(http.MethodPost)
	r.HandleFunc("/api/bans/{subject}", a.handleDeleteBan).Methods(http.MethodDelete)
	r.HandleFunc("/api/reports", a.handleListReports).Methods(http.MethodGet)
	r.HandleFunc("/api/transcripts", a.handleListRooms).Methods(http.MethodGet)
	r.HandleFunc("/api/transcripts/{roomID}", a.handleGetTranscript).Methods(http.MethodGet)

	return r
}

// authMiddleware rejects requests without the configured admin token.
func (a *API) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Admin-Token") != a.AdminToken {
			writeError(w, http.StatusUnauthorized, "invalid admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) handleListBans(w http.ResponseWriter, r *http.Request) {
	bans, err := a.Bans.List(r.Context())
	if err != nil {
		log.Printf("[api] list bans: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list bans")
		return
	}
	if bans == nil {
		bans = []ban.Record{}
	}
	writeJSON(w, http.StatusOK, bans)
}

func (a *API) handleCreateBan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject  string `json:"subject"`
		Reason   string `json:"reason"`
		Duration string `json:"duration"` // Go duration string, e.g. "24h"
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Subject == "" {
		writeError(w, http.StatusBadRequest, "subject is required")
		return
	}

	duration := ban.Ban24Hour
	if req.Duration != "" {
		d, err := time.ParseDuration(req.Duration)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "invalid duration")
			return
		}
		duration = d
	}
	if req.Reason == "" {
		req.Reason = "manual"
	}

	if err := a.Bans.Ban(r.Context(), req.Subject, duration, req.Reason); err != nil {
		log.Printf("[api] create ban: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create ban")
		return
	}

	log.Printf("[api] banned subject=%s duration=%s reason=%s", req.Subject, duration, req.Reason)
	writeJSON(w, http.StatusCreated, map[string]string{
		"subject":  req.Subject,
		"reason":   req.Reason,
		"duration": duration.String(),
	})
}

func (a *API) handleDeleteBan(w http.ResponseWriter, r *http.Request) {
	subject := mux.Vars(r)["subject"]

	if err := a.Bans.Unban(r.Context(), subject); err != nil {
		log.Printf("[api] delete ban: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to delete ban")
		return
	}

	log.Printf("[api] unbanned subject=%s", subject)
	w.WriteHeader(http.StatusNoContent)
}

// handleListReports returns the most recent reports. With ?against=<identity>
// it instead returns the 24h report count for that identity, the same window
// the auto-ban escalation uses.
func (a *API) handleListReports(w http.ResponseWriter, r *http.Request) {
	if against := r.URL.Query().Get("against"); against != "" {
		count, err := a.Reports.CountRecent(r.Context(), against, 24*time.Hour)
		if err != nil {
			log.Printf("[api] count reports: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to count reports")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"against": against,
			"window":  "24h",
			"count":   count,
		})
		return
	}

	reports, err := a.Reports.List(r.Context(), a.ReportLimit)
	if err != nil {
		log.Printf("[api] list reports: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	if reports == nil {
		reports = []report.Report{}
	}
	writeJSON(w, http.StatusOK, reports)
}

// handleListRooms returns the rooms a participant took part in, keyed by
// the ?participant= query parameter.
func (a *API) handleListRooms(w http.ResponseWriter, r *http.Request) {
	participant := r.URL.Query().Get("participant")
	if participant == "" {
		writeError(w, http.StatusBadRequest, "participant query parameter is required")
		return
	}

	rooms, err := a.Transcripts.RoomsByParticipant(r.Context(), participant)
	if err != nil {
		log.Printf("[api] list rooms: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list rooms")
		return
	}
	if rooms == nil {
		rooms = []transcript.RoomRecord{}
	}

	type roomResp struct {
		RoomID   string     `json:"room_id"`
		MemberA  string     `json:"member_a"`
		MemberB  string     `json:"member_b"`
		OpenedAt time.Time  `json:"opened_at"`
		ClosedAt *time.Time `json:"closed_at,omitempty"`
	}
	out := make([]roomResp, 0, len(rooms))
	for _, room := range rooms {
		resp := roomResp{
			RoomID:   room.RoomID,
			MemberA:  room.MemberA,
			MemberB:  room.MemberB,
			OpenedAt: room.OpenedAt,
		}
		if room.ClosedAt.Valid {
			t := room.ClosedAt.Time
			resp.ClosedAt = &t
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleGetTranscript(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomID"]

	messages, err := a.Transcripts.FetchByRoom(r.Context(), roomID)
	if err != nil {
		log.Printf("[api] get transcript: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch transcript")
		return
	}
	if messages == nil {
		messages = []transcript.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
