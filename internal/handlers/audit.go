package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"expense-diary/internal/models"
)

// GetAuditHandler returns the current user's audit trail, newest first.
func (h *Handler) GetAuditHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := CurrentUserID(r)

	logs, err := h.Store.ListAudit(r.Context(), userID)
	if err != nil {
		log.Println("list audit:", err)
		jsonError(w, http.StatusInternalServerError, "Server error")
		return
	}
	if logs == nil {
		logs = []models.AuditLogEntry{}
	}

	respondJSON(w, http.StatusOK, map[string]any{"audit_logs": logs})
}

// RecentActivityHandler returns the Redis-backed recent activity list.
func (h *Handler) RecentActivityHandler(w http.ResponseWriter, r *http.Request) {
	if h.Feed == nil {
		jsonError(w, http.StatusServiceUnavailable, "Activity feed not configured")
		return
	}

	userID, _ := CurrentUserID(r)

	entries, err := h.Feed.Recent(r.Context(), userID)
	if err != nil {
		log.Println("recent activity:", err)
		jsonError(w, http.StatusInternalServerError, "Server error")
		return
	}
	if entries == nil {
		entries = []models.AuditLogEntry{}
	}

	respondJSON(w, http.StatusOK, map[string]any{"activity": entries})
}

// EventsHandler streams the current user's audit activity over SSE.
func (h *Handler) EventsHandler(w http.ResponseWriter, r *http.Request) {
	if h.Feed == nil {
		http.Error(w, "Activity feed not configured", http.StatusServiceUnavailable)
		return
	}

	userID, _ := CurrentUserID(r)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	pubsub := h.Feed.Subscribe(r.Context())
	defer pubsub.Close()

	ch := pubsub.Channel()

	fmt.Fprintf(w, "data: %s\n\n", "connected")
	flusher.Flush()

	for {
		select {
		case msg := <-ch:
			// the channel carries every user's events; forward only ours
			var entry models.AuditLogEntry
			if err := json.Unmarshal([]byte(msg.Payload), &entry); err != nil || entry.UserID != userID {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", msg.Payload)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
