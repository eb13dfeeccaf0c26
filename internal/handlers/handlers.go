package handlers

import (
	"context"
	"encoding/json"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"expense-diary/internal/models"
	"expense-diary/internal/store"
)

// Format is the request/response representation, resolved once at the router
// boundary. JSON callers get JSON bodies with explicit status codes; browser
// callers get redirects or re-rendered forms.
type Format int

const (
	FormatBrowser Format = iota
	FormatJSON
)

type Handler struct {
	Store store.DiaryStore
	Feed  store.ActivityFeed // nil when Redis is not configured
	Tmpl  map[string]*template.Template
}

func NewHandler(s store.DiaryStore, feed store.ActivityFeed, tmpl map[string]*template.Template) *Handler {
	return &Handler{Store: s, Feed: feed, Tmpl: tmpl}
}

// RequestFormat decides whether the caller speaks JSON or forms. A JSON body
// or an Accept header asking for JSON selects the API shape; everything else
// is treated as a browser.
func RequestFormat(r *http.Request) Format {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return FormatJSON
	}
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return FormatJSON
	}
	return FormatBrowser
}

// decodePayload flattens a JSON or form body into string fields, keeping only
// keys the caller actually supplied so partial updates stay partial.
func decodePayload(r *http.Request, format Format) (map[string]string, error) {
	fields := make(map[string]string)

	if format == FormatJSON {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			return nil, err
		}
		for k, v := range payload {
			if v == nil {
				// a null field means "not supplied", same as leaving it out
				continue
			}
			fields[k] = getString(v)
		}
		return fields, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	for k, v := range r.PostForm {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
	return fields, nil
}

func getString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		// json numbers
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Println("encode response:", err)
	}
}

func jsonError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) RenderPage(w http.ResponseWriter, page string, data any) {
	tmpl, ok := h.Tmpl[page]
	if !ok {
		http.Error(w, "Page not found", http.StatusNotFound)
		return
	}
	if err := tmpl.Execute(w, data); err != nil {
		log.Println("Template error:", err)
		http.Error(w, "Template error", http.StatusInternalServerError)
	}
}

// pathID parses the numeric id segment of paths like /edit/42.
func pathID(path, prefix string) (int, error) {
	return strconv.Atoi(strings.TrimPrefix(path, prefix))
}

// publishActivity mirrors an audit entry onto the live feed. Best effort:
// the durable audit row is already committed by the store.
func (h *Handler) publishActivity(ctx context.Context, userID int, actionType string, recordID int) {
	if h.Feed == nil {
		return
	}

	entry := models.AuditLogEntry{
		UserID:     userID,
		ActionType: actionType,
		ActionTime: time.Now().UTC(),
	}
	if recordID != 0 {
		entry.RecordID = &recordID
	}

	if err := h.Feed.Publish(ctx, entry); err != nil {
		log.Println("activity publish:", err)
	}
}
