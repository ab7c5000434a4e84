package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/helpmh2023/sekretos-hunt-quest/internal/api/middleware"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/feed"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/metrics"
)

const maxMessageBytes = 4096

func timeNowMillis() int64 {
	return time.Now().UnixMilli()
}

// FeedResponse is a point-in-time view of the visible transmissions.
type FeedResponse struct {
	Messages []feed.VisibleMessage `json:"messages"`
	At       int64                 `json:"at"`
}

// Feed returns the currently visible transmissions, creation-time ascending.
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())
	if session == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	visible, err := h.feed.Visible(r.Context())
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to fetch transmissions")
		return
	}

	h.JSON(w, http.StatusOK, FeedResponse{Messages: visible, At: timeNowMillis()})
}

// TransmitRequest is the publish payload.
type TransmitRequest struct {
	Body string `json:"body"`
}

// TransmitResponse confirms a published transmission.
type TransmitResponse struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"ts"`
	ExpiresAt int64  `json:"expires"`
}

// Transmit publishes one transmission with the fixed TTL.
func (h *Handler) Transmit(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())
	if session == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req TransmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Body) > maxMessageBytes {
		h.Error(w, http.StatusUnprocessableEntity, "body too long (max 4096 bytes)")
		return
	}

	author := feed.Author{
		ID:   session.Profile.ID.String(),
		Name: session.Profile.AgentName,
	}

	msg, err := h.feed.Publish(r.Context(), author, req.Body)
	if err != nil {
		switch {
		case errors.Is(err, feed.ErrEmptyBody):
			h.Error(w, http.StatusBadRequest, "body is required")
		case errors.Is(err, feed.ErrNotAuthenticated):
			h.Error(w, http.StatusUnauthorized, "agent profile not found")
		default:
			h.Error(w, http.StatusInternalServerError, "failed to store transmission")
		}
		return
	}

	metrics.MessagesPublished.Inc()
	h.JSON(w, http.StatusCreated, TransmitResponse{
		ID:        msg.ID,
		CreatedAt: msg.CreatedAt,
		ExpiresAt: msg.ExpiresAt,
	})
}

// FeedStream serves the live feed over server-sent events: one "snapshot"
// event per change of the visible set or countdown, an "error" event if the
// stream breaks.
func (h *Handler) FeedStream(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())
	if session == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.Error(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sub, err := h.feed.Subscribe(r.Context())
	if err != nil {
		h.Error(w, http.StatusServiceUnavailable, "live feed unavailable")
		return
	}
	defer sub.Cancel()

	metrics.FeedSubscriptions.Inc()
	defer metrics.FeedSubscriptions.Dec()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for snap := range sub.C {
		data, err := json.Marshal(snap)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data)
		flusher.Flush()
	}

	// Surface stream failure instead of silently ending with stale data.
	if err := sub.Err(); err != nil {
		fmt.Fprintf(w, "event: error\ndata: {\"error\":\"live feed interrupted\"}\n\n")
		flusher.Flush()
	}
}
