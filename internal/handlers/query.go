package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"device-relay/internal/events"
	"device-relay/internal/metrics"
)

const (
	noCacheHeader = "no-store, no-cache, must-revalidate, max-age=0"
	noStoreHeader = "no-store"
)

// RecentResponse lists recent events, newest first.
type RecentResponse struct {
	OK    bool                 `json:"ok"`
	KVOK  *bool                `json:"kvOk,omitempty"`
	Error string               `json:"error,omitempty"`
	Count int                  `json:"count"`
	Items []events.EventRecord `json:"items"`
}

// LastResponse carries the most recent event, or null.
type LastResponse struct {
	OK    bool                `json:"ok"`
	Error string              `json:"error,omitempty"`
	Last  *events.EventRecord `json:"last"`
}

// Recent returns up to limit recent events. A missing or invalid limit means
// the full history. Store failures still answer 200 with ok:false.
// GET /api/recent
func (h *Handlers) Recent(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", noCacheHeader)

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	items, err := h.store.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to read recent events", "error", err)
		kvOK := false
		writeJSON(w, http.StatusOK, RecentResponse{
			OK:    false,
			KVOK:  &kvOK,
			Error: err.Error(),
			Items: []events.EventRecord{},
		})
		return
	}
	if items == nil {
		items = []events.EventRecord{}
	}

	writeJSON(w, http.StatusOK, RecentResponse{OK: true, Count: len(items), Items: items})
}

// Last returns the newest event.
// GET /api/last
func (h *Handlers) Last(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", noStoreHeader)

	last, err := h.store.Latest(r.Context())
	if err != nil {
		slog.Error("Failed to read latest event", "error", err)
		writeJSON(w, http.StatusOK, LastResponse{OK: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, LastResponse{OK: true, Last: last})
}

// Stats returns the in-process service metrics snapshot, or with ?service=
// the last report that service wrote to Redis.
// GET /api/stats
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", noStoreHeader)

	if name := r.URL.Query().Get("service"); name != "" {
		if h.statsReader == nil {
			writeError(w, http.StatusServiceUnavailable, errors.New("metrics reader not configured"))
			return
		}
		snapshot, err := h.statsReader.ServiceMetrics(r.Context(), name)
		if err != nil {
			slog.Warn("Failed to get service metrics", "service", name, "error", err)
			// Report the service as offline instead of failing
			snapshot = &metrics.ServiceMetrics{ServiceName: name, Status: "offline"}
		}
		writeJSON(w, http.StatusOK, snapshot)
		return
	}

	if h.stats == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("metrics collector not configured"))
		return
	}
	writeJSON(w, http.StatusOK, h.stats.Snapshot())
}

// Health reports liveness.
// GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
