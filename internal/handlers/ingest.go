package handlers

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"device-relay/internal/events"
	"device-relay/internal/extract"
	"device-relay/internal/metrics"
	"device-relay/internal/sender"
)

// IngestResponse is returned for every accepted event, including ones whose
// persistence or delivery failed.
type IngestResponse struct {
	OK        bool                   `json:"ok"`
	ID        string                 `json:"id"`
	KVOK      bool                   `json:"kvOk"`
	Delivered int                    `json:"delivered"`
	Failed    int                    `json:"failed"`
	Results   []sender.ChannelResult `json:"results,omitempty"`
}

// Ingest accepts one device event.
// POST /api/alert
func (h *Handlers) Ingest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	h.metrics.RecordReceived()

	if !h.authorized(r) {
		h.metrics.RecordRejected(metrics.ReasonUnauthorized)
		slog.Warn("Rejected event with bad secret", "remote_addr", r.RemoteAddr)
		writeError(w, http.StatusForbidden, ErrUnauthorized)
		return
	}

	payload, err := decodePayload(r.Body)
	if err != nil {
		h.metrics.RecordRejected(metrics.ReasonMalformed)
		slog.Warn("Rejected undecodable event body", "error", err, "remote_addr", r.RemoteAddr)
		writeError(w, http.StatusBadRequest, err)
		return
	}

	record := events.NewEventRecord(payload, extract.Extract(payload), h.now())

	// From here on the producer always gets 200; a disconnect must not cancel the work.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.processTimeout)
	defer cancel()

	results, storeErr := h.process(ctx, record)

	kvOK := storeErr == nil
	h.metrics.RecordPersisted(kvOK)
	if !kvOK {
		slog.Error("Failed to persist event", "event_id", record.ID, "error", storeErr)
	}

	delivered, failed := sender.Summarize(results)
	h.metrics.RecordProcessed(time.Since(start))

	slog.Info("Event ingested",
		"event_id", record.ID,
		"event_type", record.EventType,
		"kv_ok", kvOK,
		"delivered", delivered,
		"failed", failed,
	)

	writeJSON(w, http.StatusOK, IngestResponse{
		OK:        true,
		ID:        record.ID,
		KVOK:      kvOK,
		Delivered: delivered,
		Failed:    failed,
		Results:   results,
	})
}

// process persists and dispatches the record concurrently. Dispatch runs
// whatever the persistence outcome.
func (h *Handlers) process(ctx context.Context, record *events.EventRecord) ([]sender.ChannelResult, error) {
	var (
		wg       sync.WaitGroup
		storeErr error
		results  []sender.ChannelResult
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		storeErr = h.store.Append(ctx, record)
	}()
	go func() {
		defer wg.Done()
		results = h.dispatcher.Dispatch(ctx, record)
	}()
	wg.Wait()

	return results, storeErr
}

// authorized compares the secret header in constant time. A missing header or
// an unconfigured secret never matches.
func (h *Handlers) authorized(r *http.Request) bool {
	got := r.Header.Get(SecretHeader)
	if got == "" || h.secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) == 1
}
