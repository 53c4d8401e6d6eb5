package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"device-relay/internal/database"
	"device-relay/internal/sender/validation"
)

// EndpointRegistry stores dispatch destinations beyond the static configuration.
type EndpointRegistry interface {
	UpsertEndpoint(ctx context.Context, ep database.Endpoint) error
}

// RegisterEndpointRequest represents a request to add or toggle a destination.
type RegisterEndpointRequest struct {
	Type    string `json:"type"`  // email, sms, slack, webhook, telegram, kafka, mqtt
	Value   string `json:"value"` // address, URL, chat id or topic
	Enabled *bool  `json:"enabled,omitempty"`
}

// RegisterEndpoint adds a destination to the registry, or updates the enabled
// flag of an existing one. It requires the same secret as ingestion.
// POST /api/endpoints
func (h *Handlers) RegisterEndpoint(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeError(w, http.StatusForbidden, ErrUnauthorized)
		return
	}
	if h.endpoints == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("endpoint registry not configured"))
		return
	}

	var req RegisterEndpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: invalid request body", ErrMalformedInput))
		return
	}
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, errors.New("type is required"))
		return
	}
	if req.Value == "" {
		writeError(w, http.StatusBadRequest, errors.New("value is required"))
		return
	}
	if !validation.IsValidDestination(req.Type, req.Value) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid %s destination: %q", req.Type, req.Value))
		return
	}

	ep := database.Endpoint{
		EndpointID: uuid.NewString(),
		Type:       req.Type,
		Value:      req.Value,
		Enabled:    req.Enabled == nil || *req.Enabled,
	}
	if err := h.endpoints.UpsertEndpoint(r.Context(), ep); err != nil {
		slog.Error("Failed to register endpoint", "error", err, "type", ep.Type)
		writeError(w, http.StatusInternalServerError, errors.New("failed to register endpoint"))
		return
	}

	slog.Info("Registered endpoint", "type", ep.Type, "enabled", ep.Enabled)
	writeJSON(w, http.StatusCreated, struct {
		OK       bool              `json:"ok"`
		Endpoint database.Endpoint `json:"endpoint"`
	}{OK: true, Endpoint: ep})
}
