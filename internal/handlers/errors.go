package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"device-relay/internal/events"
)

// maxBodyBytes caps an ingestion body; devices send a few hundred bytes.
const maxBodyBytes = 1 << 20

var (
	// ErrUnauthorized means the secret header was missing or wrong.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrMalformedInput means the body could not be decoded as an object.
	ErrMalformedInput = errors.New("malformed input")
)

// errorResponse is the body of every rejected request.
type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError writes {ok:false, error} with the given status.
func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{OK: false, Error: err.Error()})
}

// MethodNotAllowed answers requests whose path matched but whose method did not.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

// NotFound answers unknown paths.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, errors.New("not found"))
}

// decodePayload reads an ingestion body. A JSON object is used as is, a JSON
// string holding an object is decoded a second time, and an empty body is an
// empty payload. Everything else wraps ErrMalformedInput.
func decodePayload(body io.Reader) (events.Payload, error) {
	data, err := io.ReadAll(io.LimitReader(body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read body: %v", ErrMalformedInput, err)
	}
	if len(data) > maxBodyBytes {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrMalformedInput, maxBodyBytes)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return events.Payload{}, nil
	}

	v, err := decodeValue(data)
	if err != nil {
		return nil, err
	}

	switch t := v.(type) {
	case map[string]any:
		return events.Payload(t), nil
	case string:
		inner, err := decodeValue([]byte(t))
		if err != nil {
			return nil, err
		}
		if obj, ok := inner.(map[string]any); ok {
			return events.Payload(obj), nil
		}
		return nil, fmt.Errorf("%w: string body does not hold a JSON object", ErrMalformedInput)
	default:
		return nil, fmt.Errorf("%w: body is not a JSON object", ErrMalformedInput)
	}
}

// decodeValue decodes exactly one JSON value, keeping numbers as json.Number.
func decodeValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after JSON value", ErrMalformedInput)
	}
	return v, nil
}
