// Package hass talks to Home Assistant over its websocket API.
package hass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Client is a Home Assistant session. Call sends request (a JSON object with
// a "type" field) and decodes the result into result, which may be nil.
type Client interface {
	Call(ctx context.Context, request any, result any) error
}

// Error is a failure reported by Home Assistant for a single message
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("home assistant error %s: %s", e.Code, e.Message)
}

// Home Assistant error codes
const (
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeUnknown      = "unknown_error"
)

// IsNotFound reports whether err is a not_found error from Home Assistant.
func IsNotFound(err error) bool {
	var hassErr *Error
	if errors.As(err, &hassErr) {
		return hassErr.Code == ErrCodeNotFound
	}
	return false
}

// Call is a typed helper around Client.Call.
func Call[T any](ctx context.Context, client Client, request any) (T, error) {
	var out T
	if err := client.Call(ctx, request, &out); err != nil {
		return out, err
	}
	return out, nil
}

// requestType extracts the "type" field of a request for logging and metrics.
func requestType(request any) string {
	switch r := request.(type) {
	case interface{ MessageType() string }:
		return r.MessageType()
	case map[string]any:
		if t, ok := r["type"].(string); ok {
			return t
		}
	}

	data, err := json.Marshal(request)
	if err != nil {
		return "unknown"
	}
	var probe struct {
		Type string `json:"type"`
	}
	if json.Unmarshal(data, &probe) != nil || probe.Type == "" {
		return "unknown"
	}
	return probe.Type
}
