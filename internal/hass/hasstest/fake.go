// Package hasstest provides an in-memory hass.Client for tests.
package hasstest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Handler answers one request. The request is decoded into a generic map.
type Handler func(request map[string]any) (any, error)

// Client is a scripted hass.Client. Requests are matched by their "type".
type Client struct {
	mu       sync.Mutex
	handlers map[string]Handler
	calls    []map[string]any
}

// NewClient creates a client with no handlers.
func NewClient() *Client {
	return &Client{handlers: make(map[string]Handler)}
}

// Handle registers the handler for a message type.
func (c *Client) Handle(msgType string, h Handler) *Client {
	c.mu.Lock()
	c.handlers[msgType] = h
	c.mu.Unlock()
	return c
}

// Respond registers a fixed response for a message type.
func (c *Client) Respond(msgType string, response any) *Client {
	return c.Handle(msgType, func(map[string]any) (any, error) { return response, nil })
}

// Call implements hass.Client by round-tripping through JSON.
func (c *Client) Call(ctx context.Context, request any, result any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(request)
	if err != nil {
		return err
	}
	var req map[string]any
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}
	msgType, _ := req["type"].(string)

	c.mu.Lock()
	c.calls = append(c.calls, req)
	h, ok := c.handlers[msgType]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("hasstest: no handler for %q", msgType)
	}

	resp, err := h(req)
	if err != nil {
		return err
	}
	if result == nil || resp == nil {
		return nil
	}
	out, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return json.Unmarshal(out, result)
}

// Calls returns the requests received so far, optionally filtered by type.
func (c *Client) Calls(msgType string) []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []map[string]any
	for _, call := range c.calls {
		if msgType == "" || call["type"] == msgType {
			out = append(out, call)
		}
	}
	return out
}

// Reset forgets recorded calls.
func (c *Client) Reset() {
	c.mu.Lock()
	c.calls = nil
	c.mu.Unlock()
}
