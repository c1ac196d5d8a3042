package hass

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/mmcdole/argus/internal/domain"
	"github.com/mmcdole/argus/internal/metrics"
)

const tracerName = "github.com/mmcdole/argus/internal/hass"

// incoming is any message received from Home Assistant
type incoming struct {
	ID      int             `json:"id"`
	Type    string          `json:"type"`
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   *Error          `json:"error"`
	Message string          `json:"message"`
	Version string          `json:"ha_version"`
}

// WSClient is a Client backed by the Home Assistant websocket API.
type WSClient struct {
	conn    *websocket.Conn
	logger  *slog.Logger
	metrics *metrics.Metrics
	version string

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  int
	pending map[int]chan incoming
	closed  bool
	readErr error
	done    chan struct{}
}

// WebsocketURL converts a Home Assistant base URL into its websocket endpoint.
func WebsocketURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid home assistant url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported url scheme: %q", u.Scheme)
	}
	if !strings.HasSuffix(u.Path, "/api/websocket") {
		u.Path += "/api/websocket"
	}
	return u.String(), nil
}

// Dial connects and authenticates with a long-lived access token.
func Dial(ctx context.Context, baseURL, token string, logger *slog.Logger) (*WSClient, error) {
	if logger == nil {
		logger = slog.Default()
	}

	wsURL, err := WebsocketURL(baseURL)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		logger.Error("home assistant dial failed", "url", wsURL, "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrNotConnected, err)
	}

	c := &WSClient{
		conn:    conn,
		logger:  logger,
		metrics: metrics.Get(),
		nextID:  1,
		pending: make(map[int]chan incoming),
		done:    make(chan struct{}),
	}

	if err := c.authenticate(ctx, token); err != nil {
		conn.Close()
		return nil, err
	}

	go c.readLoop()
	return c, nil
}

func (c *WSClient) authenticate(ctx context.Context, token string) error {
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetReadDeadline(deadline)
		defer c.conn.SetReadDeadline(time.Time{})
	}

	var msg incoming
	if err := c.conn.ReadJSON(&msg); err != nil {
		return fmt.Errorf("failed to read auth request: %w", err)
	}
	if msg.Type != "auth_required" {
		return fmt.Errorf("unexpected message before auth: %s", msg.Type)
	}

	if err := c.conn.WriteJSON(map[string]string{"type": "auth", "access_token": token}); err != nil {
		return fmt.Errorf("failed to send auth: %w", err)
	}

	if err := c.conn.ReadJSON(&msg); err != nil {
		return fmt.Errorf("failed to read auth response: %w", err)
	}
	switch msg.Type {
	case "auth_ok":
		c.version = msg.Version
		c.logger.Info("connected to home assistant", "version", msg.Version)
		return nil
	case "auth_invalid":
		return &Error{Code: ErrCodeUnauthorized, Message: msg.Message}
	default:
		return fmt.Errorf("unexpected auth response: %s", msg.Type)
	}
}

// Version returns the Home Assistant version reported at login.
func (c *WSClient) Version() string { return c.version }

// Call implements Client.
func (c *WSClient) Call(ctx context.Context, request any, result any) error {
	msgType := requestType(request)
	ctx, span := otel.Tracer(tracerName).Start(ctx, "hass.Call")
	span.SetAttributes(attribute.String("hass.message_type", msgType))
	defer span.End()

	start := time.Now()
	err := c.call(ctx, request, result)

	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	c.metrics.BackendCallTotal.WithLabelValues(msgType, status).Inc()
	c.metrics.BackendCallDuration.WithLabelValues(msgType).Observe(time.Since(start).Seconds())
	return err
}

func (c *WSClient) call(ctx context.Context, request any, result any) error {
	payload, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return fmt.Errorf("request must be a JSON object: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrNotConnected
	}
	id := c.nextID
	c.nextID++
	ch := make(chan incoming, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	fields["id"] = json.RawMessage(fmt.Sprint(id))

	c.logger.Debug("home assistant request", "id", id, "type", requestType(request))

	c.writeMu.Lock()
	err = c.conn.WriteJSON(fields)
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	select {
	case msg, ok := <-ch:
		if !ok {
			return domain.ErrNotConnected
		}
		if !msg.Success {
			if msg.Error != nil {
				return msg.Error
			}
			return &Error{Code: ErrCodeUnknown, Message: "request failed"}
		}
		if result == nil || len(msg.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(msg.Result, result); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", requestType(request), err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return domain.ErrNotConnected
	}
}

func (c *WSClient) readLoop() {
	for {
		var msg incoming
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.shutdown(err)
			return
		}
		if msg.Type != "result" {
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[msg.ID]
		c.mu.Unlock()
		if ok {
			ch <- msg
		}
	}
}

func (c *WSClient) shutdown(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.readErr = err
	close(c.done)
	c.logger.Debug("home assistant connection closed", "error", err)
}

// Close closes the connection.
func (c *WSClient) Close() error {
	c.writeMu.Lock()
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	err := c.conn.Close()
	c.shutdown(nil)
	return err
}
