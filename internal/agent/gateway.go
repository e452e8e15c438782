package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/nextlevelbuilder/ircclaw/internal/config"
)

const methodChatSend = "chat.send"

const dialTimeout = 15 * time.Second

// request is the wire frame sent to the gateway.
type request struct {
	Type   string        `json:"type"` // always "req"
	ID     string        `json:"id"`
	Method string        `json:"method"`
	Params requestParams `json:"params"`
}

type requestParams struct {
	SessionKey string `json:"session_key"`
	Message    string `json:"message"`
	Sender     string `json:"sender,omitempty"`
}

// response is the wire frame received from the gateway. Final responses
// carry OK; "chunk" frames stream partial text for the same ID before
// the final frame arrives.
type response struct {
	Type    string           `json:"type"` // "res" or "chunk"
	ID      string           `json:"id"`
	OK      bool             `json:"ok"`
	Payload *responsePayload `json:"payload,omitempty"`
	Error   *responseError   `json:"error,omitempty"`
}

type responsePayload struct {
	Text string `json:"text"`
}

type responseError struct {
	Message string `json:"message"`
}

// GatewayClient talks to the agent gateway over a single WebSocket
// connection, correlating concurrent requests by ID. The connection is
// dialed lazily and re-dialed after failures.
type GatewayClient struct {
	cfg config.GatewayConfig
	log *slog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan response
	closed  bool
}

var _ Invoker = (*GatewayClient)(nil)

// NewGatewayClient builds a client; no connection is made until the
// first Invoke.
func NewGatewayClient(cfg config.GatewayConfig, log *slog.Logger) *GatewayClient {
	return &GatewayClient{
		cfg:     cfg,
		log:     log.With("gateway", cfg.URL),
		pending: make(map[string]chan response),
	}
}

// Invoke forwards one message and relays reply text through req.Reply.
// Each failure gets a fresh correlation ref so users can quote it.
func (c *GatewayClient) Invoke(ctx context.Context, req Request) error {
	id := uuid.NewString()

	timeout := time.Duration(c.cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	respCh, err := c.send(ctx, id, req)
	if err != nil {
		return &InvocationError{Ref: id, Err: err}
	}
	defer c.forget(id)

	for {
		select {
		case <-ctx.Done():
			return &InvocationError{Ref: id, Err: ctx.Err()}
		case resp, ok := <-respCh:
			if !ok {
				return &InvocationError{Ref: id, Err: fmt.Errorf("connection lost")}
			}
			switch {
			case resp.Type == "chunk":
				if resp.Payload != nil && resp.Payload.Text != "" {
					if err := req.Reply(ctx, resp.Payload.Text); err != nil {
						return &InvocationError{Ref: id, Err: err}
					}
				}
			case !resp.OK:
				msg := "gateway error"
				if resp.Error != nil && resp.Error.Message != "" {
					msg = resp.Error.Message
				}
				return &InvocationError{Ref: id, Err: fmt.Errorf("%s", msg)}
			default:
				if resp.Payload != nil && resp.Payload.Text != "" {
					if err := req.Reply(ctx, resp.Payload.Text); err != nil {
						return &InvocationError{Ref: id, Err: err}
					}
				}
				return nil
			}
		}
	}
}

// Close shuts the connection down and fails all in-flight requests.
func (c *GatewayClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.conn != nil {
		c.conn.Close(websocket.StatusNormalClosure, "shutting down")
		c.conn = nil
	}
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	return nil
}

// send registers the pending entry and writes the frame, connecting
// first if needed.
func (c *GatewayClient) send(ctx context.Context, id string, req Request) (chan response, error) {
	frame, err := json.Marshal(request{
		Type:   "req",
		ID:     id,
		Method: methodChatSend,
		Params: requestParams{
			SessionKey: req.SessionKey,
			Message:    req.Message,
			Sender:     req.Sender,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, fmt.Errorf("client closed")
	}
	if c.conn == nil {
		if err := c.dialLocked(ctx); err != nil {
			return nil, err
		}
	}

	ch := make(chan response, 8)
	c.pending[id] = ch
	if err := c.conn.Write(ctx, websocket.MessageText, frame); err != nil {
		delete(c.pending, id)
		return nil, fmt.Errorf("write request: %w", err)
	}
	return ch, nil
}

func (c *GatewayClient) dialLocked(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	headers := http.Header{}
	if c.cfg.Token != "" {
		headers.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	conn, _, err := websocket.Dial(dialCtx, c.cfg.URL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return fmt.Errorf("gateway dial: %w", err)
	}
	conn.SetReadLimit(1 << 20)
	c.conn = conn
	c.log.Info("gateway connected")
	go c.readLoop(conn)
	return nil
}

// readLoop fans responses out to their pending channels until the
// connection dies, then fails everything still in flight. The next
// Invoke re-dials.
func (c *GatewayClient) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(context.Background())
		if err != nil {
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			for id, ch := range c.pending {
				close(ch)
				delete(c.pending, id)
			}
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				c.log.Warn("gateway connection lost", "error", err)
			}
			return
		}

		var resp response
		if err := json.Unmarshal(data, &resp); err != nil {
			c.log.Warn("discarding malformed gateway frame", "error", err)
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		c.mu.Unlock()
		if !ok {
			c.log.Debug("response for unknown request", "id", resp.ID)
			continue
		}
		select {
		case ch <- resp:
		default:
			c.log.Warn("response buffer full, dropping frame", "id", resp.ID)
		}
	}
}

func (c *GatewayClient) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}
