package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/coder/websocket"

	"github.com/nextlevelbuilder/ircclaw/internal/config"
)

// fakeGateway accepts one WS connection and answers chat.send frames
// with the given handler.
func fakeGateway(t *testing.T, handler func(req request) []response) (*httptest.Server, chan string) {
	t.Helper()
	authed := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case authed <- r.Header.Get("Authorization"):
		default:
		}
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer c.CloseNow()
		for {
			_, data, err := c.Read(r.Context())
			if err != nil {
				return
			}
			var req request
			if err := json.Unmarshal(data, &req); err != nil {
				t.Errorf("bad frame: %v", err)
				return
			}
			for _, resp := range handler(req) {
				out, _ := json.Marshal(resp)
				if err := c.Write(r.Context(), websocket.MessageText, out); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, authed
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newTestClient(t *testing.T, srv *httptest.Server, token string) *GatewayClient {
	t.Helper()
	c := NewGatewayClient(config.GatewayConfig{
		URL:        wsURL(srv),
		Token:      token,
		TimeoutSec: 5,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { c.Close() })
	return c
}

func TestInvokeRoundTrip(t *testing.T) {
	srv, authed := fakeGateway(t, func(req request) []response {
		if req.Method != "chat.send" {
			t.Errorf("method = %q", req.Method)
		}
		if req.Params.SessionKey != "irc:libera:alice" {
			t.Errorf("session key = %q", req.Params.SessionKey)
		}
		return []response{{
			Type: "res", ID: req.ID, OK: true,
			Payload: &responsePayload{Text: "echo: " + req.Params.Message},
		}}
	})
	c := newTestClient(t, srv, "tok")

	var replies []string
	err := c.Invoke(context.Background(), Request{
		SessionKey: "irc:libera:alice",
		Message:    "hello",
		Sender:     "alice",
		Reply: func(ctx context.Context, text string) error {
			replies = append(replies, text)
			return nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(replies) != 1 || replies[0] != "echo: hello" {
		t.Fatalf("replies = %v", replies)
	}
	if got := <-authed; got != "Bearer tok" {
		t.Errorf("authorization header = %q", got)
	}
}

func TestInvokeStreamedChunks(t *testing.T) {
	srv, _ := fakeGateway(t, func(req request) []response {
		return []response{
			{Type: "chunk", ID: req.ID, Payload: &responsePayload{Text: "part one"}},
			{Type: "chunk", ID: req.ID, Payload: &responsePayload{Text: "part two"}},
			{Type: "res", ID: req.ID, OK: true},
		}
	})
	c := newTestClient(t, srv, "")

	var replies []string
	err := c.Invoke(context.Background(), Request{
		SessionKey: "irc:libera:#dev",
		Message:    "go",
		Reply: func(ctx context.Context, text string) error {
			replies = append(replies, text)
			return nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(replies) != 2 || replies[0] != "part one" || replies[1] != "part two" {
		t.Fatalf("replies = %v", replies)
	}
}

func TestInvokeGatewayError(t *testing.T) {
	srv, _ := fakeGateway(t, func(req request) []response {
		return []response{{
			Type: "res", ID: req.ID, OK: false,
			Error: &responseError{Message: "model unavailable"},
		}}
	})
	c := newTestClient(t, srv, "")

	err := c.Invoke(context.Background(), Request{
		SessionKey: "irc:libera:alice",
		Message:    "hello",
		Reply:      func(ctx context.Context, text string) error { return nil },
	})
	var inv *InvocationError
	if !errors.As(err, &inv) {
		t.Fatalf("got %v, want InvocationError", err)
	}
	if inv.Ref == "" {
		t.Error("error has no correlation ref")
	}
	if !strings.Contains(inv.Error(), "model unavailable") {
		t.Errorf("cause missing from %q", inv.Error())
	}
}

func TestInvokeAfterClose(t *testing.T) {
	srv, _ := fakeGateway(t, func(req request) []response { return nil })
	c := newTestClient(t, srv, "")
	c.Close()

	err := c.Invoke(context.Background(), Request{
		SessionKey: "irc:libera:alice",
		Message:    "hello",
		Reply:      func(ctx context.Context, text string) error { return nil },
	})
	if err == nil {
		t.Fatal("invoke succeeded on closed client")
	}
}
