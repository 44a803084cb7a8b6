package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
)

func newStreamServer(t *testing.T, hub *Hub, known string) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/ws/sessions/{session_id}", NewWebSocketHandler(hub, func(id string) bool { return id == known }, "*", false).ServeHTTP)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func readEnvelope(t *testing.T, ctx context.Context, c *websocket.Conn) envelope {
	t.Helper()
	_, data, err := c.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return env
}

func TestWebSocketHandler_ReplayLiveAndPing(t *testing.T) {
	hub := NewHub(10)
	hub.Publish("s1", msg(1))
	hub.Publish("s1", msg(2))
	srv := newStreamServer(t, hub, "s1")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/sessions/s1?since=1"
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close(websocket.StatusNormalClosure, "")

	env := readEnvelope(t, ctx, c)
	if env.Type != "message" || env.Message.Seq != 2 {
		t.Fatalf("expected replay of seq 2, got %+v", env)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers("s1") == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	hub.Publish("s1", msg(3))
	env = readEnvelope(t, ctx, c)
	if env.Message == nil || env.Message.Seq != 3 {
		t.Fatalf("expected live seq 3, got %+v", env)
	}

	if err := c.Write(ctx, websocket.MessageText, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	if env := readEnvelope(t, ctx, c); env.Type != "pong" {
		t.Fatalf("expected pong, got %+v", env)
	}

	hub.CloseSession("s1")
	if env := readEnvelope(t, ctx, c); env.Type != "closed" {
		t.Fatalf("expected closed, got %+v", env)
	}
}

func TestWebSocketHandler_UnknownSession(t *testing.T) {
	srv := newStreamServer(t, NewHub(10), "s1")

	resp, err := http.Get(srv.URL + "/ws/sessions/nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestWebSocketHandler_OriginRejected(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/ws/sessions/{session_id}", NewWebSocketHandler(NewHub(1), nil, "https://lab.example", false).ServeHTTP)
	srv := httptest.NewServer(r)
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/ws/sessions/s1", nil)
	req.Header.Set("Origin", "https://evil.example")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}
