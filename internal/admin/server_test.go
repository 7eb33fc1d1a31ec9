package admin

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/danmuck/clipqueue/internal/queue"
	"github.com/danmuck/clipqueue/internal/testutil/testlog"
)

func newTestServer(t *testing.T) (*Server, *queue.Queue, *EventHub) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := NewEventHub()
	q := queue.New(queue.DefaultConfig(), hub)
	srv := New("node.test", "127.0.0.1:0", "", q, hub, nil)
	srv.RegisterRoutes()
	t.Cleanup(q.Leave)
	return srv, q, hub
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.HTTPRouter().ServeHTTP(w, req)
	return w
}

func TestHealthRoute(t *testing.T) {
	testlog.Start(t)
	srv, _, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health status: %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" || body["node"] != "node.test" {
		t.Fatalf("unexpected health body: %v", body)
	}
}

func TestStatusRouteOffRole(t *testing.T) {
	testlog.Start(t)
	srv, _, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status code: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"role":"off"`) {
		t.Fatalf("expected off role in body: %s", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"connected":false`) {
		t.Fatalf("expected disconnected in body: %s", w.Body.String())
	}
}

func TestHostLifecycleRoutes(t *testing.T) {
	testlog.Start(t)
	srv, q, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/host", map[string]any{
		"port":       0,
		"password":   "secret",
		"queue_name": "team",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("host route: %d body=%s", w.Code, w.Body.String())
	}
	if got := q.Status().Role; got != queue.RoleHost {
		t.Fatalf("expected host role, got %v", got)
	}

	w = doJSON(t, srv, http.MethodGet, "/members", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("members route: %d", w.Code)
	}
	var body struct {
		Members []map[string]any `json:"members"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal members: %v", err)
	}
	if len(body.Members) != 1 {
		t.Fatalf("expected self-only membership, got %d", len(body.Members))
	}

	w = doJSON(t, srv, http.MethodPost, "/leave", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("leave route: %d", w.Code)
	}
	if got := q.Status().Role; got != queue.RoleOff {
		t.Fatalf("expected off role after leave, got %v", got)
	}
}

func TestHostUsesDaemonMemberNameDefault(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	hub := NewEventHub()
	q := queue.New(queue.DefaultConfig(), hub)
	srv := New("node.test", "127.0.0.1:0", "desk-42", q, hub, nil)
	srv.RegisterRoutes()
	t.Cleanup(q.Leave)

	w := doJSON(t, srv, http.MethodPost, "/host", map[string]any{
		"port":       0,
		"password":   "secret",
		"queue_name": "team",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("host status: %d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"member_name":"desk-42"`) {
		t.Fatalf("expected daemon member name in status, got %s", w.Body.String())
	}

	w = doJSON(t, srv, http.MethodPost, "/host", map[string]any{
		"port":        0,
		"password":    "secret",
		"queue_name":  "team",
		"member_name": "alice",
	})
	if !strings.Contains(w.Body.String(), `"member_name":"alice"`) {
		t.Fatalf("expected request member name to win, got %s", w.Body.String())
	}
}

func TestJoinRouteAuthErrorMapsTo401(t *testing.T) {
	testlog.Start(t)

	hostSrv, hostQ, _ := newTestServer(t)
	_ = hostSrv
	st, err := hostQ.StartHost(0, "secret", "q", "")
	if err != nil {
		t.Fatalf("start host: %v", err)
	}
	port := mustPort(t, st.Addr)

	srv, _, _ := newTestServer(t)
	w := doJSON(t, srv, http.MethodPost, "/join", map[string]any{
		"host":     "127.0.0.1",
		"port":     port,
		"password": "wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for rejected join, got %d body=%s", w.Code, w.Body.String())
	}
}

func TestJoinRouteMalformedBody(t *testing.T) {
	testlog.Start(t)
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/join", strings.NewReader("{broken"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.HTTPRouter().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestEventStreamDeliversStatus(t *testing.T) {
	testlog.Start(t)
	srv, _, hub := newTestServer(t)

	ts := httptest.NewServer(srv.HTTPRouter())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial events: %v", err)
	}
	defer conn.Close()

	waitSubscribed(t, hub)
	hub.NotifyStatus(queue.Status{Role: queue.RoleHost, Connected: true})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event Event
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if event.Event != EventStatus {
		t.Fatalf("expected status event, got %q", event.Event)
	}
}

func waitSubscribed(t *testing.T, hub *EventHub) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.SubscriberCount() > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no subscriber registered")
}

func mustPort(t *testing.T, addr string) int {
	t.Helper()
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split addr %q: %v", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port %q: %v", portStr, err)
	}
	return port
}
