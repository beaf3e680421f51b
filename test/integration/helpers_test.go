package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sandeepkv93/realtime-hub/internal/app"
	"github.com/sandeepkv93/realtime-hub/internal/config"
	"github.com/sandeepkv93/realtime-hub/internal/di"
)

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type hubServer struct {
	BaseURL string
	Client  *http.Client
	App     *app.App
}

// newHubTestServer builds the full application graph on a temporary sqlite
// file. env entries override configuration for the test.
func newHubTestServer(t *testing.T, env map[string]string) *hubServer {
	t.Helper()
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "hub.db"))
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("WS_HEARTBEAT_TIMEOUT", "5s")
	t.Setenv("RELAY_TIMEOUT", "5s")
	for k, v := range env {
		t.Setenv(k, v)
	}

	cfg, err := config.LoadFile("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	a, err := di.InitializeApp(ctx, cfg, logger, nil)
	if err != nil {
		t.Fatalf("initialize app: %v", err)
	}

	srv := httptest.NewServer(a.Server.Handler)
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Registry.ShutdownAll(shutdownCtx)
		srv.Close()
		a.StopBackgroundTasks()
		_ = a.Observability.Shutdown(shutdownCtx)
	})
	return &hubServer{BaseURL: srv.URL, Client: srv.Client(), App: a}
}

func doRaw(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, raw
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, apiEnvelope) {
	t.Helper()
	resp, raw := doRaw(t, client, method, url, body, headers)
	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode envelope from %s %s: %v body=%s", method, url, err, raw)
	}
	return resp, env
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

type session struct {
	Token  string
	UserID uint
}

// registerAndLogin creates name and returns its session.
func (h *hubServer) registerAndLogin(t *testing.T, name, role string) session {
	t.Helper()
	creds := map[string]string{"name": name, "password": "pass-" + name, "role": role}
	resp, env := doJSON(t, h.Client, http.MethodPost, h.BaseURL+"/api/v1/auth/register", creds, nil)
	if resp.StatusCode != http.StatusCreated || !env.Success {
		t.Fatalf("register %s: status=%d env=%+v", name, resp.StatusCode, env)
	}
	resp, env = doJSON(t, h.Client, http.MethodPost, h.BaseURL+"/api/v1/auth/login", creds, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: status=%d", name, resp.StatusCode)
	}
	var res struct {
		Token string `json:"token"`
		User  struct {
			ID uint `json:"id"`
		} `json:"user"`
	}
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if res.Token == "" || res.User.ID == 0 {
		t.Fatalf("login %s returned %+v", name, res)
	}
	return session{Token: res.Token, UserID: res.User.ID}
}

func (h *hubServer) dialWS(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.BaseURL, "http") + "/api/v1/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (h *hubServer) waitOnline(t *testing.T, userID uint) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !h.App.Registry.IsOnline(userID) {
		if time.Now().After(deadline) {
			t.Fatalf("user %d never registered a connection", userID)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
