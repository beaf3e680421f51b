package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sandeepkv93/realtime-hub/internal/config"
	"github.com/sandeepkv93/realtime-hub/internal/domain"
	"github.com/sandeepkv93/realtime-hub/internal/health"
	"github.com/sandeepkv93/realtime-hub/internal/realtime"
	"github.com/sandeepkv93/realtime-hub/internal/service"
)

type staticAuthenticator struct{}

func (staticAuthenticator) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	if token != "good" {
		return nil, service.ErrUnauthenticated
	}
	return &domain.User{ID: 9, Name: "carol", Role: domain.RoleUser}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		ShutdownTimeout:              5 * time.Second,
		ShutdownHTTPDrainTimeout:     2 * time.Second,
		ShutdownRealtimeTimeout:      time.Second,
		ShutdownObservabilityTimeout: time.Second,
	}
}

func TestNewAssignsDependenciesAndTimeouts(t *testing.T) {
	cfg := testConfig()
	cfg.TokenSweepInterval = time.Minute
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := &http.Server{Addr: ":8080", ReadHeaderTimeout: time.Second}
	registry := realtime.NewRegistry(time.Second, logger)
	readiness := health.NewProbeRunner(100*time.Millisecond, 50*time.Millisecond)
	stopped := false
	stop := func() { stopped = true }

	a := New(cfg, logger, server, registry, nil, nil, readiness, stop)
	if a.Config != cfg || a.Logger != logger || a.Server != server || a.Registry != registry || a.Readiness != readiness {
		t.Fatal("expected app dependencies to be assigned")
	}
	if a.ShutdownTimeout != cfg.ShutdownTimeout || a.ShutdownHTTPDrainTimeout != cfg.ShutdownHTTPDrainTimeout ||
		a.ShutdownRealtimeTimeout != cfg.ShutdownRealtimeTimeout || a.ShutdownObservabilityTimeout != cfg.ShutdownObservabilityTimeout {
		t.Fatal("expected app shutdown timeouts copied from config")
	}
	if a.TokenSweepInterval != time.Minute {
		t.Fatalf("expected sweep interval copied, got %s", a.TokenSweepInterval)
	}

	a.StopBackgroundTasks()
	if !stopped {
		t.Fatal("expected stop callback to be set")
	}
}

func TestShutdownClosesWebsocketsBeforeDrainingHTTP(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := realtime.NewRegistry(time.Second, logger)
	mux := http.NewServeMux()
	mux.Handle("/ws", realtime.NewHandler(registry, staticAuthenticator{}, realtime.HandlerConfig{}, logger))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	server := &http.Server{Handler: mux, ReadHeaderTimeout: time.Second}
	go func() { _ = server.Serve(ln) }()

	stopped := false
	a := New(testConfig(), logger, server, registry, nil, nil, nil, func() { stopped = true })

	url := "ws://" + ln.Addr().String() + "/ws?token=good"
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	deadline := time.Now().Add(2 * time.Second)
	for !registry.IsOnline(9) {
		if time.Now().After(deadline) {
			t.Fatal("connection never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !stopped {
		t.Fatal("expected background tasks stopped")
	}
	if registry.IsOnline(9) {
		t.Fatal("expected registry drained")
	}

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = client.ReadMessage()
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) || closeErr.Code != websocket.CloseServiceRestart {
		t.Fatalf("expected service restart close, got %v", err)
	}
	if !strings.Contains(closeErr.Text, "shutting down") {
		t.Fatalf("unexpected close reason %q", closeErr.Text)
	}
}

func TestRunStopsWhenContextCancelled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler(), ReadHeaderTimeout: time.Second}
	a := New(testConfig(), logger, server, realtime.NewRegistry(time.Second, logger), nil, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean run exit, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancellation")
	}
}
