package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sandeepkv93/realtime-hub/internal/config"
)

func TestRecordersAreNilSafeBeforeInit(t *testing.T) {
	metricsMu.Lock()
	prev := appMetrics
	appMetrics = nil
	metricsMu.Unlock()
	t.Cleanup(func() {
		metricsMu.Lock()
		appMetrics = prev
		metricsMu.Unlock()
	})

	ctx := context.Background()
	RecordAuthEvent(ctx, "login", "success")
	RecordTokenValidation(ctx, "valid", "bearer")
	RecordRepositoryOperation(ctx, "token", "create", "success")
	RecordPresenceEvent(ctx, "evicted", 2)
	RecordConnectionEvent(ctx, "accepted")
	RecordDelivery(ctx, "delivered", 1)
	RecordRelayAttempt(ctx, "stream", "success")
	RecordRelayFailover(ctx, 503)
}

func TestInitRuntimeDisabledExportersRegistersCounters(t *testing.T) {
	cfg := &config.Config{OTELServiceName: "realtime-hub-test"}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rt, err := InitRuntime(context.Background(), cfg, logger, nil)
	if err != nil {
		t.Fatalf("init runtime: %v", err)
	}
	t.Cleanup(func() { _ = rt.Shutdown(context.Background()) })
	if currentMetrics() == nil {
		t.Fatal("expected app metrics to be registered")
	}
	RecordRelayFailover(context.Background(), 429)
}

func TestInitLoggingRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	logger, lp, err := InitLogging(context.Background(), &config.Config{LogLevel: "warn"}, &buf)
	if err != nil {
		t.Fatalf("init logging: %v", err)
	}
	if lp != nil {
		t.Fatal("expected no logger provider when otlp logs disabled")
	}
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("unexpected log output: %s", out)
	}
}

func TestAuditIncludesRequestFields(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	req := httptest.NewRequest("POST", "/api/v1/auth/login", nil)
	req.Header.Set("X-Request-Id", "req-123")
	Audit(req, "auth.login", "outcome", "success")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode audit record: %v", err)
	}
	if rec["event"] != "auth.login" || rec["request_id"] != "req-123" || rec["outcome"] != "success" {
		t.Fatalf("unexpected audit record: %+v", rec)
	}
}
