package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sandeepkv93/realtime-hub/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const meterName = "realtime-hub"

type AppMetrics struct {
	authEventCounter       metric.Int64Counter
	tokenValidationCounter metric.Int64Counter
	repositoryOpCounter    metric.Int64Counter
	presenceEventCounter   metric.Int64Counter
	wsConnectionCounter    metric.Int64Counter
	wsDeliveryCounter      metric.Int64Counter
	relayAttemptCounter    metric.Int64Counter
	relayFailoverCounter   metric.Int64Counter
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		if err := registerAppMetrics(mp.Meter(meterName)); err != nil {
			return nil, err
		}
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)

	if err := registerAppMetrics(mp.Meter(meterName)); err != nil {
		return nil, err
	}
	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func newResource(ctx context.Context, cfg *config.Config) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.OTELServiceName),
			attribute.String("deployment.environment", cfg.OTELEnvironment),
		),
	)
}

func registerAppMetrics(meter metric.Meter) error {
	m := &AppMetrics{}
	counters := []struct {
		name   string
		target *metric.Int64Counter
	}{
		{"auth.events", &m.authEventCounter},
		{"auth.token.validations", &m.tokenValidationCounter},
		{"repository.operations", &m.repositoryOpCounter},
		{"presence.events", &m.presenceEventCounter},
		{"realtime.connections", &m.wsConnectionCounter},
		{"realtime.deliveries", &m.wsDeliveryCounter},
		{"relay.attempts", &m.relayAttemptCounter},
		{"relay.failovers", &m.relayFailoverCounter},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name)
		if err != nil {
			return fmt.Errorf("create counter %s: %w", c.name, err)
		}
		*c.target = counter
	}

	metricsMu.Lock()
	appMetrics = m
	metricsMu.Unlock()
	return nil
}

func currentMetrics() *AppMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return appMetrics
}

func RecordAuthEvent(ctx context.Context, action, status string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.authEventCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("status", status),
	))
}

func RecordTokenValidation(ctx context.Context, outcome, source string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.tokenValidationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("source", source),
	))
}

func RecordRepositoryOperation(ctx context.Context, repo, op, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.repositoryOpCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("repository", repo),
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	))
}

func RecordPresenceEvent(ctx context.Context, event string, n int64) {
	m := currentMetrics()
	if m == nil || n <= 0 {
		return
	}
	m.presenceEventCounter.Add(ctx, n, metric.WithAttributes(attribute.String("event", event)))
}

func RecordConnectionEvent(ctx context.Context, event string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.wsConnectionCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}

func RecordDelivery(ctx context.Context, outcome string, n int) {
	m := currentMetrics()
	if m == nil || n <= 0 {
		return
	}
	m.wsDeliveryCounter.Add(ctx, int64(n), metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordRelayAttempt(ctx context.Context, mode, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.relayAttemptCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("outcome", outcome),
	))
}

func RecordRelayFailover(ctx context.Context, status int) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.relayFailoverCounter.Add(ctx, 1, metric.WithAttributes(attribute.Int("status", status)))
}
