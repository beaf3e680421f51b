package config

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	loadMetricsOnce sync.Once
	loadCounter     metric.Int64Counter
)

// recordConfigLoad counts config loads by outcome and, on success, by the
// backing services the process will run against.
func recordConfigLoad(ctx context.Context, cfg *Config, profile, outcome, errorClass string) {
	loadMetricsOnce.Do(func() {
		counter, err := otel.Meter("realtime-hub/config").Int64Counter("config.load.events")
		if err == nil {
			loadCounter = counter
		}
	})
	if loadCounter == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("profile", normalizeConfigProfile(profile)),
		attribute.String("outcome", outcome),
		attribute.String("error_class", errorClass),
	}
	if cfg != nil {
		attrs = append(attrs,
			attribute.String("database", cfg.DatabaseDriver()),
			attribute.Bool("presence_cache", cfg.RedisAddr != ""),
			attribute.Bool("memory", cfg.MemoryEnabled),
		)
	}
	loadCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func normalizeConfigProfile(profile string) string {
	v := strings.TrimSpace(strings.ToLower(profile))
	if v == "" {
		return "unknown"
	}
	return v
}

func classifyConfigLoadError(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrInvalid):
		return "validation"
	case errors.Is(err, ErrParse):
		return "parse"
	default:
		return "load"
	}
}
