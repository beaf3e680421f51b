package config

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	AppEnv   string `mapstructure:"APP_ENV"`
	HTTPAddr string `mapstructure:"HTTP_ADDR"`

	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	HTTPBodyLimitBytes int64  `mapstructure:"HTTP_BODY_LIMIT_BYTES"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	SQLitePath  string `mapstructure:"SQLITE_PATH"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	RedisPrefix   string `mapstructure:"REDIS_PREFIX"`
	// Upper bound for the startup connection retry; zero disables retries.
	RedisConnectTimeout time.Duration `mapstructure:"REDIS_CONNECT_TIMEOUT"`

	TokenTTL           time.Duration `mapstructure:"TOKEN_TTL"`
	TokenSweepInterval time.Duration `mapstructure:"TOKEN_SWEEP_INTERVAL"`
	RejectedTokenTTL   time.Duration `mapstructure:"REJECTED_TOKEN_TTL"`
	PresenceCacheTTL   time.Duration `mapstructure:"PRESENCE_CACHE_TTL"`
	AllowAdminSignup   bool          `mapstructure:"ALLOW_ADMIN_SIGNUP"`

	WSHeartbeatTimeout time.Duration `mapstructure:"WS_HEARTBEAT_TIMEOUT"`
	WSWriteTimeout     time.Duration `mapstructure:"WS_WRITE_TIMEOUT"`
	WSMaxMessageBytes  int64         `mapstructure:"WS_MAX_MESSAGE_BYTES"`

	RelayTimeout       time.Duration `mapstructure:"RELAY_TIMEOUT"`
	RelayRetryStatuses string        `mapstructure:"RELAY_RETRY_STATUSES"`
	MemoryEnabled      bool          `mapstructure:"MEMORY_ENABLED"`
	MemoryLimit        int           `mapstructure:"MEMORY_LIMIT"`

	ShutdownTimeout              time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
	ShutdownHTTPDrainTimeout     time.Duration `mapstructure:"SHUTDOWN_HTTP_DRAIN_TIMEOUT"`
	ShutdownRealtimeTimeout      time.Duration `mapstructure:"SHUTDOWN_REALTIME_TIMEOUT"`
	ShutdownObservabilityTimeout time.Duration `mapstructure:"SHUTDOWN_OBSERVABILITY_TIMEOUT"`

	OTELServiceName           string        `mapstructure:"OTEL_SERVICE_NAME"`
	OTELEnvironment           string        `mapstructure:"OTEL_ENVIRONMENT"`
	OTELExporterOTLPEndpoint  string        `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTELExporterOTLPInsecure  bool          `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	OTELMetricsEnabled        bool          `mapstructure:"OTEL_METRICS_ENABLED"`
	OTELTracingEnabled        bool          `mapstructure:"OTEL_TRACING_ENABLED"`
	OTELLogsEnabled           bool          `mapstructure:"OTEL_LOGS_ENABLED"`
	OTELMetricsExportInterval time.Duration `mapstructure:"OTEL_METRICS_EXPORT_INTERVAL"`
	OTELTraceSamplingRatio    float64       `mapstructure:"OTEL_TRACE_SAMPLING_RATIO"`
	OTELHTTPEnabled           bool          `mapstructure:"OTEL_HTTP_ENABLED"`
	LogLevel                  string        `mapstructure:"LOG_LEVEL"`

	retryStatuses []int
}

var defaults = map[string]any{
	"APP_ENV":                        "development",
	"HTTP_ADDR":                      ":8080",
	"CORS_ALLOWED_ORIGINS":           "*",
	"HTTP_BODY_LIMIT_BYTES":          1 << 20,
	"DATABASE_URL":                   "",
	"SQLITE_PATH":                    "realtime-hub.db",
	"REDIS_ADDR":                     "",
	"REDIS_PASSWORD":                 "",
	"REDIS_DB":                       0,
	"REDIS_PREFIX":                   "hub",
	"REDIS_CONNECT_TIMEOUT":          "10s",
	"TOKEN_TTL":                      "168h",
	"TOKEN_SWEEP_INTERVAL":           "10m",
	"REJECTED_TOKEN_TTL":             "1m",
	"PRESENCE_CACHE_TTL":             "168h",
	"ALLOW_ADMIN_SIGNUP":             true,
	"WS_HEARTBEAT_TIMEOUT":           "30s",
	"WS_WRITE_TIMEOUT":               "10s",
	"WS_MAX_MESSAGE_BYTES":           1 << 20,
	"RELAY_TIMEOUT":                  "30s",
	"RELAY_RETRY_STATUSES":           "429,502,503",
	"MEMORY_ENABLED":                 false,
	"MEMORY_LIMIT":                   3,
	"SHUTDOWN_TIMEOUT":               "20s",
	"SHUTDOWN_HTTP_DRAIN_TIMEOUT":    "10s",
	"SHUTDOWN_REALTIME_TIMEOUT":      "5s",
	"SHUTDOWN_OBSERVABILITY_TIMEOUT": "5s",
	"OTEL_SERVICE_NAME":              "realtime-hub",
	"OTEL_ENVIRONMENT":               "development",
	"OTEL_EXPORTER_OTLP_ENDPOINT":    "localhost:4317",
	"OTEL_EXPORTER_OTLP_INSECURE":    true,
	"OTEL_METRICS_ENABLED":           false,
	"OTEL_TRACING_ENABLED":           false,
	"OTEL_LOGS_ENABLED":              false,
	"OTEL_METRICS_EXPORT_INTERVAL":   "15s",
	"OTEL_TRACE_SAMPLING_RATIO":      1.0,
	"OTEL_HTTP_ENABLED":              false,
	"LOG_LEVEL":                      "info",
}

var (
	ErrParse   = errors.New("parse config")
	ErrInvalid = errors.New("validate config")
)

func Load() (*Config, error) {
	return LoadFile(".env")
}

func LoadFile(path string) (*Config, error) {
	cfg, err := load(path)
	profile := ""
	if cfg != nil {
		profile = cfg.AppEnv
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	recordConfigLoad(context.Background(), cfg, profile, outcome, classifyConfigLoadError(err))
	return cfg, err
}

func load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		_ = v.ReadInConfig()
	}
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	statuses, err := ParseStatusList(cfg.RelayRetryStatuses)
	if err != nil {
		return nil, fmt.Errorf("%w: RELAY_RETRY_STATUSES: %w", ErrParse, err)
	}
	cfg.retryStatuses = statuses
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.HTTPAddr) == "" {
		errs = append(errs, errors.New("HTTP_ADDR is required"))
	}
	if c.DatabaseURL == "" && c.SQLitePath == "" {
		errs = append(errs, errors.New("DATABASE_URL or SQLITE_PATH is required"))
	}
	if c.TokenTTL < 0 {
		errs = append(errs, errors.New("TOKEN_TTL must not be negative"))
	}
	if c.RejectedTokenTTL < 0 {
		errs = append(errs, errors.New("REJECTED_TOKEN_TTL must not be negative"))
	}
	if c.WSHeartbeatTimeout <= 0 {
		errs = append(errs, errors.New("WS_HEARTBEAT_TIMEOUT must be positive"))
	}
	if c.WSWriteTimeout <= 0 {
		errs = append(errs, errors.New("WS_WRITE_TIMEOUT must be positive"))
	}
	if c.RelayTimeout <= 0 {
		errs = append(errs, errors.New("RELAY_TIMEOUT must be positive"))
	}
	if c.HTTPBodyLimitBytes <= 0 {
		errs = append(errs, errors.New("HTTP_BODY_LIMIT_BYTES must be positive"))
	}
	if c.MemoryLimit < 0 {
		errs = append(errs, errors.New("MEMORY_LIMIT must not be negative"))
	}
	if c.OTELTraceSamplingRatio < 0 || c.OTELTraceSamplingRatio > 1 {
		errs = append(errs, errors.New("OTEL_TRACE_SAMPLING_RATIO must be within [0,1]"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// DatabaseDriver reports which gorm driver DATABASE_URL / SQLITE_PATH select.
func (c *Config) DatabaseDriver() string {
	if c.DatabaseURL != "" {
		return "postgres"
	}
	return "sqlite"
}

func (c *Config) CORSOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// RetryStatuses returns the statuses that move a streaming relay on to the
// next candidate. An empty RELAY_RETRY_STATUSES yields an empty, non-nil
// list, which turns failover on status codes off.
func (c *Config) RetryStatuses() []int {
	if c.retryStatuses == nil {
		statuses, err := ParseStatusList(c.RelayRetryStatuses)
		if err != nil {
			return []int{429, 502, 503}
		}
		return statuses
	}
	return append([]int{}, c.retryStatuses...)
}

func ParseStatusList(raw string) ([]int, error) {
	out := []int{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		code, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid status %q", part)
		}
		if code < 100 || code > 599 {
			return nil, fmt.Errorf("status %d out of range", code)
		}
		out = append(out, code)
	}
	return out, nil
}
