package relay

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/sandeepkv93/realtime-hub/internal/domain"
	"github.com/sandeepkv93/realtime-hub/internal/observability"
	"github.com/sandeepkv93/realtime-hub/internal/service"
)

const (
	ModerationMessage = "content blocked by safety review"

	defaultTimeout     = 30 * time.Second
	maxErrorBodyBytes  = 64 << 10
	streamBufferBytes  = 32 << 10
	maxBufferedReplyMB = 16
)

var DefaultRetryStatuses = []int{http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable}

type ExecutorConfig struct {
	// Timeout bounds a buffered call and the wait for a streaming response
	// head. Streaming bodies are bounded only by the caller's context.
	Timeout       time.Duration
	RetryStatuses []int
	Transport     http.RoundTripper
}

type Executor struct {
	base    http.RoundTripper
	timeout time.Duration
	retry   map[int]struct{}
	logger  *slog.Logger
	now     func() time.Time
}

func NewExecutor(cfg ExecutorConfig, logger *slog.Logger) *Executor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RetryStatuses == nil {
		cfg.RetryStatuses = DefaultRetryStatuses
	}
	base := cfg.Transport
	if base == nil {
		base = otelhttp.NewTransport(http.DefaultTransport)
	}
	if logger == nil {
		logger = slog.Default()
	}
	retry := make(map[int]struct{}, len(cfg.RetryStatuses))
	for _, s := range cfg.RetryStatuses {
		retry[s] = struct{}{}
	}
	return &Executor{base: base, timeout: cfg.Timeout, retry: retry, logger: logger, now: time.Now}
}

func (e *Executor) clientFor(m domain.ModelConfig) *http.Client {
	if m.APIKey == "" {
		return &http.Client{Transport: e.base}
	}
	return &http.Client{Transport: &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: m.APIKey, TokenType: "Bearer"}),
		Base:   e.base,
	}}
}

func (e *Executor) post(ctx context.Context, m domain.ModelConfig, body CompletionBody) (*http.Response, error) {
	body.Model = m.ModelName
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.CompletionsURL(), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if body.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	return e.clientFor(m).Do(req)
}

// Execute performs a buffered completion against the first candidate only and
// fills in any envelope fields the upstream left out.
func (e *Executor) Execute(ctx context.Context, candidates []domain.ModelConfig, body CompletionBody) (map[string]any, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no model is configured", service.ErrNotFound)
	}
	m := candidates[0]
	ctx, span := observability.Tracer().Start(ctx, "relay.execute")
	defer span.End()
	span.SetAttributes(attribute.String("relay.model", m.ModelName))

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	body.Stream = false
	resp, err := e.post(ctx, m, body)
	if err != nil {
		observability.RecordRelayAttempt(ctx, "buffered", "unreachable")
		span.SetStatus(codes.Error, "upstream unreachable")
		return nil, &service.UpstreamUnreachableError{URL: m.CompletionsURL(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := upstreamErrorMessage(resp.Body)
		observability.RecordRelayAttempt(ctx, "buffered", "upstream_error")
		span.SetStatus(codes.Error, fmt.Sprintf("upstream status %d", resp.StatusCode))
		return nil, &service.UpstreamError{Status: resp.StatusCode, Message: msg}
	}

	var data map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBufferedReplyMB<<20)).Decode(&data); err != nil {
		observability.RecordRelayAttempt(ctx, "buffered", "invalid_body")
		return nil, &service.UpstreamError{Status: http.StatusBadGateway, Message: "upstream returned an invalid completion body"}
	}
	e.normalize(data, m.ModelName)
	observability.RecordRelayAttempt(ctx, "buffered", "success")
	return data, nil
}

func (e *Executor) normalize(data map[string]any, model string) {
	setDefault(data, "id", "chatcmpl-"+randomHex(6))
	setDefault(data, "object", "chat.completion")
	setDefault(data, "created", e.now().Unix())
	setDefault(data, "model", model)
	setDefault(data, "usage", map[string]any{"prompt_tokens": 0, "completion_tokens": 0, "total_tokens": 0})
}

func setDefault(data map[string]any, key string, value any) {
	if _, ok := data[key]; !ok {
		data[key] = value
	}
}

// Stream tries each candidate in order. A candidate is committed, and
// onCommit called, only once its response head reports success; nothing is
// written to w before that. Retryable statuses and transport failures move on
// to the next candidate while one remains.
func (e *Executor) Stream(ctx context.Context, candidates []domain.ModelConfig, body CompletionBody, w io.Writer, onCommit func()) error {
	if len(candidates) == 0 {
		return fmt.Errorf("%w: no model is configured", service.ErrNotFound)
	}
	ctx, span := observability.Tracer().Start(ctx, "relay.stream")
	defer span.End()

	body.Stream = true
	lastStatus, lastMessage := http.StatusInternalServerError, ""
	for i, m := range candidates {
		hasNext := i < len(candidates)-1
		span.AddEvent("relay.attempt", traceAttrs(m, i)...)

		resp, stop, err := e.openStream(ctx, m, body)
		if err != nil {
			if ctx.Err() != nil {
				observability.RecordRelayAttempt(ctx, "stream", "cancelled")
				return ctx.Err()
			}
			lastStatus, lastMessage = http.StatusBadGateway, err.Error()
			observability.RecordRelayAttempt(ctx, "stream", "unreachable")
			if hasNext {
				e.failover(ctx, m, lastStatus)
				continue
			}
			break
		}

		if resp.StatusCode >= 400 {
			lastStatus, lastMessage = resp.StatusCode, upstreamErrorMessage(resp.Body)
			resp.Body.Close()
			stop()
			observability.RecordRelayAttempt(ctx, "stream", "upstream_error")
			if _, retryable := e.retry[lastStatus]; retryable && hasNext {
				e.failover(ctx, m, lastStatus)
				continue
			}
			break
		}

		if i > 0 {
			e.logger.Info("relay switched to fallback model", "primary", candidates[0].Name, "fallback", m.Name)
		}
		if onCommit != nil {
			onCommit()
		}
		err = forward(ctx, resp.Body, w)
		resp.Body.Close()
		stop()
		if err != nil {
			observability.RecordRelayAttempt(ctx, "stream", "interrupted")
			span.SetStatus(codes.Error, "stream interrupted")
			return err
		}
		observability.RecordRelayAttempt(ctx, "stream", "success")
		return nil
	}

	if strings.Contains(strings.ToLower(lastMessage), "moderation") {
		lastMessage = ModerationMessage
	}
	span.SetStatus(codes.Error, fmt.Sprintf("upstream status %d", lastStatus))
	return &service.UpstreamError{Status: lastStatus, Message: lastMessage}
}

// openStream issues the request under a child context whose head timeout is
// disarmed once the response head arrives. stop releases the child context.
func (e *Executor) openStream(ctx context.Context, m domain.ModelConfig, body CompletionBody) (*http.Response, context.CancelFunc, error) {
	attemptCtx, cancel := context.WithCancel(ctx)
	headTimer := time.AfterFunc(e.timeout, cancel)
	resp, err := e.post(attemptCtx, m, body)
	headTimer.Stop()
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return resp, cancel, nil
}

func (e *Executor) failover(ctx context.Context, from domain.ModelConfig, status int) {
	observability.RecordRelayFailover(ctx, status)
	e.logger.Warn("relay candidate failed, trying next", "model", from.Name, "status", status)
}

func forward(ctx context.Context, src io.Reader, w io.Writer) error {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, streamBufferBytes)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return fmt.Errorf("write stream chunk: %w", werr)
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read upstream stream: %w", err)
		}
	}
}

// upstreamErrorMessage prefers error.message from a JSON error body and falls
// back to the raw text.
func upstreamErrorMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, maxErrorBodyBytes))
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &parsed) == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return strings.TrimSpace(string(raw))
}

func traceAttrs(m domain.ModelConfig, attempt int) []trace.EventOption {
	return []trace.EventOption{trace.WithAttributes(
		attribute.String("relay.model", m.ModelName),
		attribute.Int("relay.attempt", attempt),
	)}
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
