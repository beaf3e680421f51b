package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sandeepkv93/realtime-hub/internal/domain"
	"github.com/sandeepkv93/realtime-hub/internal/observability"
	"github.com/sandeepkv93/realtime-hub/internal/security"
	"github.com/sandeepkv93/realtime-hub/internal/service"
)

const (
	defaultHeartbeatTimeout = 30 * time.Second
	defaultMaxMessageBytes  = 64 << 10
	handshakeCloseTimeout   = time.Second
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

type HandlerConfig struct {
	HeartbeatTimeout time.Duration
	WriteTimeout     time.Duration
	MaxMessageBytes  int64
	CheckOrigin      func(r *http.Request) bool
}

type clientFrame struct {
	Type string `json:"type"`
}

// Handler upgrades authenticated requests to websocket connections and keeps
// them registered until the peer leaves or stops answering heartbeats.
type Handler struct {
	registry *Registry
	auth     Authenticator
	upgrader websocket.Upgrader
	cfg      HandlerConfig
	logger   *slog.Logger
}

func NewHandler(registry *Registry, auth Authenticator, cfg HandlerConfig, logger *slog.Logger) *Handler {
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = defaultMaxMessageBytes
	}
	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		registry: registry,
		auth:     auth,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin:      checkOrigin,
		},
		cfg:    cfg,
		logger: logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = security.BearerToken(r)
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	ctx := r.Context()
	if token == "" {
		h.reject(ctx, ws, websocket.ClosePolicyViolation, "missing token")
		return
	}
	user, err := h.auth.Authenticate(ctx, token)
	switch {
	case errors.Is(err, service.ErrTokenExpired):
		h.reject(ctx, ws, websocket.ClosePolicyViolation, "token expired")
		return
	case errors.Is(err, service.ErrUnauthenticated):
		h.reject(ctx, ws, websocket.ClosePolicyViolation, "invalid token")
		return
	case err != nil:
		h.logger.Error("websocket authentication failed", "error", err)
		h.reject(ctx, ws, websocket.CloseInternalServerErr, "internal error")
		return
	}

	handle, err := h.registry.Accept(ctx, user.ID, ws)
	if err != nil {
		h.reject(ctx, ws, websocket.CloseServiceRestart, ShutdownCloseReason)
		return
	}
	defer h.registry.Remove(user.ID, handle)

	h.serve(handle, ws)
}

func (h *Handler) reject(ctx context.Context, ws *websocket.Conn, code int, reason string) {
	observability.RecordConnectionEvent(ctx, "rejected")
	_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(handshakeCloseTimeout))
	_ = ws.Close()
}

func (h *Handler) serve(handle *Handle, ws *websocket.Conn) {
	var lastSeen atomic.Int64
	touch := func() {
		now := time.Now()
		lastSeen.Store(now.UnixNano())
		_ = ws.SetReadDeadline(now.Add(2 * h.cfg.HeartbeatTimeout))
	}
	touch()
	ws.SetReadLimit(h.cfg.MaxMessageBytes)
	ws.SetPongHandler(func(string) error {
		touch()
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go h.probe(handle, &lastSeen, done)

	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			h.readFailed(handle, err)
			return
		}
		touch()
		if msgType != websocket.TextMessage {
			continue
		}
		var frame clientFrame
		if json.Unmarshal(data, &frame) == nil && frame.Type == "ping" {
			if err := handle.write(websocket.TextMessage, []byte(`{"type":"pong"}`), h.cfg.WriteTimeout); err != nil {
				h.logger.Debug("pong write failed", "conn_id", handle.ID, "error", err)
				return
			}
		}
	}
}

// probe sends a ping once the connection has been idle for a full heartbeat
// window. The read deadline ends the connection if the next window also
// passes without traffic.
func (h *Handler) probe(handle *Handle, lastSeen *atomic.Int64, done <-chan struct{}) {
	timer := time.NewTimer(h.cfg.HeartbeatTimeout)
	defer timer.Stop()
	for {
		select {
		case <-done:
			return
		case <-timer.C:
		}
		idle := time.Since(time.Unix(0, lastSeen.Load()))
		wait := h.cfg.HeartbeatTimeout - idle
		if wait <= 0 {
			if err := handle.ping(h.cfg.WriteTimeout); err != nil {
				h.logger.Debug("heartbeat probe failed", "conn_id", handle.ID, "error", err)
				h.registry.Remove(handle.IdentityID, handle)
				return
			}
			observability.RecordConnectionEvent(context.Background(), "probe")
			wait = h.cfg.HeartbeatTimeout
		}
		timer.Reset(wait)
	}
}

func (h *Handler) readFailed(handle *Handle, err error) {
	var netErr net.Error
	switch {
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		observability.RecordConnectionEvent(context.Background(), "closed_by_peer")
	case errors.As(err, &netErr) && netErr.Timeout():
		observability.RecordConnectionEvent(context.Background(), "heartbeat_timeout")
		h.logger.Info("websocket heartbeat timed out", "identity_id", handle.IdentityID, "conn_id", handle.ID)
		handle.closeWith(websocket.CloseGoingAway, "heartbeat timeout", time.Now().Add(h.cfg.WriteTimeout))
	case handle.State() != StateOpen:
	default:
		observability.RecordConnectionEvent(context.Background(), "transport_error")
		h.logger.Debug("websocket read failed", "identity_id", handle.IdentityID, "conn_id", handle.ID, "error", err)
		handle.closeWith(websocket.CloseInternalServerErr, "transport error", time.Now().Add(h.cfg.WriteTimeout))
	}
}
