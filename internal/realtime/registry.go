package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/sandeepkv93/realtime-hub/internal/observability"
)

var ErrRegistryClosed = errors.New("connection registry is shut down")

const (
	ShutdownCloseReason = "server shutting down"
	defaultWriteTimeout = 10 * time.Second
)

// Conn is the subset of *websocket.Conn the registry writes through.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "closed"
	}
}

type Handle struct {
	ID         string
	IdentityID uint

	conn     Conn
	writeMu  sync.Mutex
	state    atomic.Int32
	closing  atomic.Bool
	released atomic.Bool
}

func (h *Handle) State() State { return State(h.state.Load()) }

func (h *Handle) write(messageType int, data []byte, timeout time.Duration) error {
	if h.State() != StateOpen {
		return websocket.ErrCloseSent
	}
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	if err := h.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return h.conn.WriteMessage(messageType, data)
}

func (h *Handle) ping(timeout time.Duration) error {
	if h.State() != StateOpen {
		return websocket.ErrCloseSent
	}
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	return h.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(timeout))
}

// closeWith sends a close frame carrying code and reason, then releases the
// connection. Only the first call has any effect.
func (h *Handle) closeWith(code int, reason string, deadline time.Time) {
	if !h.closing.CompareAndSwap(false, true) {
		return
	}
	h.state.CompareAndSwap(int32(StateOpen), int32(StateClosing))
	h.writeMu.Lock()
	_ = h.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	h.writeMu.Unlock()
	h.release()
}

func (h *Handle) release() {
	h.state.Store(int32(StateClosed))
	if h.released.CompareAndSwap(false, true) {
		_ = h.conn.Close()
	}
}

type identitySet struct {
	mu      sync.Mutex
	handles map[string]*Handle
	dead    bool
}

// Registry tracks live connections per identity. Each identity has its own
// lock, so delivery to one identity never waits on registration for another.
type Registry struct {
	sets         sync.Map
	closed       atomic.Bool
	writeTimeout time.Duration
	logger       *slog.Logger
}

func NewRegistry(writeTimeout time.Duration, logger *slog.Logger) *Registry {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{writeTimeout: writeTimeout, logger: logger}
}

func (r *Registry) Accept(ctx context.Context, identityID uint, conn Conn) (*Handle, error) {
	if r.closed.Load() {
		return nil, ErrRegistryClosed
	}
	h := &Handle{ID: uuid.NewString(), IdentityID: identityID, conn: conn}
	h.state.Store(int32(StateConnecting))
	for {
		v, _ := r.sets.LoadOrStore(identityID, &identitySet{handles: make(map[string]*Handle)})
		set := v.(*identitySet)
		set.mu.Lock()
		if set.dead {
			set.mu.Unlock()
			continue
		}
		set.handles[h.ID] = h
		h.state.Store(int32(StateOpen))
		set.mu.Unlock()
		break
	}
	if r.closed.Load() {
		r.Remove(identityID, h)
		return nil, ErrRegistryClosed
	}
	observability.RecordConnectionEvent(ctx, "accepted")
	r.logger.Debug("connection accepted", "identity_id", identityID, "conn_id", h.ID)
	return h, nil
}

// Remove detaches h from identityID and releases it. Removing a handle that
// is already gone is a no-op.
func (r *Registry) Remove(identityID uint, h *Handle) {
	if h == nil {
		return
	}
	v, ok := r.sets.Load(identityID)
	if ok {
		set := v.(*identitySet)
		set.mu.Lock()
		_, present := set.handles[h.ID]
		delete(set.handles, h.ID)
		if len(set.handles) == 0 && !set.dead {
			set.dead = true
			r.sets.CompareAndDelete(identityID, set)
		}
		set.mu.Unlock()
		if present {
			observability.RecordConnectionEvent(context.Background(), "removed")
			r.logger.Debug("connection removed", "identity_id", identityID, "conn_id", h.ID)
		}
	}
	h.release()
}

func (r *Registry) snapshot(identityID uint) []*Handle {
	v, ok := r.sets.Load(identityID)
	if !ok {
		return nil
	}
	set := v.(*identitySet)
	set.mu.Lock()
	defer set.mu.Unlock()
	out := make([]*Handle, 0, len(set.handles))
	for _, h := range set.handles {
		out = append(out, h)
	}
	return out
}

// Send encodes payload once and writes it to every connection of the
// identity. Connections whose write fails are removed. It returns the number
// of successful deliveries.
func (r *Registry) Send(ctx context.Context, identityID uint, payload any) int {
	handles := r.snapshot(identityID)
	if len(handles) == 0 {
		return 0
	}
	data, err := json.Marshal(payload)
	if err != nil {
		r.logger.Error("encode realtime payload", "identity_id", identityID, "error", err)
		return 0
	}
	delivered := 0
	var failed []*Handle
	for _, h := range handles {
		if err := h.write(websocket.TextMessage, data, r.writeTimeout); err != nil {
			failed = append(failed, h)
			r.logger.Debug("realtime write failed", "identity_id", identityID, "conn_id", h.ID, "error", err)
			continue
		}
		delivered++
	}
	for _, h := range failed {
		r.Remove(identityID, h)
	}
	observability.RecordDelivery(ctx, "delivered", delivered)
	observability.RecordDelivery(ctx, "reaped", len(failed))
	return delivered
}

// IsOnline is advisory: the answer may be stale as soon as it is returned.
func (r *Registry) IsOnline(identityID uint) bool {
	return r.ConnectionCount(identityID) > 0
}

func (r *Registry) ConnectionCount(identityID uint) int {
	v, ok := r.sets.Load(identityID)
	if !ok {
		return 0
	}
	set := v.(*identitySet)
	set.mu.Lock()
	defer set.mu.Unlock()
	return len(set.handles)
}

func (r *Registry) OnlineIdentities() []uint {
	var out []uint
	r.sets.Range(func(key, value any) bool {
		set := value.(*identitySet)
		set.mu.Lock()
		n := len(set.handles)
		set.mu.Unlock()
		if n > 0 {
			out = append(out, key.(uint))
		}
		return true
	})
	return out
}

// ShutdownAll refuses further registrations and closes every connection with
// a service-restart close frame. It returns ctx.Err() if ctx ends first; any
// connection still pending at that point is closed without a frame.
func (r *Registry) ShutdownAll(ctx context.Context) error {
	r.closed.Store(true)

	type entry struct {
		identityID uint
		handle     *Handle
	}
	var all []entry
	r.sets.Range(func(key, value any) bool {
		set := value.(*identitySet)
		set.mu.Lock()
		for _, h := range set.handles {
			all = append(all, entry{identityID: key.(uint), handle: h})
		}
		set.mu.Unlock()
		return true
	})
	if len(all) == 0 {
		return nil
	}

	deadline := time.Now().Add(r.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, e := range all {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			e.handle.closeWith(websocket.CloseServiceRestart, ShutdownCloseReason, deadline)
			r.Remove(e.identityID, e.handle)
			return nil
		})
	}
	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.logger.Info("realtime connections closed", "count", len(all))
		return nil
	case <-ctx.Done():
		for _, e := range all {
			r.Remove(e.identityID, e.handle)
		}
		r.logger.Warn("realtime shutdown timed out", "count", len(all), "error", ctx.Err())
		return ctx.Err()
	}
}
