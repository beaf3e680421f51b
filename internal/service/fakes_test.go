package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sandeepkv93/realtime-hub/internal/domain"
	"github.com/sandeepkv93/realtime-hub/internal/repository"
)

type inMemoryTokenRepo struct {
	mu      sync.Mutex
	byToken map[string]domain.AuthToken
	failAll error
}

func newInMemoryTokenRepo() *inMemoryTokenRepo {
	return &inMemoryTokenRepo{byToken: map[string]domain.AuthToken{}}
}

func (r *inMemoryTokenRepo) Create(_ context.Context, t *domain.AuthToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll != nil {
		return r.failAll
	}
	r.byToken[t.Token] = *t
	return nil
}

func (r *inMemoryTokenRepo) FindByToken(_ context.Context, token string) (*domain.AuthToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll != nil {
		return nil, r.failAll
	}
	t, ok := r.byToken[token]
	if !ok {
		return nil, repository.ErrTokenNotFound
	}
	return &t, nil
}

func (r *inMemoryTokenRepo) Delete(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll != nil {
		return r.failAll
	}
	delete(r.byToken, token)
	return nil
}

func (r *inMemoryTokenRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll != nil {
		return 0, r.failAll
	}
	var n int64
	for k, t := range r.byToken {
		if !t.ValidAt(now) {
			delete(r.byToken, k)
			n++
		}
	}
	return n, nil
}

func (r *inMemoryTokenRepo) CountValid(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll != nil {
		return 0, r.failAll
	}
	var n int64
	for _, t := range r.byToken {
		if t.ValidAt(now) {
			n++
		}
	}
	return n, nil
}

func (r *inMemoryTokenRepo) FilterValid(_ context.Context, tokens []string, now time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll != nil {
		return nil, r.failAll
	}
	var out []string
	for _, tok := range tokens {
		if t, ok := r.byToken[tok]; ok && t.ValidAt(now) {
			out = append(out, tok)
		}
	}
	return out, nil
}

func (r *inMemoryTokenRepo) ListValidUserIDs(_ context.Context, now time.Time) ([]uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[uint]struct{}{}
	var out []uint
	for _, t := range r.byToken {
		if _, dup := seen[t.UserID]; dup || !t.ValidAt(now) {
			continue
		}
		seen[t.UserID] = struct{}{}
		out = append(out, t.UserID)
	}
	return out, nil
}

func (r *inMemoryTokenRepo) put(token string, userID uint, expiresAt *time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byToken[token] = domain.AuthToken{Token: token, UserID: userID, ExpiresAt: expiresAt}
}

func (r *inMemoryTokenRepo) has(token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byToken[token]
	return ok
}

type inMemoryUserRepo struct {
	mu      sync.Mutex
	nextID  uint
	byID    map[uint]domain.User
	countFn func() (int64, error)
}

func newInMemoryUserRepo() *inMemoryUserRepo {
	return &inMemoryUserRepo{nextID: 1, byID: map[uint]domain.User{}}
}

func (r *inMemoryUserRepo) FindByID(_ context.Context, id uint) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (r *inMemoryUserRepo) FindByName(_ context.Context, name string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Name == name {
			cp := u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *inMemoryUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Name == user.Name {
			return repository.ErrDuplicateUser
		}
	}
	user.ID = r.nextID
	r.nextID++
	r.byID[user.ID] = *user
	return nil
}

func (r *inMemoryUserRepo) Count(context.Context) (int64, error) {
	if r.countFn != nil {
		return r.countFn()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.byID)), nil
}

func (r *inMemoryUserRepo) AdminExists(context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.IsAdmin() {
			return true, nil
		}
	}
	return false, nil
}

func (r *inMemoryUserRepo) ListExcept(_ context.Context, id uint) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.User
	for _, u := range r.byID {
		if u.ID != id {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *inMemoryUserRepo) add(name, role string) domain.User {
	u := &domain.User{Name: name, Role: role}
	_ = r.Create(context.Background(), u)
	return *u
}

type inMemoryMessageRepo struct {
	mu     sync.Mutex
	nextID uint
	items  []domain.PeerMessage
}

func (r *inMemoryMessageRepo) Create(_ context.Context, msg *domain.PeerMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	msg.ID = r.nextID
	r.items = append(r.items, *msg)
	return nil
}

func (r *inMemoryMessageRepo) ListConversation(_ context.Context, a, b uint, _ repository.PageRequest) (repository.PageResult[domain.PeerMessage], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.PeerMessage
	for _, m := range r.items {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			out = append(out, m)
		}
	}
	return repository.PageResult[domain.PeerMessage]{Items: out, Total: int64(len(out))}, nil
}

func (r *inMemoryMessageRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

type recordingNotifier struct {
	mu        sync.Mutex
	online    map[uint]int
	sent      map[uint][]any
	beforeOne func()
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{online: map[uint]int{}, sent: map[uint][]any{}}
}

func (n *recordingNotifier) Send(_ context.Context, id uint, payload any) int {
	if n.beforeOne != nil {
		n.beforeOne()
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent[id] = append(n.sent[id], payload)
	return n.online[id]
}

func (n *recordingNotifier) IsOnline(id uint) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.online[id] > 0
}

type failingPresenceStore struct{ err error }

func (s failingPresenceStore) AddMember(context.Context, string) error { return s.err }
func (s failingPresenceStore) RemoveMembers(context.Context, ...string) error { return s.err }
func (s failingPresenceStore) Members(context.Context) ([]string, error) { return nil, s.err }
func (s failingPresenceStore) IncrRegistrationCount(context.Context) error { return s.err }
func (s failingPresenceStore) SetRegistrationCount(context.Context, int64) error { return s.err }
func (s failingPresenceStore) RegistrationCount(context.Context) (int64, error) {
	return 0, s.err
}

var errBoom = errors.New("boom")
