package service

import "context"

type PresenceCacheStore interface {
	AddMember(ctx context.Context, token string) error
	RemoveMembers(ctx context.Context, tokens ...string) error
	Members(ctx context.Context) ([]string, error)
	IncrRegistrationCount(ctx context.Context) error
	SetRegistrationCount(ctx context.Context, n int64) error
	RegistrationCount(ctx context.Context) (int64, error)
}

type NoopPresenceCacheStore struct{}

func NewNoopPresenceCacheStore() *NoopPresenceCacheStore {
	return &NoopPresenceCacheStore{}
}

func (s *NoopPresenceCacheStore) AddMember(context.Context, string) error { return nil }

func (s *NoopPresenceCacheStore) RemoveMembers(context.Context, ...string) error { return nil }

func (s *NoopPresenceCacheStore) Members(context.Context) ([]string, error) {
	return nil, ErrCacheUnavailable
}

func (s *NoopPresenceCacheStore) IncrRegistrationCount(context.Context) error { return nil }

func (s *NoopPresenceCacheStore) SetRegistrationCount(context.Context, int64) error { return nil }

func (s *NoopPresenceCacheStore) RegistrationCount(context.Context) (int64, error) {
	return 0, ErrCacheUnavailable
}
