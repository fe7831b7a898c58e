package cache

import (
	"context"
	"errors"
	"time"

	"github.com/tinywideclouds/go-apns-gateway/pkg/dispatch"
	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
)

// ErrCacheMiss means the cache holds no device list for the user.
var ErrCacheMiss = errors.New("device cache miss")

// DeviceCache stores a user's device tokens.
type DeviceCache interface {
	// Devices returns ErrCacheMiss when nothing is cached.
	Devices(ctx context.Context, user urn.URN) ([]string, error)
	SetDevices(ctx context.Context, user urn.URN, tokens []string, ttl time.Duration) error
	Forget(ctx context.Context, user urn.URN) error
}

// CachedTokenStore is a Decorator that adds Read-Aside caching to any TokenStore.
type CachedTokenStore struct {
	realStore dispatch.TokenStore
	cache     DeviceCache
	ttl       time.Duration
}

func NewCachedTokenStore(realStore dispatch.TokenStore, cache DeviceCache, ttl time.Duration) *CachedTokenStore {
	return &CachedTokenStore{
		realStore: realStore,
		cache:     cache,
		ttl:       ttl,
	}
}

func (s *CachedTokenStore) Fetch(ctx context.Context, user urn.URN) ([]string, error) {
	if cached, err := s.cache.Devices(ctx, user); err == nil {
		return cached, nil
	}

	fresh, err := s.realStore.Fetch(ctx, user)
	if err != nil {
		return nil, err
	}

	// Caching is an optimization; if Redis is down we serve from the store.
	_ = s.cache.SetDevices(ctx, user, fresh, s.ttl)

	return fresh, nil
}

func (s *CachedTokenStore) RegisterDevice(ctx context.Context, user urn.URN, token string) error {
	if err := s.realStore.RegisterDevice(ctx, user, token); err != nil {
		return err
	}
	return s.cache.Forget(ctx, user)
}

// UnregisterDevice must clear the cache even though the store write succeeded,
// so a dead token stops receiving pushes immediately.
func (s *CachedTokenStore) UnregisterDevice(ctx context.Context, user urn.URN, token string) error {
	if err := s.realStore.UnregisterDevice(ctx, user, token); err != nil {
		return err
	}
	return s.cache.Forget(ctx, user)
}
