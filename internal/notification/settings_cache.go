package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "gestionale/pkg/domain"
)

// CachedSettings is a read-through Redis cache in front of another
// SettingsStore. Settings change rarely and are read on every notifying
// transition, so a short TTL keeps the database out of the hot path.
// Cache errors fall back to the inner store.
type CachedSettings struct {
	inner  SettingsStore
	client *redis.Client
	ttl    time.Duration
}

func NewCachedSettings(inner SettingsStore, client *redis.Client, ttl time.Duration) *CachedSettings {
	return &CachedSettings{inner: inner, client: client, ttl: ttl}
}

func cacheKey(eventKind string, role id.Role, channel Channel) string {
	return fmt.Sprintf("delivery-settings:%s:%s:%s", eventKind, role, channel)
}

func (s *CachedSettings) Enabled(ctx context.Context, eventKind string, role id.Role, channel Channel) (bool, error) {
	key := cacheKey(eventKind, role, channel)

	cached, err := s.client.Get(ctx, key).Result()
	if err == nil {
		return cached == "1", nil
	}

	enabled, err := s.inner.Enabled(ctx, eventKind, role, channel)
	if err != nil {
		return false, err
	}

	value := "0"
	if enabled {
		value = "1"
	}
	// Best-effort write; a miss next time just re-reads the store.
	_ = s.client.Set(ctx, key, value, s.ttl).Err()

	return enabled, nil
}
