package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStoreMiss indicates the requested record is not in the persistent store.
var ErrStoreMiss = errors.New("store miss")

// DefaultStoreTTL bounds how long raw provider payloads stay in the
// persistent store. Bibliographic records change slowly, so a week keeps
// repeated analyses of the same corpus cheap without serving stale data
// indefinitely.
const DefaultStoreTTL = 7 * 24 * time.Hour

// Store persists raw provider payloads across sessions. The in-memory
// record cache consults it on a miss before going to the network.
type Store interface {
	Get(ctx context.Context, provider, doi string) ([]byte, error)
	Put(ctx context.Context, provider, doi string, payload []byte) error
}

// NopStore is a Store that holds nothing. It is the default when no
// persistent backend is configured.
type NopStore struct{}

func (NopStore) Get(ctx context.Context, provider, doi string) ([]byte, error) {
	return nil, ErrStoreMiss
}

func (NopStore) Put(ctx context.Context, provider, doi string, payload []byte) error {
	return nil
}

// RedisStore keeps raw provider payloads in Redis with a fixed TTL.
type RedisStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisStore creates a persistent store backed by the given Redis client.
func NewRedisStore(redisClient *redis.Client, ttl time.Duration) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultStoreTTL
	}
	return &RedisStore{
		redis: redisClient,
		ttl:   ttl,
	}
}

func storeKey(provider, doi string) string {
	return fmt.Sprintf("citegraph:%s:%s", provider, doi)
}

// Get retrieves a raw payload. Returns ErrStoreMiss when the key is absent.
func (s *RedisStore) Get(ctx context.Context, provider, doi string) ([]byte, error) {
	data, err := s.redis.Get(ctx, storeKey(provider, doi)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrStoreMiss
		}
		storeErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

// Put stores a raw payload under the provider-qualified key.
func (s *RedisStore) Put(ctx context.Context, provider, doi string, payload []byte) error {
	if err := s.redis.Set(ctx, storeKey(provider, doi), payload, s.ttl).Err(); err != nil {
		storeErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
