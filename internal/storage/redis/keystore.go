package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"airdropScope/internal/storage"
)

// Options configures the Redis-backed key store.
type Options struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// KeyStore keeps known keys in a single Redis set.
type KeyStore struct {
	client redis.UniversalClient
	key    string
}

// NewKeyStore connects and pings the server.
func NewKeyStore(ctx context.Context, opts Options) (*KeyStore, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewKeyStoreWithClient(client, opts.Key), nil
}

// NewKeyStoreWithClient wraps an existing client.
func NewKeyStoreWithClient(client redis.UniversalClient, key string) *KeyStore {
	if key == "" {
		key = "airdropscope:known_keys"
	}
	return &KeyStore{client: client, key: key}
}

func (s *KeyStore) Close() error {
	return s.client.Close()
}

// Load reads the whole set. Redis sets are unordered, so load order is
// whatever SMEMBERS returns.
func (s *KeyStore) Load(ctx context.Context) (*storage.KeySet, error) {
	members, err := s.client.SMembers(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers %s: %w", s.key, err)
	}
	set, err := storage.NewLoadedKeySet(members)
	if err != nil {
		return nil, &storage.CorruptStateError{Path: "redis:" + s.key, Err: err}
	}
	return set, nil
}

// Flush adds keys discovered since the last flush. SADD is atomic per call.
func (s *KeyStore) Flush(ctx context.Context, set *storage.KeySet) error {
	added := set.Added()
	if len(added) == 0 {
		return nil
	}
	members := make([]interface{}, 0, len(added))
	for _, key := range added {
		members = append(members, key)
	}
	if err := s.client.SAdd(ctx, s.key, members...).Err(); err != nil {
		return fmt.Errorf("sadd %s: %w", s.key, err)
	}
	return nil
}

var _ storage.KeyStore = (*KeyStore)(nil)
