package ledger

import (
	"context"
	"fmt"

	"github.com/flashbots/mamchan/crypto"
	"github.com/flashbots/mamchan/protocol"
	"github.com/redis/go-redis/v9"
)

// appendScript pushes a payload onto an address list unless its digest was
// already recorded for that address.
// KEYS[1] = payload list key
// KEYS[2] = digest set key
// ARGV[1] = payload digest
// ARGV[2] = payload
var appendScript = redis.NewScript(`
if redis.call("SADD", KEYS[2], ARGV[1]) == 0 then
    return 0
end
redis.call("RPUSH", KEYS[1], ARGV[2])
return 1
`)

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// RedisStore implements Store with Redis lists.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed store. The connection is checked with PING.
func NewRedisStore(ctx context.Context, config *RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", config.Addr, err)
	}

	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = "mamchan"
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) listKey(address crypto.Hash) string {
	return s.prefix + ":tx:" + address.String()
}

func (s *RedisStore) digestKey(address crypto.Hash) string {
	return s.prefix + ":digests:" + address.String()
}

// Append runs the dedupe-append script atomically.
func (s *RedisStore) Append(ctx context.Context, address crypto.Hash, payload []byte) (bool, error) {
	if err := checkPayload(payload); err != nil {
		return false, err
	}

	digest := payloadDigest(payload)
	added, err := appendScript.Run(ctx, s.client,
		[]string{s.listKey(address), s.digestKey(address)},
		digest[:], payload,
	).Int()
	if err != nil {
		return false, fmt.Errorf("appending payload at %s: %w", address, err)
	}
	return added == 1, nil
}

// Load returns the list stored at address.
func (s *RedisStore) Load(ctx context.Context, address crypto.Hash) ([][]byte, error) {
	values, err := s.client.LRange(ctx, s.listKey(address), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("loading payloads at %s: %w", address, err)
	}
	if len(values) == 0 {
		return nil, protocol.ErrNotFound
	}

	payloads := make([][]byte, len(values))
	for i, v := range values {
		payloads[i] = []byte(v)
	}
	return payloads, nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
