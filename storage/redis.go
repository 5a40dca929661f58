package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "authclient:session"

const clearNamespaceScript = `
local members = redis.call("SMEMBERS", KEYS[1])
for _, key in ipairs(members) do
  redis.call("DEL", key)
end
redis.call("DEL", KEYS[1])
return #members
`

var clearNamespaceLua = redis.NewScript(clearNamespaceScript)

// Redis is the session-scoped Backend. Keys live under
// "<prefix>:<namespace>:" where namespace is unique per Redis value, so a new
// process never observes a previous run's entries. Every write refreshes the
// TTL of the namespace.
type Redis struct {
	client    redis.UniversalClient
	prefix    string
	namespace string
	ttl       time.Duration
}

// RedisOptions configures NewRedis.
type RedisOptions struct {
	Prefix string
	// Namespace defaults to a random UUID.
	Namespace string
	// TTL of 0 means entries never expire.
	TTL time.Duration
}

// NewRedis returns a Redis backend. It performs no I/O.
func NewRedis(client redis.UniversalClient, opts RedisOptions) *Redis {
	if opts.Prefix == "" {
		opts.Prefix = defaultRedisPrefix
	}
	if opts.Namespace == "" {
		opts.Namespace = uuid.NewString()
	}
	return &Redis{
		client:    client,
		prefix:    opts.Prefix,
		namespace: opts.Namespace,
		ttl:       opts.TTL,
	}
}

// Namespace returns the per-process key namespace.
func (r *Redis) Namespace() string { return r.namespace }

func (r *Redis) key(k string) string {
	return r.prefix + ":" + r.namespace + ":" + k
}

func (r *Redis) indexKey() string {
	return r.prefix + ":" + r.namespace + ":__keys"
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	if r.client == nil {
		return ErrBackendUnavailable
	}
	fullKey := r.key(key)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, fullKey, value, r.ttl)
		pipe.SAdd(ctx, r.indexKey(), fullKey)
		if r.ttl > 0 {
			pipe.Expire(ctx, r.indexKey(), r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: set %q: %w", key, err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	if r.client == nil {
		return "", false, ErrBackendUnavailable
	}
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis: get %q: %w", key, err)
	}
	return v, true, nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if r.client == nil {
		return ErrBackendUnavailable
	}
	fullKey := r.key(key)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, fullKey)
		pipe.SRem(ctx, r.indexKey(), fullKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: delete %q: %w", key, err)
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context) error {
	if r.client == nil {
		return ErrBackendUnavailable
	}
	if err := clearNamespaceLua.Run(ctx, r.client, []string{r.indexKey()}).Err(); err != nil {
		return fmt.Errorf("redis: clear namespace: %w", err)
	}
	return nil
}

// Close is a no-op: the client belongs to the caller.
func (r *Redis) Close() error { return nil }
