// File: sessionforge.kvstore.redis.imp.go

package sessionforge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKeyValueStore implements KeyValueStore on a Redis client. Exec
// compiles the operation list into a single Lua script so the whole list
// executes server-side as one indivisible unit.
type RedisKeyValueStore struct {
	client *redis.Client
}

// NewRedisKeyValueStore creates a Redis-backed key/value store.
func NewRedisKeyValueStore(client *redis.Client) (*RedisKeyValueStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisKeyValueStore{client: client}, nil
}

func (s *RedisKeyValueStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis error: %w", err)
	}
	return val, nil
}

func (s *RedisKeyValueStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisKeyValueStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}
	return n > 0, nil
}

func (s *RedisKeyValueStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis error: %w", err)
	}
	// Redis returns negative values for keys that don't exist or have no expiry
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

func (s *RedisKeyValueStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

func (s *RedisKeyValueStore) Exec(ctx context.Context, ops []ScriptOp) (int64, error) {
	if len(ops) == 0 {
		return 0, fmt.Errorf("empty operation list")
	}

	script, keys, args, err := buildScript(ops)
	if err != nil {
		return 0, err
	}

	res, err := s.client.Eval(ctx, script, keys, args...).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis script error: %w", err)
	}
	return res, nil
}

// buildScript compiles an operation list into a Lua script plus its KEYS and
// ARGV parameters. Check ops emit early returns; mutations emit plain calls.
func buildScript(ops []ScriptOp) (string, []string, []interface{}, error) {
	var b strings.Builder
	keys := make([]string, 0, len(ops))
	args := make([]interface{}, 0, len(ops)*2)

	for _, op := range ops {
		keys = append(keys, op.Key)
		k := len(keys)
		switch op.Op {
		case OpCheckEqual:
			args = append(args, op.Value)
			fmt.Fprintf(&b, "if redis.call('GET', KEYS[%d]) ~= ARGV[%d] then return 0 end\n", k, len(args))
		case OpCheckAbsent:
			fmt.Fprintf(&b, "if redis.call('EXISTS', KEYS[%d]) == 1 then return 0 end\n", k)
		case OpSet:
			if op.TTL <= 0 {
				return "", nil, nil, fmt.Errorf("set op for %q requires a positive ttl", op.Key)
			}
			args = append(args, op.Value, strconv.FormatInt(ttlSeconds(op.TTL), 10))
			fmt.Fprintf(&b, "redis.call('SET', KEYS[%d], ARGV[%d], 'EX', ARGV[%d])\n", k, len(args)-1, len(args))
		case OpDel:
			fmt.Fprintf(&b, "redis.call('DEL', KEYS[%d])\n", k)
		default:
			return "", nil, nil, fmt.Errorf("unsupported script op: %s", op.Op)
		}
	}
	b.WriteString("return 1\n")

	return b.String(), keys, args, nil
}
