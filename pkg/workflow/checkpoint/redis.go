package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces every key the Redis store and locker write.
const DefaultRedisPrefix = "finflow:"

// farFuture is the index score of keys that never expire.
const farFuture = 4102444800 // 2100-01-01

// RedisStore persists checkpoints in Redis so several processes can share
// conversations. Each key owns a hash of node checkpoints and a sequence
// counter; a sorted set indexes live keys by expiry.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	closed atomic.Bool
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisTTL expires a key's checkpoints ttl after its last save.
// Zero (the default) keeps them forever.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithRedisPrefix sets the key prefix.
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore creates a store on an existing client. Close closes the client.
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		prefix: DefaultRedisPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type redisEnvelope struct {
	Sequence  int       `json:"seq"`
	Timestamp time.Time `json:"ts"`
	Data      []byte    `json:"data"`
}

func (s *RedisStore) hashKey(key string) string { return s.prefix + "cp:" + key }
func (s *RedisStore) seqKey(key string) string  { return s.prefix + "seq:" + key }
func (s *RedisStore) indexKey() string          { return s.prefix + "index" }

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, key, nodeID string, data []byte) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}

	seq, err := s.client.Incr(ctx, s.seqKey(key)).Result()
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	payload, err := json.Marshal(redisEnvelope{
		Sequence:  int(seq),
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	score := float64(farFuture)
	if s.ttl > 0 {
		score = float64(time.Now().Add(s.ttl).Unix())
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.hashKey(key), nodeID, payload)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.hashKey(key), s.ttl)
		pipe.Expire(ctx, s.seqKey(key), s.ttl)
	}
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: score, Member: key})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, key, nodeID string) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}

	raw, err := s.client.HGet(ctx, s.hashKey(key), nodeID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	var env redisEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return env.Data, nil
}

// List implements Store.
func (s *RedisStore) List(ctx context.Context, key string) ([]Info, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}

	all, err := s.client.HGetAll(ctx, s.hashKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}

	infos := make([]Info, 0, len(all))
	for nodeID, raw := range all {
		var env redisEnvelope
		if err := json.Unmarshal([]byte(raw), &env); err != nil {
			return nil, fmt.Errorf("decode checkpoint %s: %w", nodeID, err)
		}
		infos = append(infos, Info{
			Key:       key,
			NodeID:    nodeID,
			Sequence:  env.Sequence,
			Timestamp: env.Timestamp,
			Size:      int64(len(env.Data)),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Sequence < infos[j].Sequence
	})
	return infos, nil
}

// Keys implements Store. Expired keys are pruned from the index lazily.
func (s *RedisStore) Keys(ctx context.Context) ([]string, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}

	now := strconv.FormatInt(time.Now().Unix(), 10)
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", "("+now).Err(); err != nil {
		return nil, fmt.Errorf("prune expired keys: %w", err)
	}

	keys, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key, nodeID string) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}

	if err := s.client.HDel(ctx, s.hashKey(key), nodeID).Err(); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// DeleteKey implements Store.
func (s *RedisStore) DeleteKey(ctx context.Context, key string) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.hashKey(key), s.seqKey(key))
	pipe.ZRem(ctx, s.indexKey(), key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete key checkpoints: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.client.Close()
}
