package ledger

import (
	"context"
	stdErrors "errors"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	tandemerrors "github.com/mirkobrombin/go-tandem/v1/errors"
)

const defaultRedisOpTimeout = 5 * time.Second

// RedisStore implements Store using a Redis backend. Balances are stored as
// plain integers under "balance:<account>".
type RedisStore struct {
	client  *redis.Client
	timeout time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*redisStoreOptions)

type redisStoreOptions struct {
	timeout time.Duration
}

// WithTimeout sets the operation timeout for Redis calls.
func WithTimeout(d time.Duration) RedisOption {
	return func(o *redisStoreOptions) {
		o.timeout = d
	}
}

// NewRedisStore returns a new RedisStore using the provided Redis client.
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	o := redisStoreOptions{timeout: defaultRedisOpTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	return &RedisStore{client: client, timeout: o.timeout}
}

func balanceKey(account string) string { return "balance:" + account }

func mapRedisErr(err error) error {
	if stdErrors.Is(err, context.DeadlineExceeded) {
		return tandemerrors.ErrTimeout
	}
	if stdErrors.Is(err, redis.ErrClosed) {
		return tandemerrors.ErrConnectionClosed
	}
	return err
}

// Get implements Store.Get.
func (s *RedisStore) Get(ctx context.Context, account string) (int64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, mapRedisErr(err)
	}
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	data, err := s.client.Get(cctx, balanceKey(account)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, mapRedisErr(err)
	}
	balance, err := strconv.ParseInt(data, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return balance, true, nil
}

// Set implements Store.Set.
func (s *RedisStore) Set(ctx context.Context, account string, balance int64) error {
	if err := ctx.Err(); err != nil {
		return mapRedisErr(err)
	}
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.client.Set(cctx, balanceKey(account), strconv.FormatInt(balance, 10), 0).Err(); err != nil {
		return mapRedisErr(err)
	}
	return nil
}

// Keys implements Store.Keys using SCAN to iterate over balance keys.
func (s *RedisStore) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, mapRedisErr(err)
	}
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	var cursor uint64
	var accounts []string
	for {
		batch, next, err := s.client.Scan(cctx, cursor, "balance:*", 100).Result()
		if err != nil {
			return nil, mapRedisErr(err)
		}
		for _, k := range batch {
			accounts = append(accounts, k[len("balance:"):])
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	return accounts, nil
}
