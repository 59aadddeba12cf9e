package flight

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

const (
	lockPrefix        = "maven-mirror:fill:"
	defaultLockExpiry = 2 * time.Minute
	lockRetryDelay    = 250 * time.Millisecond
)

// ErrLockLost 表示解锁时发现锁已过期或被其他副本持有。
var ErrLockLost = errors.New("fill lock lost before release")

// RedisLocker implements Locker with redsync on a single Redis instance.
type RedisLocker struct {
	client *redis.Client
	rs     *redsync.Redsync
	expiry time.Duration
}

// NewRedisLocker parses redisURL, verifies connectivity, and returns a locker
// whose locks expire after expiry.
func NewRedisLocker(ctx context.Context, redisURL string, expiry time.Duration) (*RedisLocker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	if expiry <= 0 {
		expiry = defaultLockExpiry
	}
	return &RedisLocker{
		client: client,
		rs:     redsync.New(goredis.NewPool(client)),
		expiry: expiry,
	}, nil
}

// Lock 阻塞直到拿到锁、ctx 结束或重试次数耗尽（约等于一个过期周期）。
func (l *RedisLocker) Lock(ctx context.Context, key string) (UnlockFunc, error) {
	tries := int(l.expiry/lockRetryDelay) + 1
	mutex := l.rs.NewMutex(lockPrefix+key,
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(tries),
		redsync.WithRetryDelay(lockRetryDelay),
	)
	if err := mutex.LockContext(ctx); err != nil {
		return nil, err
	}
	return func(ctx context.Context) error {
		ok, err := mutex.UnlockContext(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return ErrLockLost
		}
		return nil
	}, nil
}

// Close 关闭底层 Redis 连接。
func (l *RedisLocker) Close() error {
	return l.client.Close()
}
