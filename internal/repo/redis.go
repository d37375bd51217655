package repo

import (
	"Zyncrate/config"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const expiryKeyPrefix = "file:"

// ErrLockBusy is returned by RedisLock.Lock when another holder has the key.
var ErrLockBusy = errors.New("lock is busy")

type RedisLock struct {
	rdb   *redis.Client
	key   string
	token string
	ttl   time.Duration
}

// InitRedis initializes Redis client.
// Redis 客户端
func InitRedis(cfg config.Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	_, err := client.Ping(context.Background()).Result()
	if err != nil {
		log.Fatal("init redis fail ", err)
	}
	log.Println("init redis success")
	return client
}

// EnableKeyspaceNotifications enables Redis keyspace events.
func EnableKeyspaceNotifications(ctx context.Context, rdb *redis.Client) error {
	if rdb == nil {
		return errors.New("redis not initialized")
	}
	return rdb.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err()
}

// NewRedisLock creates a Redis lock helper.
func NewRedisLock(rdb *redis.Client, key string, ttl time.Duration) *RedisLock {
	return &RedisLock{
		rdb: rdb,
		key: key,
		ttl: ttl,
	}
}

// Lock acquires a Redis-based lock.
func (l *RedisLock) Lock(ctx context.Context) error {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockBusy
	}
	l.token = token
	return nil
}

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Unlock releases a Redis-based lock. Only the holder's token deletes it.
func (l *RedisLock) Unlock(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	_, err := unlockScript.Run(
		ctx,
		l.rdb,
		[]string{l.key},
		l.token,
	).Result()
	return err
}

// RedisLocker hands out RedisLocks by name.
type RedisLocker struct {
	rdb *redis.Client
}

// NewRedisLocker creates a RedisLocker.
func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{rdb: rdb}
}

// TryLock acquires name once; ok is false when someone else holds it.
func (l *RedisLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (func(), bool, error) {
	lock := NewRedisLock(l.rdb, name, ttl)
	if err := lock.Lock(ctx); err != nil {
		if errors.Is(err, ErrLockBusy) {
			return nil, false, nil
		}
		return nil, false, err
	}
	release := func() {
		// 调用方的 ctx 可能已经取消
		unlockCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := lock.Unlock(unlockCtx); err != nil {
			log.Printf("unlock %s failed: %v", name, err)
		}
	}
	return release, true, nil
}

// RedisExpiry sets a TTL key per file so keyspace events wake the listener
// at expiry time.
type RedisExpiry struct {
	rdb *redis.Client
}

// NewRedisExpiry creates a RedisExpiry.
func NewRedisExpiry(rdb *redis.Client) *RedisExpiry {
	return &RedisExpiry{rdb: rdb}
}

// ScheduleExpiry arms the hint for key.
func (e *RedisExpiry) ScheduleExpiry(ctx context.Context, key string, at time.Time) error {
	ttl := time.Until(at) + time.Second
	if ttl < time.Second {
		ttl = time.Second
	}
	return e.rdb.Set(ctx, expiryKeyPrefix+key, 1, ttl).Err()
}

// ListenRedisExpired listens for Redis expired events and calls onFileExpired
// for every file hint. It returns when ctx is done.
func ListenRedisExpired(ctx context.Context, rdb *redis.Client, ready chan<- struct{}, onFileExpired func(ctx context.Context, fileKey string)) error {
	channel := fmt.Sprintf("__keyevent@%d__:expired", rdb.Options().DB)
	pubsub := rdb.Subscribe(ctx, channel)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}
	close(ready)
	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			handleExpiredKey(ctx, msg.Payload, onFileExpired)
		}
	}
}

// handleExpiredKey dispatches expired-key handlers.
func handleExpiredKey(ctx context.Context, key string, onFileExpired func(ctx context.Context, fileKey string)) {
	switch {
	case strings.HasPrefix(key, expiryKeyPrefix):
		fileKey := strings.TrimPrefix(key, expiryKeyPrefix)
		log.Printf("[listener] file %s expired", fileKey)
		onFileExpired(ctx, fileKey)
	default:
	}
}
