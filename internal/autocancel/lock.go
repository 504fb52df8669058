package autocancel

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	lockKey = "wallet_ledger:autocancel:lock"

	lockTTLIntervals = 3
	minLockTTL       = time.Minute
)

// LockTTL is how long a sweep may hold the shared lock when sweeps start every
// interval. It spans several intervals so a slow run keeps the lock until it
// releases it.
func LockTTL(interval time.Duration) time.Duration {
	ttl := lockTTLIntervals * interval
	if ttl < minLockTTL {
		return minLockTTL
	}
	return ttl
}

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by another instance is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocker holds the lock for at most ttl, which should exceed one run.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl}
}

func (l *RedisLocker) TryLock(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		_ = releaseScript.Run(context.Background(), l.client, []string{lockKey}, token).Err()
	}
	return release, true, nil
}

// ConnectRedis returns a client after a successful ping.
func ConnectRedis(addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	return rdb, nil
}
