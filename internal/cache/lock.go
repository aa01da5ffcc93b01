package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cartflow/internal/constants"
	"github.com/cartflow/internal/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockTimeout 在等待时间内未能获取锁
var ErrLockTimeout = errors.New("lock wait timeout")

const lockRetryInterval = 25 * time.Millisecond

// 仅当持有者 token 匹配时删除，避免误删已过期后被他人重新获取的锁
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockOptions 锁参数
type LockOptions struct {
	TTL  time.Duration
	Wait time.Duration
}

func (o LockOptions) normalized() LockOptions {
	if o.TTL <= 0 {
		o.TTL = 10 * time.Second
	}
	if o.Wait <= 0 {
		o.Wait = 3 * time.Second
	}
	return o
}

// CartLockKey 用户购物车锁键
func CartLockKey(userID uint) string {
	return fmt.Sprintf("%s:%d", constants.CartLockKeyPrefix, userID)
}

// WithLock 在持有 key 对应互斥锁期间执行 fn
//
// Redis 启用时使用 SET NX PX 实现跨实例互斥，否则退化为进程内锁。
func WithLock(ctx context.Context, key string, opts LockOptions, fn func() error) error {
	opts = opts.normalized()
	var (
		release func()
		err     error
	)
	if Enabled() {
		release, err = acquireRedisLock(ctx, redisClient, buildKey(key), opts)
	} else {
		release, err = localLocks.acquire(ctx, key, opts.Wait)
	}
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

func acquireRedisLock(ctx context.Context, client *redis.Client, key string, opts LockOptions) (func(), error) {
	token := uuid.NewString()
	waitCtx, cancel := context.WithTimeout(ctx, opts.Wait)
	defer cancel()

	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()
	for {
		ok, err := client.SetNX(waitCtx, key, token, opts.TTL).Result()
		if err != nil && waitCtx.Err() == nil {
			return nil, err
		}
		if ok {
			return func() {
				// 释放时不沿用调用方 ctx，调用方取消后仍需归还锁
				releaseCtx, releaseCancel := context.WithTimeout(context.Background(), time.Second)
				defer releaseCancel()
				if err := releaseLockScript.Run(releaseCtx, client, []string{key}, token).Err(); err != nil {
					logger.Warnw("cache_lock_release_failed", "key", key, "error", err)
				}
			}, nil
		}
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrLockTimeout
		case <-ticker.C:
		}
	}
}

type localLockEntry struct {
	ch   chan struct{}
	refs int
}

type localLockSet struct {
	mu    sync.Mutex
	locks map[string]*localLockEntry
}

var localLocks = &localLockSet{locks: make(map[string]*localLockEntry)}

func (s *localLockSet) acquire(ctx context.Context, key string, wait time.Duration) (func(), error) {
	s.mu.Lock()
	entry, ok := s.locks[key]
	if !ok {
		entry = &localLockEntry{ch: make(chan struct{}, 1)}
		s.locks[key] = entry
	}
	entry.refs++
	s.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case entry.ch <- struct{}{}:
		return func() {
			<-entry.ch
			s.unref(key, entry)
		}, nil
	case <-ctx.Done():
		s.unref(key, entry)
		return nil, ctx.Err()
	case <-timer.C:
		s.unref(key, entry)
		return nil, ErrLockTimeout
	}
}

func (s *localLockSet) unref(key string, entry *localLockEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(s.locks, key)
	}
}
