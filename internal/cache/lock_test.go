package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestWithLockSerializesSameKey(t *testing.T) {
	require.False(t, Enabled())

	var (
		wg      sync.WaitGroup
		inside  int32
		maxSeen int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := WithLock(context.Background(), CartLockKey(1), LockOptions{Wait: 2 * time.Second}, func() error {
				n := atomic.AddInt32(&inside, 1)
				for {
					seen := atomic.LoadInt32(&maxSeen)
					if n <= seen || atomic.CompareAndSwapInt32(&maxSeen, seen, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, maxSeen)
	localLocks.mu.Lock()
	defer localLocks.mu.Unlock()
	assert.Empty(t, localLocks.locks)
}

func TestWithLockTimesOut(t *testing.T) {
	holding := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = WithLock(context.Background(), CartLockKey(2), LockOptions{}, func() error {
			close(holding)
			<-done
			return nil
		})
	}()
	<-holding

	err := WithLock(context.Background(), CartLockKey(2), LockOptions{Wait: 20 * time.Millisecond}, func() error {
		t.Fatal("should not enter while lock is held")
		return nil
	})
	require.ErrorIs(t, err, ErrLockTimeout)

	otherKeyErr := WithLock(context.Background(), CartLockKey(3), LockOptions{Wait: 20 * time.Millisecond}, func() error {
		return nil
	})
	require.NoError(t, otherKeyErr)

	close(done)
	require.Eventually(t, func() bool {
		localLocks.mu.Lock()
		defer localLocks.mu.Unlock()
		return len(localLocks.locks) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestWithLockPropagatesFnErrorAndCancellation(t *testing.T) {
	sentinel := errors.New("boom")
	err := WithLock(context.Background(), "k", LockOptions{}, func() error { return sentinel })
	require.ErrorIs(t, err, sentinel)

	ctx, cancel := context.WithCancel(context.Background())
	holding := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = WithLock(context.Background(), "k2", LockOptions{}, func() error {
			close(holding)
			<-done
			return nil
		})
	}()
	<-holding
	cancel()
	err = WithLock(ctx, "k2", LockOptions{Wait: time.Second}, func() error { return nil })
	require.ErrorIs(t, err, context.Canceled)
	close(done)
}

func TestBuildKeyUsesDefaultPrefix(t *testing.T) {
	assert.Equal(t, "cf:cart_lock:9", BuildKey(CartLockKey(9)))
}
