package persistence

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockTimeout is returned when a ticket lock cannot be acquired in time.
var ErrLockTimeout = errors.New("ticket is busy; retry")

// TicketLocker serializes transitions per ticket.
type TicketLocker interface {
	// Lock blocks until the ticket lock is held or ctx expires.
	Lock(ctx context.Context, ticketID string) (unlock func(), err error)
}

const lockRetryInterval = 25 * time.Millisecond

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0`)

type redisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocker returns a lock shared by every replica using SET NX PX.
func NewRedisLocker(client *redis.Client, ttl time.Duration) TicketLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &redisLocker{client: client, ttl: ttl}
}

func (l *redisLocker) Lock(ctx context.Context, ticketID string) (func(), error) {
	key := "lock:ticket:" + ticketID
	token := uuid.NewString()
	deadline := time.Now().Add(l.ttl)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				_ = releaseScript.Run(context.Background(), l.client, []string{key}, token).Err()
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

type localLocker struct {
	mu    sync.Mutex
	locks map[string]*localLock
}

type localLock struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker returns an in-process lock for single-replica deployments.
func NewLocalLocker() TicketLocker {
	return &localLocker{locks: map[string]*localLock{}}
}

func (l *localLocker) Lock(ctx context.Context, ticketID string) (func(), error) {
	l.mu.Lock()
	lock, ok := l.locks[ticketID]
	if !ok {
		lock = &localLock{ch: make(chan struct{}, 1)}
		l.locks[ticketID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	select {
	case lock.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(ticketID, lock, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(ticketID, lock, true) })
	}, nil
}

func (l *localLocker) release(ticketID string, lock *localLock, held bool) {
	if held {
		<-lock.ch
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, ticketID)
	}
}
