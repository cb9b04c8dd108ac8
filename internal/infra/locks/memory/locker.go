package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"staybook/internal/app/middleware"
)

// Locker is an in-process keyed mutex. Waiters give up after Wait (when set)
// or when their context ends.
type Locker struct {
	Wait time.Duration

	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewLocker(wait time.Duration) *Locker {
	return &Locker{Wait: wait, slots: make(map[string]*slot)}
}

func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	s := l.acquireSlot(key)

	if l.Wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Wait)
		defer cancel()
	}
	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.releaseSlot(key, s)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, middleware.ErrLockTimeout
		}
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.releaseSlot(key, s)
		})
	}, nil
}

func (l *Locker) acquireSlot(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.slots == nil {
		l.slots = make(map[string]*slot)
	}
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *Locker) releaseSlot(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

var _ middleware.Locker = (*Locker)(nil)
