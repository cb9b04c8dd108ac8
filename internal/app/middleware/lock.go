package middleware

import (
	"context"
	"errors"

	"staybook/internal/app/commands"
)

var ErrLockTimeout = errors.New("middleware: timed out waiting for resource lock")

// Locker hands out exclusive locks by key. Lock blocks until the lock is held
// or ctx is done; the returned release func must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

// LockKeyResolver names the resource a command mutates. ok=false means the
// command runs without a lock.
type LockKeyResolver func(ctx context.Context, cmd commands.Command) (key string, ok bool, err error)

// ResourceLock serializes commands that resolve to the same key. It must sit
// outside Transaction so the lock is held until the unit has committed.
func ResourceLock(locker Locker, resolve LockKeyResolver) CommandMiddleware {
	if locker == nil || resolve == nil {
		panic("middleware: locker and key resolver required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			key, ok, err := resolve(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if !ok || key == "" {
				return nextFn(ctx, cmd)
			}
			release, err := locker.Lock(ctx, key)
			if err != nil {
				return nil, err
			}
			defer release()
			return nextFn(ctx, cmd)
		})
	}
}
