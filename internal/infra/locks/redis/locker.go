package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"staybook/internal/app/middleware"
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by another process is never released by us.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a distributed lock built on SET NX PX. TTL bounds how long a
// crashed holder can block others; Wait bounds how long Lock retries.
type Locker struct {
	Client    goredis.UniversalClient
	Prefix    string
	TTL       time.Duration
	Wait      time.Duration
	RetryStep time.Duration
}

func NewLocker(client goredis.UniversalClient, ttl, wait time.Duration) *Locker {
	return &Locker{Client: client, Prefix: "staybook:lock:", TTL: ttl, Wait: wait, RetryStep: 25 * time.Millisecond}
}

func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	if l.Client == nil {
		return nil, errors.New("redis: locker client required")
	}
	redisKey := l.Prefix + key
	token := uuid.NewString()
	ttl := l.TTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	step := l.RetryStep
	if step <= 0 {
		step = 25 * time.Millisecond
	}
	if l.Wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Wait)
		defer cancel()
	}

	for {
		ok, err := l.Client.SetNX(ctx, redisKey, token, ttl).Result()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("redis: acquire %s: %w", key, err)
		}
		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = releaseScript.Run(releaseCtx, l.Client, []string{redisKey}, token).Err()
			}, nil
		}
		timer := time.NewTimer(step)
		select {
		case <-ctx.Done():
			timer.Stop()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, middleware.ErrLockTimeout
			}
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// Ping is used by the readiness check.
func (l *Locker) Ping(ctx context.Context) error {
	return l.Client.Ping(ctx).Err()
}

var _ middleware.Locker = (*Locker)(nil)
