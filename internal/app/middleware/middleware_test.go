package middleware_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/app/commands"
	"staybook/internal/app/middleware"
	"staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	domainuser "staybook/internal/domain/user"
	lockmemory "staybook/internal/infra/locks/memory"
	"staybook/internal/infra/storage/memory"
)

type counted struct {
	N int `json:"n"`
}

type idemCommand struct {
	Idem string
}

func (c idemCommand) Key() string            { return "test.idem" }
func (c idemCommand) IdempotencyKey() string { return c.Idem }
func (c idemCommand) ResultPrototype() any   { return &counted{} }

type adminCommand struct {
	Caller policies.Caller
}

func (c adminCommand) Key() string                   { return "test.admin" }
func (c adminCommand) RequiredRole() domainuser.Role { return domainuser.RoleAdmin }
func (c adminCommand) Actor() policies.Caller        { return c.Caller }

type lockedCommand struct {
	Resource string
}

func (c lockedCommand) Key() string { return "test.locked" }

func lockOnResource(_ context.Context, cmd commands.Command) (string, bool, error) {
	locked, ok := cmd.(lockedCommand)
	if !ok || locked.Resource == "" {
		return "", false, nil
	}
	return "res:" + locked.Resource, true, nil
}

func TestChainCommandsRunsOutermostFirst(t *testing.T) {
	var order []string
	trace := func(name string) middleware.CommandMiddleware {
		return func(next commands.Bus) commands.Bus {
			return busFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
				order = append(order, name)
				return next.Dispatch(ctx, cmd)
			})
		}
	}
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler(bus, "test.locked", commands.HandlerFunc[lockedCommand, string](func(ctx context.Context, cmd lockedCommand) (string, error) {
		order = append(order, "handler")
		return "ok", nil
	}))

	chained := middleware.ChainCommands(bus, trace("outer"), nil, trace("inner"))
	res, err := commands.Dispatch[lockedCommand, string](context.Background(), chained, lockedCommand{})
	require.NoError(t, err)
	assert.Equal(t, "ok", res)
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestIdempotencyReplaysSuccessfulResult(t *testing.T) {
	var calls atomic.Int32
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler(bus, "test.idem", commands.HandlerFunc[idemCommand, *counted](func(ctx context.Context, cmd idemCommand) (*counted, error) {
		n := calls.Add(1)
		return &counted{N: int(n)}, nil
	}))
	store := memory.NewIdempotencyStore(time.Hour)
	chained := middleware.ChainCommands(bus, middleware.Idempotency(store, nil))
	ctx := context.Background()

	first, err := commands.Dispatch[idemCommand, *counted](ctx, chained, idemCommand{Idem: "k1"})
	require.NoError(t, err)
	second, err := commands.Dispatch[idemCommand, *counted](ctx, chained, idemCommand{Idem: "k1"})
	require.NoError(t, err)
	assert.Equal(t, first.N, second.N)
	assert.EqualValues(t, 1, calls.Load())

	third, err := commands.Dispatch[idemCommand, *counted](ctx, chained, idemCommand{Idem: "k2"})
	require.NoError(t, err)
	assert.Equal(t, 2, third.N)

	_, err = commands.Dispatch[idemCommand, *counted](ctx, chained, idemCommand{})
	require.NoError(t, err)
	_, err = commands.Dispatch[idemCommand, *counted](ctx, chained, idemCommand{})
	require.NoError(t, err)
	assert.EqualValues(t, 4, calls.Load())
}

func TestIdempotencyDoesNotStoreFailures(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("boom")
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler(bus, "test.idem", commands.HandlerFunc[idemCommand, *counted](func(ctx context.Context, cmd idemCommand) (*counted, error) {
		if calls.Add(1) == 1 {
			return nil, boom
		}
		return &counted{N: 7}, nil
	}))
	chained := middleware.ChainCommands(bus, middleware.Idempotency(memory.NewIdempotencyStore(0), nil))

	_, err := commands.Dispatch[idemCommand, *counted](context.Background(), chained, idemCommand{Idem: "retry"})
	require.ErrorIs(t, err, boom)

	res, err := commands.Dispatch[idemCommand, *counted](context.Background(), chained, idemCommand{Idem: "retry"})
	require.NoError(t, err)
	assert.Equal(t, 7, res.N)
}

func TestIdempotencyRejectsKeyStoredForAnotherCommand(t *testing.T) {
	store := memory.NewIdempotencyStore(0)
	require.NoError(t, store.Save(context.Background(), middleware.IdempotencyRecord{
		Key:        "test.idem:shared",
		Command:    "test.other",
		OccurredAt: time.Now(),
	}))
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler(bus, "test.idem", commands.HandlerFunc[idemCommand, *counted](func(ctx context.Context, cmd idemCommand) (*counted, error) {
		return &counted{}, nil
	}))
	chained := middleware.ChainCommands(bus, middleware.Idempotency(store, nil))

	_, err := commands.Dispatch[idemCommand, *counted](context.Background(), chained, idemCommand{Idem: "shared"})
	require.ErrorIs(t, err, middleware.ErrIdempotencyKeyReused)
}

func TestAuthorizationEnforcesRoles(t *testing.T) {
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler(bus, "test.admin", commands.HandlerFunc[adminCommand, string](func(ctx context.Context, cmd adminCommand) (string, error) {
		return "done", nil
	}))
	chained := middleware.ChainCommands(bus, middleware.Authorization(policies.RoleAuthorizer{}))
	ctx := context.Background()

	_, err := commands.Dispatch[adminCommand, string](ctx, chained, adminCommand{Caller: policies.Caller{ID: "u1", Roles: []domainuser.Role{domainuser.RoleGuest}}})
	require.ErrorIs(t, err, policies.ErrRoleRequired)

	res, err := commands.Dispatch[adminCommand, string](ctx, chained, adminCommand{Caller: policies.Caller{ID: "u2", Roles: []domainuser.Role{domainuser.RoleAdmin}}})
	require.NoError(t, err)
	assert.Equal(t, "done", res)

	_, err = commands.Dispatch[adminCommand, string](ctx, chained, adminCommand{Caller: policies.Caller{ID: "consumer", System: true}})
	require.NoError(t, err)
}

func TestResourceLockSerializesSameKey(t *testing.T) {
	var (
		active  atomic.Int32
		maxSeen atomic.Int32
	)
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler(bus, "test.locked", commands.HandlerFunc[lockedCommand, string](func(ctx context.Context, cmd lockedCommand) (string, error) {
		n := active.Add(1)
		for {
			seen := maxSeen.Load()
			if n <= seen || maxSeen.CompareAndSwap(seen, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return cmd.Resource, nil
	}))
	chained := middleware.ChainCommands(bus, middleware.ResourceLock(lockmemory.NewLocker(time.Second), lockOnResource))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := commands.Dispatch[lockedCommand, string](context.Background(), chained, lockedCommand{Resource: "p1"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, maxSeen.Load())
}

func TestResourceLockTimesOut(t *testing.T) {
	locker := lockmemory.NewLocker(20 * time.Millisecond)
	release, err := locker.Lock(context.Background(), "res:p1")
	require.NoError(t, err)
	defer release()

	bus := commands.NewInMemoryBus()
	commands.RegisterHandler(bus, "test.locked", commands.HandlerFunc[lockedCommand, string](func(ctx context.Context, cmd lockedCommand) (string, error) {
		return "unreachable", nil
	}))
	chained := middleware.ChainCommands(bus, middleware.ResourceLock(locker, lockOnResource))

	_, err = commands.Dispatch[lockedCommand, string](context.Background(), chained, lockedCommand{Resource: "p1"})
	require.ErrorIs(t, err, middleware.ErrLockTimeout)

	res, err := commands.Dispatch[lockedCommand, string](context.Background(), chained, lockedCommand{})
	require.NoError(t, err)
	assert.Equal(t, "unreachable", res)
}

type recordedEvent struct {
	At time.Time
}

func (recordedEvent) EventName() string       { return "test.recorded" }
func (recordedEvent) AggregateID() string     { return "agg-1" }
func (e recordedEvent) OccurredAt() time.Time { return e.At }

func TestTransactionCommitsOutboxRecordsOnlyOnSuccess(t *testing.T) {
	box := memory.NewOutbox()
	factory := memory.Factory{Properties: memory.NewPropertyRepository(), Bookings: memory.NewBookingRepository(), Outbox: box}
	events := outbox.Publisher{Outbox: box}
	fail := errors.New("handler failed")

	bus := commands.NewInMemoryBus()
	commands.RegisterHandler(bus, "test.locked", commands.HandlerFunc[lockedCommand, string](func(ctx context.Context, cmd lockedCommand) (string, error) {
		if err := events.RecordEvents(ctx, recordedEvent{At: time.Now()}); err != nil {
			return "", err
		}
		assert.Empty(t, box.Pending())
		if cmd.Resource == "fail" {
			return "", fail
		}
		return "ok", nil
	}))
	chained := middleware.ChainCommands(bus, middleware.Transaction(factory, nil), middleware.OutboxFlush(box))

	_, err := commands.Dispatch[lockedCommand, string](context.Background(), chained, lockedCommand{Resource: "fail"})
	require.ErrorIs(t, err, fail)
	assert.Empty(t, box.Pending())

	_, err = commands.Dispatch[lockedCommand, string](context.Background(), chained, lockedCommand{Resource: "ok"})
	require.NoError(t, err)
	pending := box.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "test.recorded", pending[0].Name)

	select {
	case <-box.Wake():
	default:
		t.Fatal("expected outbox wake signal after flush")
	}
}

type busFunc func(ctx context.Context, cmd commands.Command) (any, error)

func (f busFunc) Dispatch(ctx context.Context, cmd commands.Command) (any, error) {
	return f(ctx, cmd)
}
