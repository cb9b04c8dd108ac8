package middleware

import (
	"context"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/queries"
)

// Observer receives one call per dispatched message. kind is "command" or
// "query"; err is the handler outcome.
type Observer interface {
	Observe(kind, key string, elapsed time.Duration, err error)
}

func Metrics(o Observer) CommandMiddleware {
	if o == nil {
		panic("middleware: observer required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			start := time.Now()
			res, err := nextFn(ctx, cmd)
			o.Observe("command", cmd.Key(), time.Since(start), err)
			return res, err
		})
	}
}

func QueryMetrics(o Observer) QueryMiddleware {
	if o == nil {
		panic("middleware: observer required")
	}
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			start := time.Now()
			res, err := nextFn(ctx, q)
			o.Observe("query", q.Key(), time.Since(start), err)
			return res, err
		})
	}
}
