package memory

import (
	"context"
	"sync"
	"time"

	appoutbox "staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	infraoutbox "staybook/internal/infra/outbox"
)

type outboxEntry struct {
	record      appoutbox.EventRecord
	attempts    int
	nextAttempt time.Time
	claimed     bool
	lastError   string
}

// Outbox keeps event records in memory until the worker has published them.
// Records added inside a memory Unit are held by the unit and only appear
// here when it commits.
type Outbox struct {
	mu      sync.Mutex
	pending []*outboxEntry
	sent    int
	wake    chan struct{}
}

func NewOutbox() *Outbox {
	return &Outbox{wake: make(chan struct{}, 1)}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	if unit, ok := uow.FromContext(ctx); ok {
		if mu, ok := unit.(*Unit); ok && mu.outbox == o {
			mu.buffer(record)
			return nil
		}
	}
	o.append(record)
	return nil
}

// Flush nudges the worker; it never blocks.
func (o *Outbox) Flush(context.Context) error {
	select {
	case o.wake <- struct{}{}:
	default:
	}
	return nil
}

// Wake fires after Flush so the worker can publish without waiting for its
// next tick.
func (o *Outbox) Wake() <-chan struct{} { return o.wake }

func (o *Outbox) append(records ...appoutbox.EventRecord) {
	if len(records) == 0 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, rec := range records {
		o.pending = append(o.pending, &outboxEntry{record: rec})
	}
}

func (o *Outbox) Claim(_ context.Context, _ string, now time.Time) (*infraoutbox.Envelope, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, e := range o.pending {
		if e.claimed || e.nextAttempt.After(now) {
			continue
		}
		e.claimed = true
		return &infraoutbox.Envelope{
			ID:         e.record.ID,
			Name:       e.record.Name,
			Payload:    e.record.Payload,
			OccurredAt: e.record.OccurredAt,
			Aggregate:  e.record.Aggregate,
			Headers:    e.record.Headers,
			Attempts:   e.attempts,
		}, nil
	}
	return nil, nil
}

func (o *Outbox) MarkSent(_ context.Context, id string, _ time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, e := range o.pending {
		if e.record.ID == id {
			o.pending = append(o.pending[:i], o.pending[i+1:]...)
			o.sent++
			return nil
		}
	}
	return nil
}

func (o *Outbox) MarkFailed(_ context.Context, id string, next time.Time, errMsg string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, e := range o.pending {
		if e.record.ID == id {
			e.claimed = false
			e.attempts++
			e.nextAttempt = next
			e.lastError = errMsg
			return nil
		}
	}
	return nil
}

// Pending returns the records not yet published, oldest first.
func (o *Outbox) Pending() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]appoutbox.EventRecord, 0, len(o.pending))
	for _, e := range o.pending {
		out = append(out, e.record)
	}
	return out
}

// Sent counts records the worker has published.
func (o *Outbox) Sent() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sent
}

var _ appoutbox.Outbox = (*Outbox)(nil)
var _ infraoutbox.Store = (*Outbox)(nil)
