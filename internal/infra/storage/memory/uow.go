package memory

import (
	"context"
	"errors"
	"sync"

	appoutbox "staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	domainproperty "staybook/internal/domain/property"
)

var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

// Factory wires in-memory repositories into a unit-of-work boundary. Writes
// are applied immediately; only outbox records wait for Commit.
type Factory struct {
	Properties *PropertyRepository
	Bookings   *BookingRepository
	Outbox     *Outbox
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.Properties == nil || f.Bookings == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{
		properties: f.Properties,
		bookings:   f.Bookings,
		outbox:     f.Outbox,
		readOnly:   opts.ReadOnly,
	}, nil
}

type Unit struct {
	properties *PropertyRepository
	bookings   *BookingRepository
	outbox     *Outbox
	readOnly   bool

	mu      sync.Mutex
	records []appoutbox.EventRecord
	done    bool
}

func (u *Unit) Properties() domainproperty.Repository { return u.properties }

func (u *Unit) Bookings() domainbooking.Repository { return u.bookings }

func (u *Unit) buffer(rec appoutbox.EventRecord) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.records = append(u.records, rec)
}

func (u *Unit) Commit(ctx context.Context) error {
	u.mu.Lock()
	records := u.records
	u.records = nil
	u.done = true
	u.mu.Unlock()
	if u.outbox != nil {
		u.outbox.append(records...)
	}
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.records = nil
	u.done = true
	return nil
}

var _ uow.UoWFactory = Factory{}
var _ uow.UnitOfWork = (*Unit)(nil)
