package properties

import (
	"context"
	"log/slog"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	domainproperty "staybook/internal/domain/property"
	"staybook/internal/domain/shared/clock"
)

const (
	blockDatesKey   = "host.properties.block_dates"
	unblockDatesKey = "host.properties.unblock_dates"
)

// BlockDatesCommand closes calendar days on a property. Existing bookings on
// those days are left alone; only new requests are refused.
type BlockDatesCommand struct {
	PropertyID string      `validate:"required"`
	OwnerID    string      `validate:"required"`
	Days       []time.Time `validate:"required,min=1,max=366"`
}

func (c BlockDatesCommand) Key() string { return blockDatesKey }

func (c BlockDatesCommand) LockPropertyID() string { return c.PropertyID }

type UnblockDatesCommand struct {
	PropertyID string      `validate:"required"`
	OwnerID    string      `validate:"required"`
	Days       []time.Time `validate:"required,min=1,max=366"`
}

func (c UnblockDatesCommand) Key() string { return unblockDatesKey }

func (c UnblockDatesCommand) LockPropertyID() string { return c.PropertyID }

type BlockDatesHandler struct {
	UoWFactory uow.UoWFactory
	Events     outbox.Publisher
	Clock      clock.Clock
	Logger     *slog.Logger
}

func (h *BlockDatesHandler) Handle(ctx context.Context, cmd BlockDatesCommand) (dto.BlockedDatesResult, error) {
	return editCalendar(ctx, h.UoWFactory, h.Events, cmd.PropertyID, cmd.OwnerID, func(p *domainproperty.Property) (int, error) {
		return p.Block(cmd.Days, clock.OrSystem(h.Clock).Now())
	}, h.Logger, "blocked dates added")
}

type UnblockDatesHandler struct {
	UoWFactory uow.UoWFactory
	Events     outbox.Publisher
	Clock      clock.Clock
	Logger     *slog.Logger
}

func (h *UnblockDatesHandler) Handle(ctx context.Context, cmd UnblockDatesCommand) (dto.BlockedDatesResult, error) {
	return editCalendar(ctx, h.UoWFactory, h.Events, cmd.PropertyID, cmd.OwnerID, func(p *domainproperty.Property) (int, error) {
		return p.Unblock(cmd.Days, clock.OrSystem(h.Clock).Now())
	}, h.Logger, "blocked dates removed")
}

func editCalendar(
	ctx context.Context,
	factory uow.UoWFactory,
	events outbox.Publisher,
	propertyID, ownerID string,
	edit func(p *domainproperty.Property) (int, error),
	logger *slog.Logger,
	logMsg string,
) (dto.BlockedDatesResult, error) {
	var (
		prop    *domainproperty.Property
		changed int
	)
	err := handlersupport.InUnit(ctx, factory, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		prop, err = loadOwnedProperty(ctx, unit, propertyID, ownerID)
		if err != nil {
			return err
		}
		changed, err = edit(prop)
		if err != nil || changed == 0 {
			return err
		}
		if err := unit.Properties().Save(ctx, prop); err != nil {
			return err
		}
		return events.Record(ctx, prop)
	})
	if err != nil {
		return dto.BlockedDatesResult{}, err
	}
	if logger != nil && changed > 0 {
		logger.Info(logMsg, "property_id", prop.ID, "count", changed)
	}
	return dto.BlockedDatesResult{
		PropertyID:   string(prop.ID),
		Changed:      changed,
		BlockedDates: dto.FormatDays(prop.BlockedDates),
	}, nil
}

var _ commands.Handler[BlockDatesCommand, dto.BlockedDatesResult] = (*BlockDatesHandler)(nil)
var _ commands.Handler[UnblockDatesCommand, dto.BlockedDatesResult] = (*UnblockDatesHandler)(nil)
