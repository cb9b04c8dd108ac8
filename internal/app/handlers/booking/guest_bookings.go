package booking

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/outbox"
	"staybook/internal/app/queries"
	availabilitysvc "staybook/internal/app/services/availability"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/shared/clock"
	"staybook/internal/domain/shared/daterange"
)

const (
	getBookingKey    = "booking.get"
	updateBookingKey = "booking.update"
	cancelBookingKey = "booking.cancel"
)

type GetBookingQuery struct {
	BookingID   string `validate:"required"`
	RequesterID string `validate:"required"`
}

func (q GetBookingQuery) Key() string { return getBookingKey }

type GetBookingHandler struct {
	UoWFactory uow.UoWFactory
	Clock      clock.Clock
}

func (h *GetBookingHandler) Handle(ctx context.Context, q GetBookingQuery) (dto.Booking, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Booking{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	b, err := loadOwnedBooking(execCtx, unit, q.BookingID, q.RequesterID)
	if err != nil {
		return dto.Booking{}, err
	}
	return dto.MapBooking(b, clock.OrSystem(h.Clock).Now()), nil
}

// UpdateBookingCommand moves a booking to new dates. The party is replaced as
// a whole; zero Adults and zero Children keep the current party, while
// Children without Adults is rejected.
type UpdateBookingCommand struct {
	BookingID   string    `validate:"required"`
	RequesterID string    `validate:"required"`
	CheckIn     time.Time `validate:"required"`
	CheckOut    time.Time `validate:"required"`
	Adults      int       `validate:"gte=0"`
	Children    int       `validate:"gte=0"`
}

func (c UpdateBookingCommand) Key() string { return updateBookingKey }

func (c UpdateBookingCommand) LockBookingID() string { return c.BookingID }

type UpdateBookingHandler struct {
	UoWFactory uow.UoWFactory
	Resolver   availabilitysvc.Resolver
	Events     outbox.Publisher
	Clock      clock.Clock
	Logger     *slog.Logger
}

func (h *UpdateBookingHandler) Handle(ctx context.Context, cmd UpdateBookingCommand) (dto.Booking, error) {
	now := clock.OrSystem(h.Clock).Now()
	var updated *domainbooking.Booking
	err := handlersupport.InUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := loadOwnedBooking(ctx, unit, cmd.BookingID, cmd.RequesterID)
		if err != nil {
			return err
		}
		if err := b.EnsureModifiable(now); err != nil {
			return err
		}
		dr, err := daterange.New(cmd.CheckIn, cmd.CheckOut)
		if err != nil {
			return err
		}
		party := b.Party
		switch {
		case cmd.Adults > 0:
			party = domainbooking.Party{Adults: cmd.Adults, Children: cmd.Children}
		case cmd.Children > 0:
			return domainbooking.ErrInvalidParty
		}
		if err := party.Validate(); err != nil {
			return err
		}
		if dr.CheckIn.Before(daterange.Day(now)) {
			return domainbooking.ErrCheckInInPast
		}

		prop, err := unit.Properties().ByID(ctx, b.PropertyID)
		if err != nil {
			return err
		}
		verdict, err := h.Resolver.Check(ctx, unit, prop, dr, b.ID)
		if err != nil {
			return err
		}
		if !verdict.Available {
			return fmt.Errorf("%w: %s", domainbooking.ErrUnavailable, verdict.Message)
		}
		if err := b.Reschedule(dr, party, now); err != nil {
			return err
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return err
		}
		updated = b
		return h.Events.Record(ctx, b)
	})
	if err != nil {
		return dto.Booking{}, err
	}
	if h.Logger != nil {
		h.Logger.Info("booking rescheduled", "booking_id", updated.ID, "property_id", updated.PropertyID, "range", updated.Range.String())
	}
	return dto.MapBooking(updated, now), nil
}

type CancelBookingCommand struct {
	BookingID   string `validate:"required"`
	RequesterID string `validate:"required"`
}

func (c CancelBookingCommand) Key() string { return cancelBookingKey }

func (c CancelBookingCommand) LockBookingID() string { return c.BookingID }

type CancelBookingHandler struct {
	UoWFactory uow.UoWFactory
	Events     outbox.Publisher
	Clock      clock.Clock
	Logger     *slog.Logger
}

func (h *CancelBookingHandler) Handle(ctx context.Context, cmd CancelBookingCommand) (dto.Booking, error) {
	now := clock.OrSystem(h.Clock).Now()
	var (
		cancelled *domainbooking.Booking
		changed   bool
	)
	err := handlersupport.InUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := loadOwnedBooking(ctx, unit, cmd.BookingID, cmd.RequesterID)
		if err != nil {
			return err
		}
		cancelled = b
		changed, err = b.Cancel(now)
		if err != nil || !changed {
			return err
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return err
		}
		return h.Events.Record(ctx, b)
	})
	if err != nil {
		return dto.Booking{}, err
	}
	if h.Logger != nil && changed {
		h.Logger.Info("booking cancelled", "booking_id", cancelled.ID, "property_id", cancelled.PropertyID, "guest_id", cancelled.GuestID)
	}
	return dto.MapBooking(cancelled, now), nil
}

func loadOwnedBooking(ctx context.Context, unit uow.UnitOfWork, bookingID, requesterID string) (*domainbooking.Booking, error) {
	b, err := unit.Bookings().ByID(ctx, domainbooking.ID(strings.TrimSpace(bookingID)))
	if err != nil {
		return nil, err
	}
	if !b.OwnedBy(strings.TrimSpace(requesterID)) {
		return nil, domainbooking.ErrForbidden
	}
	return b, nil
}

var _ queries.Handler[GetBookingQuery, dto.Booking] = (*GetBookingHandler)(nil)
var _ commands.Handler[UpdateBookingCommand, dto.Booking] = (*UpdateBookingHandler)(nil)
var _ commands.Handler[CancelBookingCommand, dto.Booking] = (*CancelBookingHandler)(nil)
