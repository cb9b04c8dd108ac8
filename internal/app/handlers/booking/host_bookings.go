package booking

import (
	"context"
	"log/slog"
	"strings"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/outbox"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	domainproperty "staybook/internal/domain/property"
	"staybook/internal/domain/shared/clock"
)

const (
	setBookingStatusKey     = "booking.set_status"
	listPropertyBookingsKey = "booking.list_for_property"
)

// SetBookingStatusCommand is the property owner's manual transition.
type SetBookingStatusCommand struct {
	BookingID string `validate:"required"`
	OwnerID   string `validate:"required"`
	Status    string `validate:"required"`
}

func (c SetBookingStatusCommand) Key() string { return setBookingStatusKey }

func (c SetBookingStatusCommand) LockBookingID() string { return c.BookingID }

type SetBookingStatusHandler struct {
	UoWFactory uow.UoWFactory
	Events     outbox.Publisher
	Clock      clock.Clock
	Logger     *slog.Logger
}

func (h *SetBookingStatusHandler) Handle(ctx context.Context, cmd SetBookingStatusCommand) (dto.Booking, error) {
	target, err := domainbooking.ParseStatus(cmd.Status)
	if err != nil {
		return dto.Booking{}, err
	}
	now := clock.OrSystem(h.Clock).Now()

	var (
		result  *domainbooking.Booking
		changed bool
	)
	err = handlersupport.InUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		b, err := unit.Bookings().ByID(ctx, domainbooking.ID(strings.TrimSpace(cmd.BookingID)))
		if err != nil {
			return err
		}
		prop, err := unit.Properties().ByID(ctx, b.PropertyID)
		if err != nil {
			return err
		}
		if !prop.OwnedBy(strings.TrimSpace(cmd.OwnerID)) {
			return domainbooking.ErrForbidden
		}
		result = b
		changed, err = b.ChangeStatus(target, now)
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
		h.Logger.Info("booking status changed", "booking_id", result.ID, "property_id", result.PropertyID, "status", result.Status)
	}
	return dto.MapBooking(result, now), nil
}

// ListPropertyBookingsQuery lists a property's bookings for its owner. An
// optional Status filters on the effective status.
type ListPropertyBookingsQuery struct {
	PropertyID  string `validate:"required"`
	RequesterID string `validate:"required"`
	Status      string `validate:"omitempty,oneof=pending confirmed cancelled completed"`
}

func (q ListPropertyBookingsQuery) Key() string { return listPropertyBookingsKey }

type ListPropertyBookingsHandler struct {
	UoWFactory uow.UoWFactory
	Clock      clock.Clock
}

func (h *ListPropertyBookingsHandler) Handle(ctx context.Context, q ListPropertyBookingsQuery) (dto.BookingCollection, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	prop, err := unit.Properties().ByID(execCtx, domainproperty.ID(strings.TrimSpace(q.PropertyID)))
	if err != nil {
		return dto.BookingCollection{}, err
	}
	if !prop.OwnedBy(strings.TrimSpace(q.RequesterID)) {
		return dto.BookingCollection{}, domainproperty.ErrForbidden
	}
	bookings, err := unit.Bookings().ListByProperty(execCtx, prop.ID)
	if err != nil {
		return dto.BookingCollection{}, err
	}

	now := clock.OrSystem(h.Clock).Now()
	filter := domainbooking.Status(strings.ToLower(strings.TrimSpace(q.Status)))
	items := make([]*domainbooking.Booking, 0, len(bookings))
	for _, b := range bookings {
		if filter != "" && b.EffectiveStatus(now) != filter {
			continue
		}
		items = append(items, b)
	}
	return dto.MapBookings(items, now), nil
}

var _ commands.Handler[SetBookingStatusCommand, dto.Booking] = (*SetBookingStatusHandler)(nil)
var _ queries.Handler[ListPropertyBookingsQuery, dto.BookingCollection] = (*ListPropertyBookingsHandler)(nil)
