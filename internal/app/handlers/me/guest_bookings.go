package me

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"staybook/internal/app/dto"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
	domainproperty "staybook/internal/domain/property"
	"staybook/internal/domain/shared/clock"
)

const listGuestBookingsKey = "me.bookings.list"

type ListGuestBookingsQuery struct {
	GuestID string `validate:"required"`
}

func (q ListGuestBookingsQuery) Key() string { return listGuestBookingsKey }

type ListGuestBookingsHandler struct {
	UoWFactory uow.UoWFactory
	Clock      clock.Clock
	Logger     *slog.Logger
}

func (h *ListGuestBookingsHandler) Handle(ctx context.Context, q ListGuestBookingsQuery) (dto.BookingCollection, error) {
	guestID := strings.TrimSpace(q.GuestID)
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	bookings, err := unit.Bookings().ListByGuest(execCtx, guestID)
	if err != nil {
		return dto.BookingCollection{}, err
	}

	now := clock.OrSystem(h.Clock).Now()
	cache := make(map[domainproperty.ID]*domainproperty.Property)
	out := dto.BookingCollection{Items: make([]dto.Booking, 0, len(bookings))}
	for _, b := range bookings {
		item := dto.MapBooking(b, now)
		if b.ReviewEligible(now) {
			prop, err := loadProperty(execCtx, unit.Properties(), b.PropertyID, cache)
			switch {
			case err == nil:
				item.CanReview = !prop.HasReviewFrom(guestID)
			case errors.Is(err, domainproperty.ErrNotFound):
				if h.Logger != nil {
					h.Logger.Warn("property missing for booking", "booking_id", b.ID, "property_id", b.PropertyID)
				}
			default:
				return dto.BookingCollection{}, err
			}
		}
		out.Items = append(out.Items, item)
	}

	if h.Logger != nil {
		h.Logger.Debug("guest bookings listed", "guest_id", guestID, "count", len(out.Items))
	}
	return out, nil
}

func loadProperty(ctx context.Context, repo domainproperty.Repository, id domainproperty.ID, cache map[domainproperty.ID]*domainproperty.Property) (*domainproperty.Property, error) {
	if prop, ok := cache[id]; ok {
		return prop, nil
	}
	prop, err := repo.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	cache[id] = prop
	return prop, nil
}

var _ queries.Handler[ListGuestBookingsQuery, dto.BookingCollection] = (*ListGuestBookingsHandler)(nil)
