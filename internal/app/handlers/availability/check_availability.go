package availability

import (
	"context"
	"log/slog"
	"strings"

	"staybook/internal/app/dto"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/queries"
	availabilitysvc "staybook/internal/app/services/availability"
	"staybook/internal/app/uow"
	domainavailability "staybook/internal/domain/availability"
	domainbooking "staybook/internal/domain/booking"
	domainproperty "staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
)

const checkAvailabilityKey = "availability.check"

// CheckAvailabilityQuery carries raw calendar days (YYYY-MM-DD); a malformed
// or inverted range yields an unavailable verdict rather than an error.
type CheckAvailabilityQuery struct {
	PropertyID       string `validate:"required"`
	CheckIn          string
	CheckOut         string
	ExcludeBookingID string
}

func (q CheckAvailabilityQuery) Key() string { return checkAvailabilityKey }

type CheckAvailabilityHandler struct {
	UoWFactory uow.UoWFactory
	Resolver   availabilitysvc.Resolver
	Logger     *slog.Logger
}

func (h *CheckAvailabilityHandler) Handle(ctx context.Context, q CheckAvailabilityQuery) (dto.Availability, error) {
	propertyID := strings.TrimSpace(q.PropertyID)
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Availability{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	candidate, err := daterange.Parse(q.CheckIn, q.CheckOut)
	if err != nil {
		if _, err := unit.Properties().ByID(execCtx, domainproperty.ID(propertyID)); err != nil {
			return dto.Availability{}, err
		}
		verdict := domainavailability.Unavailable(domainavailability.ReasonInvalidRange, "check-out must be a valid day after check-in")
		if h.Resolver.Observer != nil {
			h.Resolver.Observer.ObserveVerdict(verdict)
		}
		return dto.MapVerdict(propertyID, q.CheckIn, q.CheckOut, verdict), nil
	}

	verdict, err := h.Resolver.CheckByID(execCtx, unit, domainproperty.ID(propertyID), candidate, domainbooking.ID(strings.TrimSpace(q.ExcludeBookingID)))
	if err != nil {
		return dto.Availability{}, err
	}
	if h.Logger != nil {
		h.Logger.Debug("availability checked", "property_id", propertyID, "range", candidate.String(), "available", verdict.Available, "reason", verdict.Reason)
	}
	return dto.MapVerdict(propertyID, candidate.CheckIn.Format(dto.DayLayout), candidate.CheckOut.Format(dto.DayLayout), verdict), nil
}

var _ queries.Handler[CheckAvailabilityQuery, dto.Availability] = (*CheckAvailabilityHandler)(nil)
