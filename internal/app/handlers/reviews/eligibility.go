package reviews

import (
	"context"
	"strings"
	"time"

	"staybook/internal/app/dto"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
	domainproperty "staybook/internal/domain/property"
	"staybook/internal/domain/shared/clock"
)

const canReviewKey = "reviews.can_review"

type CanReviewQuery struct {
	PropertyID string `validate:"required"`
	GuestID    string `validate:"required"`
}

func (q CanReviewQuery) Key() string { return canReviewKey }

type CanReviewHandler struct {
	UoWFactory uow.UoWFactory
	Clock      clock.Clock
}

func (h *CanReviewHandler) Handle(ctx context.Context, q CanReviewQuery) (dto.ReviewEligibility, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.ReviewEligibility{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	prop, err := unit.Properties().ByID(execCtx, domainproperty.ID(strings.TrimSpace(q.PropertyID)))
	if err != nil {
		return dto.ReviewEligibility{}, err
	}
	guestID := strings.TrimSpace(q.GuestID)
	result := dto.ReviewEligibility{PropertyID: string(prop.ID)}
	if prop.HasReviewFrom(guestID) {
		return result, nil
	}
	result.CanReview, err = hasEligibleStay(execCtx, unit, prop, guestID, clock.OrSystem(h.Clock).Now())
	if err != nil {
		return dto.ReviewEligibility{}, err
	}
	return result, nil
}

// hasEligibleStay reports whether the guest has a completed booking at the
// property or one whose checkout day has passed.
func hasEligibleStay(ctx context.Context, unit uow.UnitOfWork, prop *domainproperty.Property, guestID string, now time.Time) (bool, error) {
	if guestID == "" {
		return false, nil
	}
	bookings, err := unit.Bookings().ListByGuest(ctx, guestID)
	if err != nil {
		return false, err
	}
	for _, b := range bookings {
		if b.PropertyID == prop.ID && b.ReviewEligible(now) {
			return true, nil
		}
	}
	return false, nil
}

var _ queries.Handler[CanReviewQuery, dto.ReviewEligibility] = (*CanReviewHandler)(nil)
