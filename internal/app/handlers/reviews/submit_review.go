package reviews

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	domainproperty "staybook/internal/domain/property"
	domainreviews "staybook/internal/domain/reviews"
	"staybook/internal/domain/shared/clock"
)

const submitReviewKey = "reviews.submit"

type SubmitReviewCommand struct {
	PropertyID string `validate:"required"`
	GuestID    string `validate:"required"`
	Rating     int
	Comment    string `validate:"max=4000"`
}

func (c SubmitReviewCommand) Key() string { return submitReviewKey }

func (c SubmitReviewCommand) LockPropertyID() string { return c.PropertyID }

// SubmitReviewHandler accepts one review per guest and property. The rating
// aggregate is updated by the repository in the same write that stores the
// review, so concurrent submissions never lose a score.
type SubmitReviewHandler struct {
	UoWFactory uow.UoWFactory
	Events     outbox.Publisher
	Clock      clock.Clock
	Logger     *slog.Logger
}

func (h *SubmitReviewHandler) Handle(ctx context.Context, cmd SubmitReviewCommand) (dto.SubmittedReview, error) {
	if err := domainreviews.ValidateRating(cmd.Rating); err != nil {
		return dto.SubmittedReview{}, err
	}
	now := clock.OrSystem(h.Clock).Now()
	guestID := strings.TrimSpace(cmd.GuestID)

	var (
		review domainreviews.Review
		rating domainreviews.Rating
	)
	err := handlersupport.InUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		prop, err := unit.Properties().ByID(ctx, domainproperty.ID(strings.TrimSpace(cmd.PropertyID)))
		if err != nil {
			return err
		}
		eligible, err := hasEligibleStay(ctx, unit, prop, guestID, now)
		if err != nil {
			return err
		}
		if !eligible {
			return domainreviews.ErrNotEligible
		}
		if prop.HasReviewFrom(guestID) {
			return domainreviews.ErrDuplicateReview
		}

		review, err = domainreviews.New(domainreviews.SubmitParams{
			ID:         domainreviews.ReviewID(uuid.NewString()),
			PropertyID: string(prop.ID),
			GuestID:    guestID,
			Rating:     cmd.Rating,
			Comment:    cmd.Comment,
			CreatedAt:  now,
		})
		if err != nil {
			return err
		}
		rating, err = unit.Properties().AppendReview(ctx, prop.ID, review)
		if err != nil {
			return err
		}
		return h.Events.RecordEvents(ctx, domainreviews.ReviewSubmitted{
			ReviewID:   review.ID,
			PropertyID: review.PropertyID,
			GuestID:    review.GuestID,
			Rating:     review.Rating,
			Average:    rating.Average(),
			Total:      rating.Total,
			At:         review.CreatedAt,
		})
	})
	if err != nil {
		return dto.SubmittedReview{}, err
	}

	if h.Logger != nil {
		h.Logger.Info("review submitted", "property_id", review.PropertyID, "guest_id", review.GuestID, "rating", review.Rating, "average", rating.Average(), "total", rating.Total)
	}
	return dto.SubmittedReview{Review: dto.MapReview(review), Rating: dto.MapRating(rating)}, nil
}

var _ commands.Handler[SubmitReviewCommand, dto.SubmittedReview] = (*SubmitReviewHandler)(nil)
