package reviews

import (
	"context"
	"slices"
	"strings"

	"staybook/internal/app/dto"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
	domainproperty "staybook/internal/domain/property"
	domainreviews "staybook/internal/domain/reviews"
)

const listReviewsKey = "reviews.list"

// ListReviewsQuery pages through a property's reviews. A zero Limit returns
// defaultReviewPage items.
type ListReviewsQuery struct {
	PropertyID string `validate:"required"`
	Limit      int    `validate:"gte=0,lte=100"`
	Offset     int    `validate:"gte=0"`
}

const defaultReviewPage = 20

func (q ListReviewsQuery) Key() string { return listReviewsKey }

type ListReviewsHandler struct {
	UoWFactory uow.UoWFactory
}

// Handle returns the property's reviews newest first together with the
// stored aggregate.
func (h *ListReviewsHandler) Handle(ctx context.Context, q ListReviewsQuery) (dto.ReviewCollection, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.ReviewCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	prop, err := unit.Properties().ByID(execCtx, domainproperty.ID(strings.TrimSpace(q.PropertyID)))
	if err != nil {
		return dto.ReviewCollection{}, err
	}

	items := slices.Clone(prop.Reviews)
	slices.SortStableFunc(items, func(a, b domainreviews.Review) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	out := dto.ReviewCollection{
		Items:  make([]dto.Review, 0, len(items)),
		Total:  prop.Rating.Total,
		Rating: dto.MapRating(prop.Rating),
	}
	limit := q.Limit
	if limit == 0 {
		limit = defaultReviewPage
	}
	start := min(q.Offset, len(items))
	end := min(start+limit, len(items))
	for _, r := range items[start:end] {
		out.Items = append(out.Items, dto.MapReview(r))
	}
	return out, nil
}

var _ queries.Handler[ListReviewsQuery, dto.ReviewCollection] = (*ListReviewsHandler)(nil)
