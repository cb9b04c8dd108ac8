package reviews

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidRating   = errors.New("reviews: rating must be between 1 and 5")
	ErrNotEligible     = errors.New("reviews: guest has no completed stay at this property")
	ErrDuplicateReview = errors.New("reviews: guest already reviewed this property")
	ErrGuestRequired   = errors.New("reviews: guest id is required")
)

const (
	MinRating = 1
	MaxRating = 5
)

type ReviewID string

// Review is immutable once accepted; it lives inside the property document.
type Review struct {
	ID         ReviewID
	PropertyID string
	GuestID    string
	Rating     int
	Comment    string
	CreatedAt  time.Time
}

type SubmitParams struct {
	ID         ReviewID
	PropertyID string
	GuestID    string
	Rating     int
	Comment    string
	CreatedAt  time.Time
}

func New(params SubmitParams) (Review, error) {
	if err := ValidateRating(params.Rating); err != nil {
		return Review{}, err
	}
	guest := strings.TrimSpace(params.GuestID)
	if guest == "" {
		return Review{}, ErrGuestRequired
	}
	return Review{
		ID:         params.ID,
		PropertyID: params.PropertyID,
		GuestID:    guest,
		Rating:     params.Rating,
		Comment:    strings.TrimSpace(params.Comment),
		CreatedAt:  params.CreatedAt.UTC(),
	}, nil
}

func ValidateRating(rating int) error {
	if rating < MinRating || rating > MaxRating {
		return ErrInvalidRating
	}
	return nil
}

// Rating is the running aggregate of accepted reviews. Sum and Total are the
// source of truth; the average is always derived.
type Rating struct {
	Sum   int
	Total int
}

func (r Rating) Add(score int) Rating {
	return Rating{Sum: r.Sum + score, Total: r.Total + 1}
}

func (r Rating) Average() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Sum) / float64(r.Total)
}

// Aggregate recomputes the rating from scratch.
func Aggregate(items []Review) Rating {
	var r Rating
	for _, item := range items {
		r = r.Add(item.Rating)
	}
	return r
}

// ReviewedBy reports whether guestID already has a review among items.
func ReviewedBy(items []Review, guestID string) bool {
	for _, item := range items {
		if item.GuestID == guestID {
			return true
		}
	}
	return false
}
