package dto

import (
	"time"

	domainreviews "staybook/internal/domain/reviews"
)

type Review struct {
	ID         string    `json:"id"`
	PropertyID string    `json:"property_id"`
	GuestID    string    `json:"guest_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"created_at"`
}

type ReviewCollection struct {
	Items  []Review      `json:"items"`
	Total  int           `json:"total"`
	Rating RatingSummary `json:"rating"`
}

type SubmittedReview struct {
	Review Review        `json:"review"`
	Rating RatingSummary `json:"rating"`
}

type ReviewEligibility struct {
	PropertyID string `json:"property_id"`
	CanReview  bool   `json:"can_review"`
}

func MapReview(r domainreviews.Review) Review {
	return Review{
		ID:         string(r.ID),
		PropertyID: r.PropertyID,
		GuestID:    r.GuestID,
		Rating:     r.Rating,
		Comment:    r.Comment,
		CreatedAt:  r.CreatedAt,
	}
}
