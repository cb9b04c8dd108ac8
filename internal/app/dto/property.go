package dto

import (
	"time"

	domainproperty "staybook/internal/domain/property"
	domainreviews "staybook/internal/domain/reviews"
)

type RatingSummary struct {
	Average      float64 `json:"average"`
	TotalReviews int     `json:"total_reviews"`
}

type Property struct {
	ID           string        `json:"id"`
	OwnerID      string        `json:"owner_id"`
	Title        string        `json:"title"`
	Active       bool          `json:"is_active"`
	BlockedDates []string      `json:"blocked_dates"`
	Photos       []string      `json:"photos"`
	Rating       RatingSummary `json:"rating"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

type PropertyCollection struct {
	Items []Property `json:"items"`
}

type BlockedDatesResult struct {
	PropertyID   string   `json:"property_id"`
	Changed      int      `json:"changed"`
	BlockedDates []string `json:"blocked_dates"`
}

type PhotoUploadResult struct {
	PropertyID string `json:"property_id"`
	URL        string `json:"url"`
}

func MapRating(r domainreviews.Rating) RatingSummary {
	return RatingSummary{Average: r.Average(), TotalReviews: r.Total}
}

func MapProperty(p *domainproperty.Property) Property {
	return Property{
		ID:           string(p.ID),
		OwnerID:      p.OwnerID,
		Title:        p.Title,
		Active:       p.Active,
		BlockedDates: FormatDays(p.BlockedDates),
		Photos:       append([]string{}, p.Photos...),
		Rating:       MapRating(p.Rating),
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func FormatDays(days []time.Time) []string {
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, d.UTC().Format(DayLayout))
	}
	return out
}
