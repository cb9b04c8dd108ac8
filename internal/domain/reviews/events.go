package reviews

import "time"

type ReviewSubmitted struct {
	ReviewID   ReviewID  `json:"review_id"`
	PropertyID string    `json:"property_id"`
	GuestID    string    `json:"guest_id"`
	Rating     int       `json:"rating"`
	Average    float64   `json:"average"`
	Total      int       `json:"total_reviews"`
	At         time.Time `json:"at"`
}

func (e ReviewSubmitted) EventName() string     { return "property.review_submitted" }
func (e ReviewSubmitted) AggregateID() string   { return e.PropertyID }
func (e ReviewSubmitted) OccurredAt() time.Time { return e.At }
