package dto

import (
	"time"

	domainbooking "staybook/internal/domain/booking"
)

const DayLayout = "2006-01-02"

type PriceSnapshot struct {
	Currency string `json:"currency"`
	Nightly  int64  `json:"nightly"`
	Base     int64  `json:"base"`
	Total    int64  `json:"total"`
}

type GuestContact struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type Booking struct {
	ID              string        `json:"id"`
	PropertyID      string        `json:"property_id"`
	GuestID         string        `json:"guest_id"`
	CheckIn         string        `json:"check_in"`
	CheckOut        string        `json:"check_out"`
	Nights          int           `json:"nights"`
	Adults          int           `json:"adults"`
	Children        int           `json:"children"`
	Price           PriceSnapshot `json:"price"`
	Status          string        `json:"status"`
	PaymentMethod   string        `json:"payment_method"`
	PaymentStatus   string        `json:"payment_status"`
	Contact         GuestContact  `json:"guest_contact"`
	SpecialRequests string        `json:"special_requests,omitempty"`
	ArrivalTime     string        `json:"arrival_time,omitempty"`
	CanReview       bool          `json:"can_review,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

type BookingCollection struct {
	Items []Booking `json:"items"`
}

// MapBooking renders the booking as seen at now; Status is the effective
// status, so stays past checkout read as completed.
func MapBooking(b *domainbooking.Booking, now time.Time) Booking {
	return Booking{
		ID:         string(b.ID),
		PropertyID: string(b.PropertyID),
		GuestID:    b.GuestID,
		CheckIn:    b.Range.CheckIn.Format(DayLayout),
		CheckOut:   b.Range.CheckOut.Format(DayLayout),
		Nights:     b.Range.Nights(),
		Adults:     b.Party.Adults,
		Children:   b.Party.Children,
		Price: PriceSnapshot{
			Currency: b.Price.Total.Currency,
			Nightly:  b.Price.Nightly.Amount,
			Base:     b.Price.Base.Amount,
			Total:    b.Price.Total.Amount,
		},
		Status:        string(b.EffectiveStatus(now)),
		PaymentMethod: string(b.Payment.Method),
		PaymentStatus: string(b.Payment.Status),
		Contact: GuestContact{
			Name:  b.Contact.Name,
			Email: b.Contact.Email,
			Phone: b.Contact.Phone,
		},
		SpecialRequests: b.SpecialRequests,
		ArrivalTime:     b.ArrivalTime,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

func MapBookings(items []*domainbooking.Booking, now time.Time) BookingCollection {
	out := BookingCollection{Items: make([]Booking, 0, len(items))}
	for _, b := range items {
		out.Items = append(out.Items, MapBooking(b, now))
	}
	return out
}
