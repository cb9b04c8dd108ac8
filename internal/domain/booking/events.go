package booking

import (
	"time"

	"staybook/internal/domain/property"
)

type Created struct {
	BookingID  ID          `json:"booking_id"`
	PropertyID property.ID `json:"property_id"`
	GuestID    string      `json:"guest_id"`
	CheckIn    time.Time   `json:"check_in"`
	CheckOut   time.Time   `json:"check_out"`
	Status     Status      `json:"status"`
	Total      int64       `json:"total"`
	Currency   string      `json:"currency"`
	At         time.Time   `json:"at"`
}

func (e Created) EventName() string     { return "booking.created" }
func (e Created) AggregateID() string   { return string(e.BookingID) }
func (e Created) OccurredAt() time.Time { return e.At }

type Rescheduled struct {
	BookingID    ID          `json:"booking_id"`
	PropertyID   property.ID `json:"property_id"`
	FromCheckIn  time.Time   `json:"from_check_in"`
	FromCheckOut time.Time   `json:"from_check_out"`
	CheckIn      time.Time   `json:"check_in"`
	CheckOut     time.Time   `json:"check_out"`
	At           time.Time   `json:"at"`
}

func (e Rescheduled) EventName() string     { return "booking.rescheduled" }
func (e Rescheduled) AggregateID() string   { return string(e.BookingID) }
func (e Rescheduled) OccurredAt() time.Time { return e.At }

// StatusChanged covers every move through the lifecycle; Actor tells who
// triggered it (guest, owner, sweep, admin).
type StatusChanged struct {
	BookingID  ID          `json:"booking_id"`
	PropertyID property.ID `json:"property_id"`
	GuestID    string      `json:"guest_id"`
	From       Status      `json:"from"`
	To         Status      `json:"to"`
	Actor      string      `json:"actor"`
	At         time.Time   `json:"at"`
}

func (e StatusChanged) EventName() string     { return "booking.status_changed" }
func (e StatusChanged) AggregateID() string   { return string(e.BookingID) }
func (e StatusChanged) OccurredAt() time.Time { return e.At }
