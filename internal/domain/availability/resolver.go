package availability

import (
	"fmt"

	"staybook/internal/domain/booking"
	"staybook/internal/domain/shared/daterange"
)

type Reason string

const (
	ReasonNone            Reason = ""
	ReasonInvalidRange    Reason = "invalid_range"
	ReasonBookingConflict Reason = "booking_conflict"
	ReasonBlockedDate     Reason = "blocked_date"
)

// Verdict is the outcome of an availability check. Message is meant for end
// users; Reason is for callers that need to branch on the cause.
type Verdict struct {
	Available bool
	Reason    Reason
	Message   string
	// ConflictingBooking is set when Reason is ReasonBookingConflict.
	ConflictingBooking booking.ID
	// BlockedDay is set when Reason is ReasonBlockedDate (YYYY-MM-DD).
	BlockedDay string
}

func Unavailable(reason Reason, message string) Verdict {
	return Verdict{Available: false, Reason: reason, Message: message}
}

// Resolve decides whether candidate can be booked given the property's
// bookings and blocked days. Cancelled bookings and the booking named by
// exclude are ignored. Blocked days are matched against every day of the
// candidate including its checkout day. A booking conflict is reported ahead
// of a blocked-day conflict when both apply.
func Resolve(candidate daterange.DateRange, bookings []*booking.Booking, blocked map[string]struct{}, exclude booking.ID) Verdict {
	if err := candidate.Validate(); err != nil {
		return Unavailable(ReasonInvalidRange, "check-out must be after check-in")
	}

	for _, b := range bookings {
		if b == nil || !b.Blocking() {
			continue
		}
		if exclude != "" && b.ID == exclude {
			continue
		}
		if b.Range.Overlaps(candidate) {
			v := Unavailable(ReasonBookingConflict, fmt.Sprintf("dates %s are already booked", candidate))
			v.ConflictingBooking = b.ID
			return v
		}
	}

	if len(blocked) > 0 {
		for day := range candidate.Days() {
			key := daterange.DayKey(day)
			if _, ok := blocked[key]; ok {
				v := Unavailable(ReasonBlockedDate, fmt.Sprintf("%s is blocked by the owner", key))
				v.BlockedDay = key
				return v
			}
		}
	}

	return Verdict{Available: true, Message: "dates are available"}
}
