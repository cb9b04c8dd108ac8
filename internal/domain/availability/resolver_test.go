package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"staybook/internal/domain/booking"
	"staybook/internal/domain/shared/daterange"
)

func rng(in, out string) daterange.DateRange {
	dr, err := daterange.Parse(in, out)
	if err != nil {
		panic(err)
	}
	return dr
}

func existing(id string, status booking.Status, in, out string) *booking.Booking {
	return &booking.Booking{ID: booking.ID(id), PropertyID: "prop-1", GuestID: "g", Range: rng(in, out), Status: status}
}

func blockedSet(days ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(days))
	for _, d := range days {
		set[d] = struct{}{}
	}
	return set
}

func TestResolveBackToBackIsAvailable(t *testing.T) {
	bookings := []*booking.Booking{existing("a", booking.StatusConfirmed, "2024-06-10", "2024-06-15")}
	v := Resolve(rng("2024-06-15", "2024-06-20"), bookings, nil, "")
	assert.True(t, v.Available)
	assert.Equal(t, ReasonNone, v.Reason)
}

func TestResolveOverlapConflicts(t *testing.T) {
	bookings := []*booking.Booking{existing("a", booking.StatusPending, "2024-06-10", "2024-06-15")}
	v := Resolve(rng("2024-06-12", "2024-06-18"), bookings, nil, "")
	assert.False(t, v.Available)
	assert.Equal(t, ReasonBookingConflict, v.Reason)
	assert.Equal(t, booking.ID("a"), v.ConflictingBooking)
	assert.NotEmpty(t, v.Message)
}

func TestResolveIgnoresCancelledAndExcluded(t *testing.T) {
	bookings := []*booking.Booking{
		existing("cancelled", booking.StatusCancelled, "2024-06-10", "2024-06-15"),
		existing("mine", booking.StatusConfirmed, "2024-06-10", "2024-06-15"),
	}
	assert.False(t, Resolve(rng("2024-06-11", "2024-06-13"), bookings, nil, "").Available)
	assert.True(t, Resolve(rng("2024-06-11", "2024-06-13"), bookings, nil, "mine").Available)
}

func TestResolveCompletedBookingsStillOccupyDates(t *testing.T) {
	bookings := []*booking.Booking{existing("done", booking.StatusCompleted, "2024-06-10", "2024-06-15")}
	assert.False(t, Resolve(rng("2024-06-14", "2024-06-16"), bookings, nil, "").Available)
}

func TestResolveBlockedDay(t *testing.T) {
	v := Resolve(rng("2024-06-30", "2024-07-02"), nil, blockedSet("2024-07-01"), "")
	assert.False(t, v.Available)
	assert.Equal(t, ReasonBlockedDate, v.Reason)
	assert.Equal(t, "2024-07-01", v.BlockedDay)
}

func TestResolveBlockedCheckoutDayCounts(t *testing.T) {
	v := Resolve(rng("2024-06-30", "2024-07-02"), nil, blockedSet("2024-07-02"), "")
	assert.False(t, v.Available)
	assert.Equal(t, ReasonBlockedDate, v.Reason)
}

func TestResolveReportsBookingConflictFirst(t *testing.T) {
	bookings := []*booking.Booking{existing("a", booking.StatusConfirmed, "2024-06-30", "2024-07-05")}
	v := Resolve(rng("2024-06-30", "2024-07-02"), bookings, blockedSet("2024-07-01"), "")
	assert.Equal(t, ReasonBookingConflict, v.Reason)
}

func TestResolveInvalidRange(t *testing.T) {
	inverted := daterange.DateRange{
		CheckIn:  time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
		CheckOut: time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
	}
	v := Resolve(inverted, nil, nil, "")
	assert.False(t, v.Available)
	assert.Equal(t, ReasonInvalidRange, v.Reason)
}
