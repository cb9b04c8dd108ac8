package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func day(s string) time.Time {
	t, err := daterange.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func newTestBooking(t *testing.T, method PaymentMethod, in, out string) *Booking {
	t.Helper()
	b, err := New(CreateParams{
		ID:            "bk-1",
		PropertyID:    "prop-1",
		GuestID:       "guest-1",
		Range:         daterange.MustNew(day(in), day(out)),
		Party:         Party{Adults: 2},
		Price:         Price{Nightly: money.Must(100, "EUR"), Base: money.Must(500, "EUR"), Total: money.Must(500, "EUR")},
		PaymentMethod: method,
		Now:           testNow,
	})
	require.NoError(t, err)
	return b
}

func TestNewSetsStatusFromPaymentMethod(t *testing.T) {
	card := newTestBooking(t, PaymentCard, "2024-06-10", "2024-06-15")
	assert.Equal(t, StatusConfirmed, card.Status)
	assert.Equal(t, PaymentPaid, card.Payment.Status)

	cash := newTestBooking(t, PaymentCash, "2024-06-10", "2024-06-15")
	assert.Equal(t, StatusPending, cash.Status)
	assert.Equal(t, PaymentPending, cash.Payment.Status)

	events := cash.PendingEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "booking.created", events[0].EventName())
}

func TestNewValidatesInput(t *testing.T) {
	base := CreateParams{
		ID:         "bk",
		PropertyID: "prop",
		GuestID:    "guest",
		Range:      daterange.MustNew(day("2024-06-10"), day("2024-06-12")),
		Party:      Party{Adults: 1},
		Price:      Price{Total: money.Must(0, "EUR")},
		Now:        testNow,
	}

	p := base
	p.GuestID = " "
	_, err := New(p)
	assert.ErrorIs(t, err, ErrGuestRequired)

	p = base
	p.Party = Party{Adults: 0, Children: 2}
	_, err = New(p)
	assert.ErrorIs(t, err, ErrInvalidParty)

	p = base
	p.Price = Price{Base: money.Must(10, "USD"), Total: money.Must(10, "EUR")}
	_, err = New(p)
	assert.ErrorIs(t, err, ErrInvalidPrice)

	p = base
	p.Range = daterange.MustNew(day("2024-05-30"), day("2024-06-02"))
	_, err = New(p)
	assert.ErrorIs(t, err, ErrCheckInInPast)

	p = base
	p.Range = daterange.DateRange{}
	_, err = New(p)
	assert.ErrorIs(t, err, daterange.ErrInvalidRange)
}

func TestChangeStatusFollowsTransitionTable(t *testing.T) {
	cases := []struct {
		from    Status
		to      Status
		changed bool
		err     error
	}{
		{StatusPending, StatusConfirmed, true, nil},
		{StatusPending, StatusCancelled, true, nil},
		{StatusPending, StatusCompleted, false, ErrInvalidTransition},
		{StatusConfirmed, StatusCompleted, true, nil},
		{StatusConfirmed, StatusCancelled, true, nil},
		{StatusConfirmed, StatusPending, false, ErrInvalidTransition},
		{StatusCancelled, StatusConfirmed, false, ErrInvalidTransition},
		{StatusCompleted, StatusCancelled, false, ErrInvalidTransition},
		{StatusConfirmed, StatusConfirmed, false, nil},
		{StatusCancelled, StatusCancelled, false, nil},
		{StatusPending, Status("archived"), false, ErrInvalidStatus},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			b := newTestBooking(t, PaymentCash, "2024-06-10", "2024-06-15")
			b.Status = tc.from
			b.ClearEvents()

			changed, err := b.ChangeStatus(tc.to, testNow)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				assert.Equal(t, tc.from, b.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.changed, changed)
			if changed {
				assert.Equal(t, tc.to, b.Status)
				assert.Len(t, b.PendingEvents(), 1)
			} else {
				assert.Empty(t, b.PendingEvents())
			}
		})
	}
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" Confirmed ")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, s)

	_, err = ParseStatus("archived")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestCancelIsNoOpOnSecondCall(t *testing.T) {
	b := newTestBooking(t, PaymentCard, "2024-06-10", "2024-06-15")

	changed, err := b.Cancel(testNow)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, StatusCancelled, b.Status)

	changed, err = b.Cancel(testNow)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestCancelAfterCheckInFails(t *testing.T) {
	b := newTestBooking(t, PaymentCard, "2024-06-10", "2024-06-15")
	_, err := b.Cancel(day("2024-06-10"))
	assert.ErrorIs(t, err, ErrPastCheckIn)
	assert.Equal(t, StatusConfirmed, b.Status)
}

func TestRescheduleGuards(t *testing.T) {
	b := newTestBooking(t, PaymentCard, "2024-06-10", "2024-06-15")
	next := daterange.MustNew(day("2024-06-20"), day("2024-06-22"))

	err := b.Reschedule(next, Party{Adults: 1}, day("2024-06-11"))
	assert.ErrorIs(t, err, ErrPastCheckIn)

	require.NoError(t, b.Reschedule(next, Party{Adults: 1, Children: 1}, testNow))
	assert.Equal(t, next, b.Range)
	assert.Equal(t, 2, b.Party.Size())

	_, err = b.Cancel(testNow)
	require.NoError(t, err)
	err = b.Reschedule(next, Party{Adults: 1}, testNow)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)
}

func TestEffectiveStatusAndSweep(t *testing.T) {
	b := newTestBooking(t, PaymentCash, "2024-06-10", "2024-06-15")
	before := day("2024-06-14")
	after := day("2024-06-15")

	assert.Equal(t, StatusPending, b.EffectiveStatus(before))
	assert.Equal(t, StatusCompleted, b.EffectiveStatus(after))
	assert.False(t, b.ReviewEligible(before))
	assert.True(t, b.ReviewEligible(after))

	assert.False(t, b.CompleteIfEnded(before))
	assert.True(t, b.CompleteIfEnded(after))
	assert.Equal(t, StatusCompleted, b.Status)
	assert.False(t, b.CompleteIfEnded(after))
}

func TestCancelledBookingBecomesReviewEligibleAfterCheckout(t *testing.T) {
	b := newTestBooking(t, PaymentCash, "2024-06-10", "2024-06-15")
	assert.True(t, b.ForceCancel(testNow))
	assert.False(t, b.ForceCancel(testNow))
	assert.Equal(t, StatusCancelled, b.EffectiveStatus(day("2024-07-01")))
	assert.False(t, b.ReviewEligible(day("2024-06-14")))
	assert.True(t, b.ReviewEligible(day("2024-07-01")))
}
