package reviews

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/app/outbox"
	domainbooking "staybook/internal/domain/booking"
	domainproperty "staybook/internal/domain/property"
	domainreviews "staybook/internal/domain/reviews"
	"staybook/internal/domain/shared/clock"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
	"staybook/internal/infra/storage/memory"
)

var (
	seededAt = time.Date(2030, 6, 1, 9, 0, 0, 0, time.UTC)
	now      = time.Date(2030, 6, 10, 12, 0, 0, 0, time.UTC)
)

type fixture struct {
	props    *memory.PropertyRepository
	bookings *memory.BookingRepository
	box      *memory.Outbox
	factory  memory.Factory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		props:    memory.NewPropertyRepository(),
		bookings: memory.NewBookingRepository(),
		box:      memory.NewOutbox(),
	}
	f.factory = memory.Factory{Properties: f.props, Bookings: f.bookings, Outbox: f.box}

	p, err := domainproperty.New(domainproperty.CreateParams{ID: "p1", OwnerID: "host-1", Title: "Loft", Active: true, Now: seededAt})
	require.NoError(t, err)
	require.NoError(t, f.props.Save(context.Background(), p))
	return f
}

func (f *fixture) addStay(t *testing.T, id, guestID, checkIn, checkOut string) *domainbooking.Booking {
	t.Helper()
	dr, err := daterange.Parse(checkIn, checkOut)
	require.NoError(t, err)
	b, err := domainbooking.New(domainbooking.CreateParams{
		ID:         domainbooking.ID(id),
		PropertyID: "p1",
		GuestID:    guestID,
		Range:      dr,
		Party:      domainbooking.Party{Adults: 1},
		Price: domainbooking.Price{
			Nightly: money.Must(100, "EUR"),
			Base:    money.Must(300, "EUR"),
			Total:   money.Must(300, "EUR"),
		},
		Now: seededAt,
	})
	require.NoError(t, err)
	require.NoError(t, f.bookings.Save(context.Background(), b))
	return b
}

func (f *fixture) submitter() *SubmitReviewHandler {
	return &SubmitReviewHandler{UoWFactory: f.factory, Events: outbox.Publisher{Outbox: f.box}, Clock: clock.Fixed(now)}
}

func TestCanReviewRequiresEndedStay(t *testing.T) {
	f := newFixture(t)
	f.addStay(t, "b-past", "guest-1", "2030-06-02", "2030-06-05")
	f.addStay(t, "b-future", "guest-2", "2030-06-12", "2030-06-14")
	f.addStay(t, "b-current", "guest-3", "2030-06-08", "2030-06-11")

	handler := &CanReviewHandler{UoWFactory: f.factory, Clock: clock.Fixed(now)}
	cases := map[string]bool{
		"guest-1": true,
		"guest-2": false,
		"guest-3": false,
		"guest-4": false,
	}
	for guest, want := range cases {
		res, err := handler.Handle(context.Background(), CanReviewQuery{PropertyID: "p1", GuestID: guest})
		require.NoError(t, err)
		assert.Equal(t, want, res.CanReview, guest)
		assert.Equal(t, "p1", res.PropertyID)
	}

	_, err := handler.Handle(context.Background(), CanReviewQuery{PropertyID: "missing", GuestID: "guest-1"})
	require.ErrorIs(t, err, domainproperty.ErrNotFound)
}

func TestCanReviewCountsCancelledStaysOnceCheckoutPassed(t *testing.T) {
	f := newFixture(t)
	b := f.addStay(t, "b-1", "guest-1", "2030-06-02", "2030-06-05")
	_, err := b.Cancel(seededAt)
	require.NoError(t, err)
	require.NoError(t, f.bookings.Save(context.Background(), b))

	handler := &CanReviewHandler{UoWFactory: f.factory, Clock: clock.Fixed(now)}
	res, err := handler.Handle(context.Background(), CanReviewQuery{PropertyID: "p1", GuestID: "guest-1"})
	require.NoError(t, err)
	assert.True(t, res.CanReview)

	_, err = f.submitter().Handle(context.Background(), SubmitReviewCommand{PropertyID: "p1", GuestID: "guest-1", Rating: 3})
	require.NoError(t, err)
}

func TestSubmitReviewUpdatesAggregate(t *testing.T) {
	f := newFixture(t)
	f.addStay(t, "b-1", "guest-1", "2030-06-02", "2030-06-04")
	f.addStay(t, "b-2", "guest-2", "2030-06-04", "2030-06-06")

	first, err := f.submitter().Handle(context.Background(), SubmitReviewCommand{PropertyID: "p1", GuestID: "guest-1", Rating: 5, Comment: "  lovely  "})
	require.NoError(t, err)
	assert.Equal(t, "lovely", first.Review.Comment)
	assert.Equal(t, 1, first.Rating.TotalReviews)
	assert.InDelta(t, 5.0, first.Rating.Average, 0.001)

	second, err := f.submitter().Handle(context.Background(), SubmitReviewCommand{PropertyID: "p1", GuestID: "guest-2", Rating: 4})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Rating.TotalReviews)
	assert.InDelta(t, 4.5, second.Rating.Average, 0.001)

	stored, err := f.props.ByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, domainreviews.Rating{Sum: 9, Total: 2}, stored.Rating)

	pending := f.box.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, "property.review_submitted", pending[1].Name)

	eligibility, err := (&CanReviewHandler{UoWFactory: f.factory, Clock: clock.Fixed(now)}).Handle(context.Background(), CanReviewQuery{PropertyID: "p1", GuestID: "guest-1"})
	require.NoError(t, err)
	assert.False(t, eligibility.CanReview)
}

func TestSubmitReviewRejections(t *testing.T) {
	f := newFixture(t)
	f.addStay(t, "b-1", "guest-1", "2030-06-02", "2030-06-04")
	f.addStay(t, "b-2", "guest-2", "2030-06-12", "2030-06-14")
	ctx := context.Background()

	_, err := f.submitter().Handle(ctx, SubmitReviewCommand{PropertyID: "p1", GuestID: "guest-1", Rating: 0})
	require.ErrorIs(t, err, domainreviews.ErrInvalidRating)
	_, err = f.submitter().Handle(ctx, SubmitReviewCommand{PropertyID: "p1", GuestID: "guest-1", Rating: 6})
	require.ErrorIs(t, err, domainreviews.ErrInvalidRating)

	_, err = f.submitter().Handle(ctx, SubmitReviewCommand{PropertyID: "p1", GuestID: "guest-2", Rating: 3})
	require.ErrorIs(t, err, domainreviews.ErrNotEligible)

	_, err = f.submitter().Handle(ctx, SubmitReviewCommand{PropertyID: "p1", GuestID: "guest-1", Rating: 3})
	require.NoError(t, err)
	_, err = f.submitter().Handle(ctx, SubmitReviewCommand{PropertyID: "p1", GuestID: "guest-1", Rating: 1})
	require.ErrorIs(t, err, domainreviews.ErrDuplicateReview)

	stored, err := f.props.ByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Rating.Total)
	assert.Len(t, f.box.Pending(), 1)
}

func TestSubmitReviewConcurrentGuestsKeepEveryScore(t *testing.T) {
	f := newFixture(t)
	guests := []string{"g1", "g2", "g3", "g4", "g5", "g6"}
	for _, g := range guests {
		f.addStay(t, "b-"+g, g, "2030-06-02", "2030-06-03")
	}

	var wg sync.WaitGroup
	for i, g := range guests {
		wg.Add(1)
		go func(guest string, score int) {
			defer wg.Done()
			_, err := f.submitter().Handle(context.Background(), SubmitReviewCommand{PropertyID: "p1", GuestID: guest, Rating: score})
			assert.NoError(t, err)
		}(g, i%5+1)
	}
	wg.Wait()

	stored, err := f.props.ByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, len(guests), stored.Rating.Total)
	assert.Equal(t, 1+2+3+4+5+1, stored.Rating.Sum)
	assert.Len(t, stored.Reviews, len(guests))
}

func TestListReviewsPagesNewestFirst(t *testing.T) {
	f := newFixture(t)
	for i, g := range []string{"g1", "g2", "g3"} {
		f.addStay(t, "b-"+g, g, "2030-06-02", "2030-06-03")
		handler := &SubmitReviewHandler{
			UoWFactory: f.factory,
			Events:     outbox.Publisher{Outbox: f.box},
			Clock:      clock.Fixed(now.Add(time.Duration(i) * time.Hour)),
		}
		_, err := handler.Handle(context.Background(), SubmitReviewCommand{PropertyID: "p1", GuestID: g, Rating: i + 3})
		require.NoError(t, err)
	}

	list := &ListReviewsHandler{UoWFactory: f.factory}
	page, err := list.Handle(context.Background(), ListReviewsQuery{PropertyID: "p1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "g3", page.Items[0].GuestID)
	assert.Equal(t, "g2", page.Items[1].GuestID)
	assert.Equal(t, 3, page.Total)
	assert.InDelta(t, 4.0, page.Rating.Average, 0.001)

	rest, err := list.Handle(context.Background(), ListReviewsQuery{PropertyID: "p1", Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, rest.Items, 1)
	assert.Equal(t, "g1", rest.Items[0].GuestID)

	beyond, err := list.Handle(context.Background(), ListReviewsQuery{PropertyID: "p1", Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, beyond.Items)
	assert.Equal(t, 3, beyond.Total)
}
