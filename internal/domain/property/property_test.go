package property

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/domain/reviews"
)

var now = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func newProperty(t *testing.T) *Property {
	t.Helper()
	p, err := New(CreateParams{ID: "prop-1", OwnerID: "owner-1", Title: "Sea view loft", Active: true, Now: now})
	require.NoError(t, err)
	p.ClearEvents()
	return p
}

func TestNewRequiresOwnerAndTitle(t *testing.T) {
	_, err := New(CreateParams{ID: "p", Title: "x"})
	assert.ErrorIs(t, err, ErrOwnerRequired)
	_, err = New(CreateParams{ID: "p", OwnerID: "o"})
	assert.ErrorIs(t, err, ErrTitleRequired)
}

func TestBlockAndUnblockAreSetOperations(t *testing.T) {
	p := newProperty(t)
	first := time.Date(2024, 7, 1, 18, 30, 0, 0, time.UTC)
	second := time.Date(2024, 7, 3, 0, 0, 0, 0, time.UTC)

	added, err := p.Block([]time.Time{second, first, first}, now)
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, []time.Time{time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), second}, p.BlockedDates)
	assert.True(t, p.IsBlocked(time.Date(2024, 7, 1, 6, 0, 0, 0, time.UTC)))

	added, err = p.Block([]time.Time{first}, now)
	require.NoError(t, err)
	assert.Zero(t, added)

	removed, err := p.Unblock([]time.Time{first, time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)}, now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.False(t, p.IsBlocked(first))
	assert.True(t, p.IsBlocked(second))

	_, err = p.Block(nil, now)
	assert.ErrorIs(t, err, ErrNoDays)
	assert.Len(t, p.PendingEvents(), 2)
}

func TestSetActiveReportsChange(t *testing.T) {
	p := newProperty(t)
	assert.False(t, p.SetActive(true, now))
	assert.True(t, p.SetActive(false, now))
	assert.False(t, p.Active)
}

func TestAddReviewMaintainsAggregate(t *testing.T) {
	p := newProperty(t)
	ratings := []int{5, 4, 2}
	for i, r := range ratings {
		rev, err := reviews.New(reviews.SubmitParams{ID: reviews.ReviewID(string(rune('a' + i))), PropertyID: "prop-1", GuestID: string(rune('a' + i)), Rating: r, CreatedAt: now})
		require.NoError(t, err)
		_, err = p.AddReview(rev)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, p.Rating.Total)
	assert.InDelta(t, 11.0/3.0, p.Rating.Average(), 1e-9)

	dup, err := reviews.New(reviews.SubmitParams{PropertyID: "prop-1", GuestID: "a", Rating: 1, CreatedAt: now})
	require.NoError(t, err)
	_, err = p.AddReview(dup)
	assert.ErrorIs(t, err, reviews.ErrDuplicateReview)
	assert.Equal(t, 3, p.Rating.Total)
	assert.True(t, p.HasReviewFrom("b"))
}
