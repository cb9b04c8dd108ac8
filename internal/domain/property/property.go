package property

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"staybook/internal/domain/reviews"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/events"
)

var (
	ErrNotFound       = errors.New("property: not found")
	ErrForbidden      = errors.New("property: caller does not own this property")
	ErrIDRequired     = errors.New("property: id is required")
	ErrOwnerRequired  = errors.New("property: owner is required")
	ErrTitleRequired  = errors.New("property: title is required")
	ErrNoDays         = errors.New("property: at least one day is required")
	ErrPhotoURLNeeded = errors.New("property: photo url is required")
)

type ID string

// Property is the availability-relevant projection of a listing: who owns it,
// whether it takes bookings, which days are closed, and its review aggregate.
type Property struct {
	ID           ID
	OwnerID      string
	Title        string
	Active       bool
	BlockedDates []time.Time
	Photos       []string
	Reviews      []reviews.Review
	Rating       reviews.Rating
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Version      int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id ID) (*Property, error)
	Save(ctx context.Context, p *Property) error
	ListByOwner(ctx context.Context, ownerID string) ([]*Property, error)
	// AppendReview adds the review and folds it into the rating in one atomic
	// step. It fails with reviews.ErrDuplicateReview when the guest already
	// reviewed the property.
	AppendReview(ctx context.Context, id ID, review reviews.Review) (reviews.Rating, error)
}

type CreateParams struct {
	ID      ID
	OwnerID string
	Title   string
	Active  bool
	Now     time.Time
}

func New(params CreateParams) (*Property, error) {
	id := ID(strings.TrimSpace(string(params.ID)))
	if id == "" {
		return nil, ErrIDRequired
	}
	owner := strings.TrimSpace(params.OwnerID)
	if owner == "" {
		return nil, ErrOwnerRequired
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	now := params.Now.UTC()
	p := &Property{
		ID:        id,
		OwnerID:   owner,
		Title:     title,
		Active:    params.Active,
		CreatedAt: now,
		UpdatedAt: now,
	}
	p.Record(Created{PropertyID: id, OwnerID: owner, At: now})
	return p, nil
}

func (p *Property) OwnedBy(userID string) bool {
	return userID != "" && p.OwnerID == userID
}

// SetActive toggles whether new bookings are accepted. It reports whether the
// flag actually changed.
func (p *Property) SetActive(active bool, now time.Time) bool {
	if p.Active == active {
		return false
	}
	p.Active = active
	p.touch(now)
	if active {
		p.Record(Activated{PropertyID: p.ID, At: p.UpdatedAt})
	} else {
		p.Record(Deactivated{PropertyID: p.ID, At: p.UpdatedAt})
	}
	return true
}

// Block closes the given days. Days already blocked are ignored; the number of
// newly blocked days is returned.
func (p *Property) Block(days []time.Time, now time.Time) (int, error) {
	if len(days) == 0 {
		return 0, ErrNoDays
	}
	set := p.BlockedSet()
	added := make([]time.Time, 0, len(days))
	for _, d := range days {
		day := daterange.Day(d)
		key := daterange.DayKey(day)
		if _, ok := set[key]; ok {
			continue
		}
		set[key] = struct{}{}
		p.BlockedDates = append(p.BlockedDates, day)
		added = append(added, day)
	}
	if len(added) == 0 {
		return 0, nil
	}
	slices.SortFunc(p.BlockedDates, func(a, b time.Time) int { return a.Compare(b) })
	p.touch(now)
	p.Record(DatesBlocked{PropertyID: p.ID, Days: added, At: p.UpdatedAt})
	return len(added), nil
}

// Unblock reopens the given days and returns how many were removed.
func (p *Property) Unblock(days []time.Time, now time.Time) (int, error) {
	if len(days) == 0 {
		return 0, ErrNoDays
	}
	drop := make(map[string]struct{}, len(days))
	for _, d := range days {
		drop[daterange.DayKey(d)] = struct{}{}
	}
	kept := p.BlockedDates[:0]
	removed := make([]time.Time, 0, len(days))
	for _, day := range p.BlockedDates {
		if _, ok := drop[daterange.DayKey(day)]; ok {
			removed = append(removed, day)
			continue
		}
		kept = append(kept, day)
	}
	p.BlockedDates = kept
	if len(removed) == 0 {
		return 0, nil
	}
	p.touch(now)
	p.Record(DatesUnblocked{PropertyID: p.ID, Days: removed, At: p.UpdatedAt})
	return len(removed), nil
}

// BlockedSet indexes blocked days by their YYYY-MM-DD key.
func (p *Property) BlockedSet() map[string]struct{} {
	set := make(map[string]struct{}, len(p.BlockedDates))
	for _, day := range p.BlockedDates {
		set[daterange.DayKey(day)] = struct{}{}
	}
	return set
}

func (p *Property) IsBlocked(day time.Time) bool {
	_, ok := p.BlockedSet()[daterange.DayKey(day)]
	return ok
}

func (p *Property) AddPhoto(url string, now time.Time) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return ErrPhotoURLNeeded
	}
	p.Photos = append(p.Photos, url)
	p.touch(now)
	p.Record(PhotoAdded{PropertyID: p.ID, URL: url, At: p.UpdatedAt})
	return nil
}

// AddReview appends a review and updates the aggregate in memory. Stores that
// cannot hold a lock around this call must implement Repository.AppendReview
// as a single conditional write instead.
func (p *Property) AddReview(review reviews.Review) (reviews.Rating, error) {
	if reviews.ReviewedBy(p.Reviews, review.GuestID) {
		return p.Rating, reviews.ErrDuplicateReview
	}
	p.Reviews = append(p.Reviews, review)
	p.Rating = p.Rating.Add(review.Rating)
	return p.Rating, nil
}

func (p *Property) HasReviewFrom(guestID string) bool {
	return reviews.ReviewedBy(p.Reviews, guestID)
}

func (p *Property) touch(now time.Time) {
	if now.IsZero() {
		now = time.Now()
	}
	p.UpdatedAt = now.UTC()
}
