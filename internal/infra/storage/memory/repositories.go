package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	domainproperty "staybook/internal/domain/property"
	domainreviews "staybook/internal/domain/reviews"
	"staybook/internal/domain/shared/events"
)

// PropertyRepository keeps properties in memory. Reads return copies, so a
// handler's changes are only visible after Save.
type PropertyRepository struct {
	mu    sync.RWMutex
	items map[domainproperty.ID]*domainproperty.Property
}

func NewPropertyRepository() *PropertyRepository {
	return &PropertyRepository{items: make(map[domainproperty.ID]*domainproperty.Property)}
}

func (r *PropertyRepository) ByID(ctx context.Context, id domainproperty.ID) (*domainproperty.Property, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[id]
	if !ok {
		return nil, domainproperty.ErrNotFound
	}
	return cloneProperty(p), nil
}

// Save stores the owner-managed fields of p. Reviews and the rating are
// owned by AppendReview and are never overwritten here.
func (r *PropertyRepository) Save(ctx context.Context, p *domainproperty.Property) error {
	if p == nil || p.ID == "" {
		return domainproperty.ErrIDRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, exists := r.items[p.ID]
	if exists && stored.Version != p.Version {
		return uow.ErrConcurrentUpdate
	}
	next := cloneProperty(p)
	if exists {
		next.Reviews = slices.Clone(stored.Reviews)
		next.Rating = stored.Rating
	}
	next.Version = p.Version + 1
	r.items[p.ID] = next
	p.Version = next.Version
	return nil
}

func (r *PropertyRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domainproperty.Property, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domainproperty.Property, 0)
	for _, p := range r.items {
		if p.OwnerID == ownerID {
			out = append(out, cloneProperty(p))
		}
	}
	slices.SortFunc(out, func(a, b *domainproperty.Property) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

// AppendReview adds the review and bumps the aggregate under the repository
// lock. The property version is left alone so owner edits never conflict
// with reviews.
func (r *PropertyRepository) AppendReview(ctx context.Context, id domainproperty.ID, review domainreviews.Review) (domainreviews.Rating, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return domainreviews.Rating{}, domainproperty.ErrNotFound
	}
	return p.AddReview(review)
}

// BookingRepository stores bookings in memory with optimistic versioning.
type BookingRepository struct {
	mu    sync.RWMutex
	items map[domainbooking.ID]*domainbooking.Booking
}

func NewBookingRepository() *BookingRepository {
	return &BookingRepository{items: make(map[domainbooking.ID]*domainbooking.Booking)}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.ID) (*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.items[id]
	if !ok {
		return nil, domainbooking.ErrNotFound
	}
	return cloneBooking(b), nil
}

func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, exists := r.items[b.ID]
	if (exists && stored.Version != b.Version) || (!exists && b.Version != 0) {
		return uow.ErrConcurrentUpdate
	}
	next := cloneBooking(b)
	next.Version = b.Version + 1
	r.items[b.ID] = next
	b.Version = next.Version
	return nil
}

func (r *BookingRepository) ListByProperty(ctx context.Context, propertyID domainproperty.ID) ([]*domainbooking.Booking, error) {
	return r.list(func(b *domainbooking.Booking) bool { return b.PropertyID == propertyID }), nil
}

func (r *BookingRepository) ListByGuest(ctx context.Context, guestID string) ([]*domainbooking.Booking, error) {
	return r.list(func(b *domainbooking.Booking) bool { return b.GuestID == guestID }), nil
}

func (r *BookingRepository) list(match func(*domainbooking.Booking) bool) []*domainbooking.Booking {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domainbooking.Booking, 0)
	for _, b := range r.items {
		if match(b) {
			out = append(out, cloneBooking(b))
		}
	}
	slices.SortFunc(out, newestFirst)
	return out
}

func newestFirst(a, b *domainbooking.Booking) int {
	return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID))
}

func cloneProperty(p *domainproperty.Property) *domainproperty.Property {
	c := *p
	c.BlockedDates = slices.Clone(p.BlockedDates)
	c.Photos = slices.Clone(p.Photos)
	c.Reviews = slices.Clone(p.Reviews)
	c.EventRecorder = events.EventRecorder{}
	if c.BlockedDates == nil {
		c.BlockedDates = []time.Time{}
	}
	return &c
}

func cloneBooking(b *domainbooking.Booking) *domainbooking.Booking {
	c := *b
	c.EventRecorder = events.EventRecorder{}
	return &c
}

var _ domainproperty.Repository = (*PropertyRepository)(nil)
var _ domainbooking.Repository = (*BookingRepository)(nil)
