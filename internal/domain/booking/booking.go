package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/events"
	"staybook/internal/domain/shared/money"
)

var (
	ErrNotFound          = errors.New("booking: not found")
	ErrForbidden         = errors.New("booking: not allowed for this user")
	ErrUnavailable       = errors.New("booking: dates are not available")
	ErrAlreadyCancelled  = errors.New("booking: booking is already cancelled")
	ErrPastCheckIn       = errors.New("booking: check-in date has already passed")
	ErrCheckInInPast     = errors.New("booking: check-in date cannot be in the past")
	ErrInvalidStatus     = errors.New("booking: unknown status")
	ErrInvalidTransition = errors.New("booking: status transition not allowed")
	ErrInvalidParty      = errors.New("booking: at least one adult is required")
	ErrInvalidPrice      = errors.New("booking: price snapshot is invalid")
	ErrPropertyInactive  = errors.New("booking: property is not accepting bookings")
	ErrGuestRequired     = errors.New("booking: guest id is required")
)

type ID string

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

func ParseStatus(raw string) (Status, error) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return s, nil
	default:
		return "", ErrInvalidStatus
	}
}

func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// transitions lists the edges a property owner may take. Anything missing is
// rejected with ErrInvalidTransition.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Party struct {
	Adults   int
	Children int
}

func (p Party) Validate() error {
	if p.Adults < 1 || p.Children < 0 {
		return ErrInvalidParty
	}
	return nil
}

func (p Party) Size() int { return p.Adults + p.Children }

// Price is captured from the request at creation time and never recomputed.
type Price struct {
	Nightly money.Money
	Base    money.Money
	Total   money.Money
}

func (p Price) Validate() error {
	if p.Total.Currency == "" || p.Total.Amount < 0 || p.Base.Amount < 0 || p.Nightly.Amount < 0 {
		return ErrInvalidPrice
	}
	for _, part := range []money.Money{p.Nightly, p.Base} {
		if part.Currency != "" && !part.SameCurrency(p.Total) {
			return ErrInvalidPrice
		}
	}
	return nil
}

type PaymentMethod string

const (
	PaymentCard     PaymentMethod = "card"
	PaymentCash     PaymentMethod = "cash"
	PaymentTransfer PaymentMethod = "transfer"
)

// Immediate payment methods settle at booking time and confirm the stay.
func (m PaymentMethod) Immediate() bool {
	return m == PaymentCard
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

type Payment struct {
	Method PaymentMethod
	Status PaymentStatus
}

type Contact struct {
	Name  string
	Email string
	Phone string
}

type Booking struct {
	ID              ID
	PropertyID      property.ID
	GuestID         string
	Range           daterange.DateRange
	Party           Party
	Price           Price
	Status          Status
	Payment         Payment
	Contact         Contact
	SpecialRequests string
	ArrivalTime     string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id ID) (*Booking, error)
	Save(ctx context.Context, b *Booking) error
	// ListByProperty returns every booking of the property, newest first.
	ListByProperty(ctx context.Context, propertyID property.ID) ([]*Booking, error)
	// ListByGuest returns every booking of the guest, newest first.
	ListByGuest(ctx context.Context, guestID string) ([]*Booking, error)
}

type CreateParams struct {
	ID              ID
	PropertyID      property.ID
	GuestID         string
	Range           daterange.DateRange
	Party           Party
	Price           Price
	PaymentMethod   PaymentMethod
	Contact         Contact
	SpecialRequests string
	ArrivalTime     string
	Now             time.Time
}

func New(params CreateParams) (*Booking, error) {
	guest := strings.TrimSpace(params.GuestID)
	if guest == "" {
		return nil, ErrGuestRequired
	}
	if err := params.Range.Validate(); err != nil {
		return nil, err
	}
	if err := params.Party.Validate(); err != nil {
		return nil, err
	}
	if err := params.Price.Validate(); err != nil {
		return nil, err
	}
	now := params.Now.UTC()
	if params.Range.CheckIn.Before(daterange.Day(now)) {
		return nil, ErrCheckInInPast
	}

	method := PaymentMethod(strings.ToLower(strings.TrimSpace(string(params.PaymentMethod))))
	if method == "" {
		method = PaymentCash
	}
	status, payment := StatusPending, PaymentPending
	if method.Immediate() {
		status, payment = StatusConfirmed, PaymentPaid
	}

	b := &Booking{
		ID:              params.ID,
		PropertyID:      params.PropertyID,
		GuestID:         guest,
		Range:           params.Range,
		Party:           params.Party,
		Price:           params.Price,
		Status:          status,
		Payment:         Payment{Method: method, Status: payment},
		Contact:         params.Contact,
		SpecialRequests: strings.TrimSpace(params.SpecialRequests),
		ArrivalTime:     strings.TrimSpace(params.ArrivalTime),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	b.Record(Created{
		BookingID:  b.ID,
		PropertyID: b.PropertyID,
		GuestID:    b.GuestID,
		CheckIn:    b.Range.CheckIn,
		CheckOut:   b.Range.CheckOut,
		Status:     b.Status,
		Total:      b.Price.Total.Amount,
		Currency:   b.Price.Total.Currency,
		At:         now,
	})
	return b, nil
}

func (b *Booking) OwnedBy(guestID string) bool {
	return guestID != "" && b.GuestID == guestID
}

// Blocking reports whether the booking still occupies its dates.
func (b *Booking) Blocking() bool {
	return b.Status != StatusCancelled
}

// StayEnded reports whether checkout has been reached at now.
func (b *Booking) StayEnded(now time.Time) bool {
	return !now.Before(b.Range.CheckOut)
}

// EffectiveStatus derives the status a reader should see at now: an open
// booking whose checkout has passed reads as completed even before the sweep
// persists it.
func (b *Booking) EffectiveStatus(now time.Time) Status {
	if !b.Status.Terminal() && b.StayEnded(now) {
		return StatusCompleted
	}
	return b.Status
}

// ReviewEligible reports whether the guest may review the stay at now: the
// booking is completed or its checkout day has passed, whatever its status.
func (b *Booking) ReviewEligible(now time.Time) bool {
	return b.Status == StatusCompleted || b.StayEnded(now)
}

// EnsureModifiable guards guest-initiated edits: the booking must not be
// cancelled and its check-in must still be ahead of now.
func (b *Booking) EnsureModifiable(now time.Time) error {
	if b.Status == StatusCancelled {
		return ErrAlreadyCancelled
	}
	if !now.Before(b.Range.CheckIn) {
		return ErrPastCheckIn
	}
	if b.Status == StatusCompleted {
		return ErrInvalidTransition
	}
	return nil
}

// Reschedule moves the stay to a new range and party. Availability of the new
// range is the caller's responsibility.
func (b *Booking) Reschedule(dr daterange.DateRange, party Party, now time.Time) error {
	if err := b.EnsureModifiable(now); err != nil {
		return err
	}
	if err := dr.Validate(); err != nil {
		return err
	}
	if err := party.Validate(); err != nil {
		return err
	}
	if dr.CheckIn.Before(daterange.Day(now)) {
		return ErrCheckInInPast
	}
	previous := b.Range
	b.Range = dr
	b.Party = party
	b.touch(now)
	b.Record(Rescheduled{
		BookingID:    b.ID,
		PropertyID:   b.PropertyID,
		FromCheckIn:  previous.CheckIn,
		FromCheckOut: previous.CheckOut,
		CheckIn:      dr.CheckIn,
		CheckOut:     dr.CheckOut,
		At:           b.UpdatedAt,
	})
	return nil
}

// Cancel is the guest-initiated cancellation. Cancelling an already cancelled
// booking is a no-op and reports changed=false.
func (b *Booking) Cancel(now time.Time) (bool, error) {
	if b.Status == StatusCancelled {
		return false, nil
	}
	if err := b.EnsureModifiable(now); err != nil {
		return false, err
	}
	if !CanTransition(b.Status, StatusCancelled) {
		return false, ErrInvalidTransition
	}
	b.setStatus(StatusCancelled, "guest", now)
	return true, nil
}

// ChangeStatus applies an owner-initiated transition. Setting the current
// status again is a no-op.
func (b *Booking) ChangeStatus(to Status, now time.Time) (bool, error) {
	if _, err := ParseStatus(string(to)); err != nil {
		return false, err
	}
	if b.Status == to {
		return false, nil
	}
	if !CanTransition(b.Status, to) {
		return false, ErrInvalidTransition
	}
	b.setStatus(to, "owner", now)
	return true, nil
}

// CompleteIfEnded moves an open booking whose checkout has passed to completed.
func (b *Booking) CompleteIfEnded(now time.Time) bool {
	if b.Status.Terminal() || !b.StayEnded(now) {
		return false
	}
	b.setStatus(StatusCompleted, "sweep", now)
	return true
}

// ForceCancel is the administrative cascade: any open booking becomes
// cancelled regardless of dates. Terminal bookings are left untouched.
func (b *Booking) ForceCancel(now time.Time) bool {
	if b.Status.Terminal() {
		return false
	}
	b.setStatus(StatusCancelled, "admin", now)
	return true
}

func (b *Booking) setStatus(to Status, actor string, now time.Time) {
	from := b.Status
	b.Status = to
	b.touch(now)
	b.Record(StatusChanged{
		BookingID:  b.ID,
		PropertyID: b.PropertyID,
		GuestID:    b.GuestID,
		From:       from,
		To:         to,
		Actor:      actor,
		At:         b.UpdatedAt,
	})
}

func (b *Booking) touch(now time.Time) {
	if now.IsZero() {
		now = time.Now()
	}
	b.UpdatedAt = now.UTC()
}
