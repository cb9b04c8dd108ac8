package booking

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/middleware"
	"staybook/internal/app/outbox"
	availabilitysvc "staybook/internal/app/services/availability"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	domainproperty "staybook/internal/domain/property"
	"staybook/internal/domain/shared/clock"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

const createBookingKey = "booking.create"

// CreateBookingCommand books a stay. The price fields are the snapshot quoted
// to the guest and are stored as given.
type CreateBookingCommand struct {
	BookingID       string
	PropertyID      string    `validate:"required"`
	GuestID         string    `validate:"required"`
	CheckIn         time.Time `validate:"required"`
	CheckOut        time.Time `validate:"required"`
	Adults          int       `validate:"gte=1"`
	Children        int       `validate:"gte=0"`
	Currency        string    `validate:"required,len=3"`
	NightlyPrice    int64     `validate:"gte=0"`
	BasePrice       int64     `validate:"gte=0"`
	TotalPrice      int64     `validate:"gte=0"`
	PaymentMethod   string    `validate:"omitempty,oneof=card cash transfer"`
	ContactName     string    `validate:"max=200"`
	ContactEmail    string    `validate:"omitempty,email"`
	ContactPhone    string    `validate:"max=40"`
	SpecialRequests string    `validate:"max=2000"`
	ArrivalTime     string    `validate:"max=40"`
	IdempotencyKeyV string
}

func (c CreateBookingCommand) Key() string { return createBookingKey }

// IdempotencyKey is scoped to the guest so two accounts sending the same
// header value never share a stored result.
func (c CreateBookingCommand) IdempotencyKey() string {
	if c.IdempotencyKeyV == "" {
		return ""
	}
	return c.GuestID + "/" + c.IdempotencyKeyV
}

func (c CreateBookingCommand) ResultPrototype() any { return &CreateBookingResult{} }

func (c CreateBookingCommand) LockPropertyID() string { return c.PropertyID }

type CreateBookingResult struct {
	Booking dto.Booking `json:"booking"`
}

type CreateBookingHandler struct {
	UoWFactory uow.UoWFactory
	Resolver   availabilitysvc.Resolver
	Events     outbox.Publisher
	Clock      clock.Clock
	Logger     *slog.Logger
}

func (h *CreateBookingHandler) Handle(ctx context.Context, cmd CreateBookingCommand) (*CreateBookingResult, error) {
	now := clock.OrSystem(h.Clock).Now()
	dr, err := daterange.New(cmd.CheckIn, cmd.CheckOut)
	if err != nil {
		return nil, err
	}
	price, err := priceSnapshot(cmd)
	if err != nil {
		return nil, err
	}
	bookingID := strings.TrimSpace(cmd.BookingID)
	if bookingID == "" {
		bookingID = uuid.NewString()
	}

	var created *domainbooking.Booking
	err = handlersupport.InUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		prop, err := unit.Properties().ByID(ctx, domainproperty.ID(strings.TrimSpace(cmd.PropertyID)))
		if err != nil {
			return err
		}
		if !prop.Active {
			return domainbooking.ErrPropertyInactive
		}
		if dr.CheckIn.Before(daterange.Day(now)) {
			return domainbooking.ErrCheckInInPast
		}
		verdict, err := h.Resolver.Check(ctx, unit, prop, dr, "")
		if err != nil {
			return err
		}
		if !verdict.Available {
			return fmt.Errorf("%w: %s", domainbooking.ErrUnavailable, verdict.Message)
		}

		b, err := domainbooking.New(domainbooking.CreateParams{
			ID:            domainbooking.ID(bookingID),
			PropertyID:    prop.ID,
			GuestID:       cmd.GuestID,
			Range:         dr,
			Party:         domainbooking.Party{Adults: cmd.Adults, Children: cmd.Children},
			Price:         price,
			PaymentMethod: domainbooking.PaymentMethod(cmd.PaymentMethod),
			Contact: domainbooking.Contact{
				Name:  strings.TrimSpace(cmd.ContactName),
				Email: strings.TrimSpace(cmd.ContactEmail),
				Phone: strings.TrimSpace(cmd.ContactPhone),
			},
			SpecialRequests: cmd.SpecialRequests,
			ArrivalTime:     cmd.ArrivalTime,
			Now:             now,
		})
		if err != nil {
			return err
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return err
		}
		created = b
		return h.Events.Record(ctx, b)
	})
	if err != nil {
		return nil, err
	}

	if h.Logger != nil {
		h.Logger.Info("booking created", "booking_id", created.ID, "property_id", created.PropertyID, "guest_id", created.GuestID, "status", created.Status, "range", created.Range.String())
	}
	return &CreateBookingResult{Booking: dto.MapBooking(created, now)}, nil
}

func priceSnapshot(cmd CreateBookingCommand) (domainbooking.Price, error) {
	nightly, err := money.New(cmd.NightlyPrice, cmd.Currency)
	if err != nil {
		return domainbooking.Price{}, fmt.Errorf("%w: %v", domainbooking.ErrInvalidPrice, err)
	}
	base, err := money.New(cmd.BasePrice, cmd.Currency)
	if err != nil {
		return domainbooking.Price{}, fmt.Errorf("%w: %v", domainbooking.ErrInvalidPrice, err)
	}
	total, err := money.New(cmd.TotalPrice, cmd.Currency)
	if err != nil {
		return domainbooking.Price{}, fmt.Errorf("%w: %v", domainbooking.ErrInvalidPrice, err)
	}
	return domainbooking.Price{Nightly: nightly, Base: base, Total: total}, nil
}

var _ commands.Handler[CreateBookingCommand, *CreateBookingResult] = (*CreateBookingHandler)(nil)
var _ middleware.IdempotentCommand = CreateBookingCommand{}
