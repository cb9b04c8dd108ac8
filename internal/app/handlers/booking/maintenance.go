package booking

import (
	"context"
	"log/slog"
	"strings"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	"staybook/internal/app/uow"
	"staybook/internal/domain/shared/clock"
	domainuser "staybook/internal/domain/user"
)

const (
	sweepCompletedBookingsKey = "booking.sweep_completed"
	cancelGuestBookingsKey    = "booking.cancel_for_guest"
)

// SweepCompletedBookingsCommand persists the completed status for a guest's
// stays whose checkout has passed.
type SweepCompletedBookingsCommand struct {
	GuestID string `validate:"required"`
}

func (c SweepCompletedBookingsCommand) Key() string { return sweepCompletedBookingsKey }

type SweepResult struct {
	GuestID   string `json:"guest_id"`
	Completed int    `json:"completed"`
}

type SweepCompletedBookingsHandler struct {
	UoWFactory uow.UoWFactory
	Events     outbox.Publisher
	Clock      clock.Clock
	Logger     *slog.Logger
}

func (h *SweepCompletedBookingsHandler) Handle(ctx context.Context, cmd SweepCompletedBookingsCommand) (SweepResult, error) {
	now := clock.OrSystem(h.Clock).Now()
	result := SweepResult{GuestID: strings.TrimSpace(cmd.GuestID)}
	err := handlersupport.InUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		bookings, err := unit.Bookings().ListByGuest(ctx, result.GuestID)
		if err != nil {
			return err
		}
		for _, b := range bookings {
			if !b.CompleteIfEnded(now) {
				continue
			}
			if err := unit.Bookings().Save(ctx, b); err != nil {
				return err
			}
			if err := h.Events.Record(ctx, b); err != nil {
				return err
			}
			result.Completed++
		}
		return nil
	})
	if err != nil {
		return SweepResult{}, err
	}
	if h.Logger != nil && result.Completed > 0 {
		h.Logger.Info("completed ended bookings", "guest_id", result.GuestID, "count", result.Completed)
	}
	return result, nil
}

// CancelGuestBookingsCommand cancels every open booking of a guest. It is sent
// by administrators and by the user.deleted consumer.
type CancelGuestBookingsCommand struct {
	GuestID string `validate:"required"`
	Caller  policies.Caller
}

func (c CancelGuestBookingsCommand) Key() string { return cancelGuestBookingsKey }

func (c CancelGuestBookingsCommand) RequiredRole() domainuser.Role { return domainuser.RoleAdmin }

func (c CancelGuestBookingsCommand) Actor() policies.Caller { return c.Caller }

type CancelGuestBookingsHandler struct {
	UoWFactory uow.UoWFactory
	Events     outbox.Publisher
	Clock      clock.Clock
	Logger     *slog.Logger
}

func (h *CancelGuestBookingsHandler) Handle(ctx context.Context, cmd CancelGuestBookingsCommand) (dto.CascadeResult, error) {
	now := clock.OrSystem(h.Clock).Now()
	result := dto.CascadeResult{GuestID: strings.TrimSpace(cmd.GuestID)}
	err := handlersupport.InUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		bookings, err := unit.Bookings().ListByGuest(ctx, result.GuestID)
		if err != nil {
			return err
		}
		for _, b := range bookings {
			if !b.ForceCancel(now) {
				continue
			}
			if err := unit.Bookings().Save(ctx, b); err != nil {
				return err
			}
			if err := h.Events.Record(ctx, b); err != nil {
				return err
			}
			result.Cancelled++
		}
		return nil
	})
	if err != nil {
		return dto.CascadeResult{}, err
	}
	if h.Logger != nil {
		h.Logger.Info("guest bookings cancelled", "guest_id", result.GuestID, "count", result.Cancelled, "caller", cmd.Caller.ID, "system", cmd.Caller.System)
	}
	return result, nil
}

// CompletionSweepHook runs the completion sweep for a guest after login.
// Failures are logged and never block the login.
type CompletionSweepHook struct {
	Bus    commands.Bus
	Logger *slog.Logger
}

func (h CompletionSweepHook) AfterLogin(ctx context.Context, u *domainuser.User) {
	if h.Bus == nil || u == nil {
		return
	}
	_, err := commands.Dispatch[SweepCompletedBookingsCommand, SweepResult](ctx, h.Bus, SweepCompletedBookingsCommand{GuestID: string(u.ID)})
	if err != nil && h.Logger != nil {
		h.Logger.Warn("completion sweep failed", "user_id", u.ID, "error", err)
	}
}

var _ commands.Handler[SweepCompletedBookingsCommand, SweepResult] = (*SweepCompletedBookingsHandler)(nil)
var _ commands.Handler[CancelGuestBookingsCommand, dto.CascadeResult] = (*CancelGuestBookingsHandler)(nil)
var _ policies.Restricted = CancelGuestBookingsCommand{}
