package admin

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	bookinghandlers "staybook/internal/app/handlers/booking"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	"staybook/internal/app/uow"
	domainauth "staybook/internal/domain/auth"
	"staybook/internal/domain/shared/clock"
	domainuser "staybook/internal/domain/user"
)

const deleteUserKey = "admin.users.delete"

var ErrSelfDelete = errors.New("admin: administrators cannot delete their own account")

// DeleteUserCommand removes an account, revokes its sessions and cancels its
// open bookings. A user.deleted event is published for other services.
type DeleteUserCommand struct {
	UserID string `validate:"required"`
	Caller policies.Caller
}

func (c DeleteUserCommand) Key() string { return deleteUserKey }

func (c DeleteUserCommand) RequiredRole() domainuser.Role { return domainuser.RoleAdmin }

func (c DeleteUserCommand) Actor() policies.Caller { return c.Caller }

type DeleteUserHandler struct {
	UoWFactory uow.UoWFactory
	Users      domainuser.Repository
	Sessions   domainauth.SessionStore
	Cascade    commands.Handler[bookinghandlers.CancelGuestBookingsCommand, dto.CascadeResult]
	Events     outbox.Publisher
	Clock      clock.Clock
	Logger     *slog.Logger
}

func (h *DeleteUserHandler) Handle(ctx context.Context, cmd DeleteUserCommand) (dto.CascadeResult, error) {
	if h.Users == nil || h.Cascade == nil {
		return dto.CascadeResult{}, errors.New("admin: user repository and cascade handler required")
	}
	userID := domainuser.ID(strings.TrimSpace(cmd.UserID))
	if string(userID) == cmd.Caller.ID {
		return dto.CascadeResult{}, ErrSelfDelete
	}
	if _, err := h.Users.ByID(ctx, userID); err != nil {
		return dto.CascadeResult{}, err
	}

	var result dto.CascadeResult
	err := handlersupport.InUnit(ctx, h.UoWFactory, func(ctx context.Context, _ uow.UnitOfWork) error {
		var err error
		result, err = h.Cascade.Handle(ctx, bookinghandlers.CancelGuestBookingsCommand{GuestID: string(userID), Caller: cmd.Caller})
		if err != nil {
			return err
		}
		return h.Events.RecordEvents(ctx, domainuser.Deleted{UserID: userID, At: clock.OrSystem(h.Clock).Now()})
	})
	if err != nil {
		return dto.CascadeResult{}, err
	}

	if h.Sessions != nil {
		if err := h.Sessions.DeleteByUser(ctx, userID); err != nil {
			return dto.CascadeResult{}, err
		}
	}
	if err := h.Users.Delete(ctx, userID); err != nil {
		return dto.CascadeResult{}, err
	}
	if h.Logger != nil {
		h.Logger.Info("user deleted", "user_id", userID, "cancelled_bookings", result.Cancelled, "admin_id", cmd.Caller.ID)
	}
	return result, nil
}

var _ commands.Handler[DeleteUserCommand, dto.CascadeResult] = (*DeleteUserHandler)(nil)
var _ policies.Restricted = DeleteUserCommand{}
