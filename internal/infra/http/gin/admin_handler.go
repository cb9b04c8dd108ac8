package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	adminapp "staybook/internal/app/handlers/admin"
	bookingapp "staybook/internal/app/handlers/booking"
	domainuser "staybook/internal/domain/user"
)

type AdminHTTP interface {
	CancelGuestBookings(c *gin.Context)
	DeleteUser(c *gin.Context)
}

type AdminHandler struct {
	Commands commands.Bus
	Logger   *slog.Logger
}

func (h AdminHandler) CancelGuestBookings(c *gin.Context) {
	admin, ok := requireRole(c, domainuser.RoleAdmin)
	if !ok {
		return
	}
	result, err := commands.Dispatch[bookingapp.CancelGuestBookingsCommand, dto.CascadeResult](c.Request.Context(), h.Commands, bookingapp.CancelGuestBookingsCommand{
		GuestID: c.Param("id"),
		Caller:  admin.Caller(),
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AdminHandler) DeleteUser(c *gin.Context) {
	admin, ok := requireRole(c, domainuser.RoleAdmin)
	if !ok {
		return
	}
	result, err := commands.Dispatch[adminapp.DeleteUserCommand, dto.CascadeResult](c.Request.Context(), h.Commands, adminapp.DeleteUserCommand{
		UserID: c.Param("id"),
		Caller: admin.Caller(),
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ AdminHTTP = AdminHandler{}
