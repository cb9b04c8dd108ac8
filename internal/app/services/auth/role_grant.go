package auth

import (
	"context"
	"log/slog"
	"strings"

	"staybook/internal/domain/shared/clock"
	domainuser "staybook/internal/domain/user"
)

// RoleGrantHook promotes configured accounts on login. It is how the first
// administrators get their role; there is no HTTP route for it.
type RoleGrantHook struct {
	Users  domainuser.Repository
	Role   domainuser.Role
	Emails []string
	Clock  clock.Clock
	Logger *slog.Logger
}

func (h RoleGrantHook) AfterLogin(ctx context.Context, u *domainuser.User) {
	if h.Users == nil || u == nil || u.HasRole(h.Role) || !h.listed(u.Email) {
		return
	}
	if err := u.EnsureRole(h.Role, clock.OrSystem(h.Clock).Now()); err != nil {
		if h.Logger != nil {
			h.Logger.Warn("role grant rejected", "user_id", u.ID, "role", h.Role, "error", err)
		}
		return
	}
	if err := h.Users.Save(ctx, u); err != nil {
		if h.Logger != nil {
			h.Logger.Warn("role grant not saved", "user_id", u.ID, "role", h.Role, "error", err)
		}
		return
	}
	if h.Logger != nil {
		h.Logger.Info("role granted", "user_id", u.ID, "role", h.Role)
	}
}

func (h RoleGrantHook) listed(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, e := range h.Emails {
		if strings.ToLower(strings.TrimSpace(e)) == email {
			return true
		}
	}
	return false
}

var _ LoginHook = RoleGrantHook{}
