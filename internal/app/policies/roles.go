package policies

import (
	"context"
	"errors"

	domainuser "staybook/internal/domain/user"
)

var ErrRoleRequired = errors.New("policies: caller lacks the required role")

// Caller identifies who sent a message. System callers (event consumers,
// schedulers) bypass role checks.
type Caller struct {
	ID     string
	Roles  []domainuser.Role
	System bool
}

func (c Caller) Has(role domainuser.Role) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Restricted messages declare the role needed to send them.
type Restricted interface {
	RequiredRole() domainuser.Role
	Actor() Caller
}

// RoleAuthorizer enforces Restricted messages and lets everything else pass.
type RoleAuthorizer struct{}

func (RoleAuthorizer) Authorize(_ context.Context, message any) error {
	restricted, ok := message.(Restricted)
	if !ok {
		return nil
	}
	caller := restricted.Actor()
	if caller.System || caller.Has(restricted.RequiredRole()) {
		return nil
	}
	return ErrRoleRequired
}
