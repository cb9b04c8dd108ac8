package booking

import (
	"context"
	"errors"
	"strings"

	"staybook/internal/app/commands"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
)

// PropertyScoped commands name the property whose calendar they change.
type PropertyScoped interface {
	LockPropertyID() string
}

// BookingScoped commands name a booking; the lock is taken on its property.
type BookingScoped interface {
	LockBookingID() string
}

// PropertyLockKey is the lock key shared by every write that can change a
// property's availability.
func PropertyLockKey(propertyID string) string {
	return "property:" + strings.TrimSpace(propertyID)
}

// LockKeys resolves the property lock for a command. Unknown bookings resolve
// to no lock so the handler can report the missing booking itself.
type LockKeys struct {
	UoWFactory uow.UoWFactory
}

func (l LockKeys) Resolve(ctx context.Context, cmd commands.Command) (string, bool, error) {
	switch scoped := cmd.(type) {
	case PropertyScoped:
		id := strings.TrimSpace(scoped.LockPropertyID())
		if id == "" {
			return "", false, nil
		}
		return PropertyLockKey(id), true, nil
	case BookingScoped:
		id := strings.TrimSpace(scoped.LockBookingID())
		if id == "" {
			return "", false, nil
		}
		unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, l.UoWFactory)
		if err != nil {
			return "", false, err
		}
		if cleanup != nil {
			defer cleanup()
		}
		b, err := unit.Bookings().ByID(execCtx, domainbooking.ID(id))
		if errors.Is(err, domainbooking.ErrNotFound) {
			return "", false, nil
		}
		if err != nil {
			return "", false, err
		}
		return PropertyLockKey(string(b.PropertyID)), true, nil
	default:
		return "", false, nil
	}
}
