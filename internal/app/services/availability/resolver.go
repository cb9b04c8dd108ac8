package availability

import (
	"context"

	"staybook/internal/app/uow"
	domainavailability "staybook/internal/domain/availability"
	domainbooking "staybook/internal/domain/booking"
	domainproperty "staybook/internal/domain/property"
	"staybook/internal/domain/shared/daterange"
)

// VerdictObserver is notified of every verdict the resolver produces.
type VerdictObserver interface {
	ObserveVerdict(v domainavailability.Verdict)
}

// Resolver loads a property's bookings and blocked days through the unit of
// work and runs the pure availability check on them. Booking writes call it
// inside their own unit so the verdict reflects what they are about to commit.
type Resolver struct {
	Observer VerdictObserver
}

func (r Resolver) CheckByID(ctx context.Context, unit uow.UnitOfWork, propertyID domainproperty.ID, candidate daterange.DateRange, exclude domainbooking.ID) (domainavailability.Verdict, error) {
	if err := candidate.Validate(); err != nil {
		return r.observe(domainavailability.Resolve(candidate, nil, nil, exclude)), nil
	}
	prop, err := unit.Properties().ByID(ctx, propertyID)
	if err != nil {
		return domainavailability.Verdict{}, err
	}
	return r.Check(ctx, unit, prop, candidate, exclude)
}

func (r Resolver) Check(ctx context.Context, unit uow.UnitOfWork, prop *domainproperty.Property, candidate daterange.DateRange, exclude domainbooking.ID) (domainavailability.Verdict, error) {
	if err := candidate.Validate(); err != nil {
		return r.observe(domainavailability.Resolve(candidate, nil, nil, exclude)), nil
	}
	bookings, err := unit.Bookings().ListByProperty(ctx, prop.ID)
	if err != nil {
		return domainavailability.Verdict{}, err
	}
	return r.observe(domainavailability.Resolve(candidate, bookings, prop.BlockedSet(), exclude)), nil
}

func (r Resolver) observe(v domainavailability.Verdict) domainavailability.Verdict {
	if r.Observer != nil {
		r.Observer.ObserveVerdict(v)
	}
	return v
}
