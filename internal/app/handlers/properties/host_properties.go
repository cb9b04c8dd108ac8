package properties

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	handlersupport "staybook/internal/app/handlers/support"
	"staybook/internal/app/outbox"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
	domainproperty "staybook/internal/domain/property"
	"staybook/internal/domain/shared/clock"
)

const (
	createPropertyKey     = "host.properties.create"
	setPropertyActiveKey  = "host.properties.set_active"
	getPropertyKey        = "properties.get"
	listHostPropertiesKey = "host.properties.list"
)

type CreatePropertyCommand struct {
	PropertyID string
	OwnerID    string `validate:"required"`
	Title      string `validate:"required,max=200"`
	Inactive   bool
}

func (c CreatePropertyCommand) Key() string { return createPropertyKey }

type CreatePropertyHandler struct {
	UoWFactory uow.UoWFactory
	Events     outbox.Publisher
	Clock      clock.Clock
	Logger     *slog.Logger
}

func (h *CreatePropertyHandler) Handle(ctx context.Context, cmd CreatePropertyCommand) (dto.Property, error) {
	id := strings.TrimSpace(cmd.PropertyID)
	if id == "" {
		id = uuid.NewString()
	}
	prop, err := domainproperty.New(domainproperty.CreateParams{
		ID:      domainproperty.ID(id),
		OwnerID: cmd.OwnerID,
		Title:   cmd.Title,
		Active:  !cmd.Inactive,
		Now:     clock.OrSystem(h.Clock).Now(),
	})
	if err != nil {
		return dto.Property{}, err
	}
	err = handlersupport.InUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		if err := unit.Properties().Save(ctx, prop); err != nil {
			return err
		}
		return h.Events.Record(ctx, prop)
	})
	if err != nil {
		return dto.Property{}, err
	}
	if h.Logger != nil {
		h.Logger.Info("property created", "property_id", prop.ID, "owner_id", prop.OwnerID)
	}
	return dto.MapProperty(prop), nil
}

type SetPropertyActiveCommand struct {
	PropertyID string `validate:"required"`
	OwnerID    string `validate:"required"`
	Active     bool
}

func (c SetPropertyActiveCommand) Key() string { return setPropertyActiveKey }

func (c SetPropertyActiveCommand) LockPropertyID() string { return c.PropertyID }

type SetPropertyActiveHandler struct {
	UoWFactory uow.UoWFactory
	Events     outbox.Publisher
	Clock      clock.Clock
	Logger     *slog.Logger
}

func (h *SetPropertyActiveHandler) Handle(ctx context.Context, cmd SetPropertyActiveCommand) (dto.Property, error) {
	now := clock.OrSystem(h.Clock).Now()
	var (
		prop    *domainproperty.Property
		changed bool
	)
	err := handlersupport.InUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		prop, err = loadOwnedProperty(ctx, unit, cmd.PropertyID, cmd.OwnerID)
		if err != nil {
			return err
		}
		if changed = prop.SetActive(cmd.Active, now); !changed {
			return nil
		}
		if err := unit.Properties().Save(ctx, prop); err != nil {
			return err
		}
		return h.Events.Record(ctx, prop)
	})
	if err != nil {
		return dto.Property{}, err
	}
	if h.Logger != nil && changed {
		h.Logger.Info("property availability toggled", "property_id", prop.ID, "active", prop.Active)
	}
	return dto.MapProperty(prop), nil
}

type GetPropertyQuery struct {
	PropertyID string `validate:"required"`
}

func (q GetPropertyQuery) Key() string { return getPropertyKey }

type GetPropertyHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetPropertyHandler) Handle(ctx context.Context, q GetPropertyQuery) (dto.Property, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Property{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	prop, err := unit.Properties().ByID(execCtx, domainproperty.ID(strings.TrimSpace(q.PropertyID)))
	if err != nil {
		return dto.Property{}, err
	}
	return dto.MapProperty(prop), nil
}

type ListHostPropertiesQuery struct {
	OwnerID string `validate:"required"`
}

func (q ListHostPropertiesQuery) Key() string { return listHostPropertiesKey }

type ListHostPropertiesHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListHostPropertiesHandler) Handle(ctx context.Context, q ListHostPropertiesQuery) (dto.PropertyCollection, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.PropertyCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	props, err := unit.Properties().ListByOwner(execCtx, strings.TrimSpace(q.OwnerID))
	if err != nil {
		return dto.PropertyCollection{}, err
	}
	out := dto.PropertyCollection{Items: make([]dto.Property, 0, len(props))}
	for _, p := range props {
		out.Items = append(out.Items, dto.MapProperty(p))
	}
	return out, nil
}

func loadOwnedProperty(ctx context.Context, unit uow.UnitOfWork, propertyID, ownerID string) (*domainproperty.Property, error) {
	prop, err := unit.Properties().ByID(ctx, domainproperty.ID(strings.TrimSpace(propertyID)))
	if err != nil {
		return nil, err
	}
	if !prop.OwnedBy(strings.TrimSpace(ownerID)) {
		return nil, domainproperty.ErrForbidden
	}
	return prop, nil
}

var _ commands.Handler[CreatePropertyCommand, dto.Property] = (*CreatePropertyHandler)(nil)
var _ commands.Handler[SetPropertyActiveCommand, dto.Property] = (*SetPropertyActiveHandler)(nil)
var _ queries.Handler[GetPropertyQuery, dto.Property] = (*GetPropertyHandler)(nil)
var _ queries.Handler[ListHostPropertiesQuery, dto.PropertyCollection] = (*ListHostPropertiesHandler)(nil)
