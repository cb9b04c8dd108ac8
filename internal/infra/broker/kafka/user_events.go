package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/IBM/sarama"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	bookinghandlers "staybook/internal/app/handlers/booking"
	"staybook/internal/app/policies"
	domainuser "staybook/internal/domain/user"
)

// Inbox deduplicates deliveries by event id.
type Inbox interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

type cloudEvent struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type userDeletedData struct {
	UserID string `json:"user_id"`
}

// UserEventsHandler cancels the open bookings of deleted accounts. It
// consumes CloudEvents from the user.events.v1 topic and ignores other types.
type UserEventsHandler struct {
	Bus    commands.Bus
	Inbox  Inbox
	Logger *slog.Logger
}

func (h UserEventsHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	return h.HandleEvent(ctx, msg.Value)
}

func (h UserEventsHandler) HandleEvent(ctx context.Context, payload []byte) error {
	var evt cloudEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		if h.Logger != nil {
			h.Logger.Warn("dropping malformed user event", "error", err)
		}
		return nil
	}
	if strings.TrimSuffix(evt.Type, ".v1") != domainuser.DeletedEventName {
		return nil
	}
	var data userDeletedData
	if err := json.Unmarshal(evt.Data, &data); err != nil || strings.TrimSpace(data.UserID) == "" {
		if h.Logger != nil {
			h.Logger.Warn("dropping user.deleted without user id", "event_id", evt.ID)
		}
		return nil
	}

	if h.Inbox != nil && evt.ID != "" {
		seen, err := h.Inbox.Seen(ctx, evt.ID)
		if err != nil {
			return err
		}
		if seen {
			return nil
		}
	}

	result, err := commands.Dispatch[bookinghandlers.CancelGuestBookingsCommand, dto.CascadeResult](ctx, h.Bus, bookinghandlers.CancelGuestBookingsCommand{
		GuestID: data.UserID,
		Caller:  policies.Caller{ID: "user-events-consumer", System: true},
	})
	if err != nil {
		if h.Inbox != nil && evt.ID != "" {
			_ = h.Inbox.Forget(ctx, evt.ID)
		}
		return fmt.Errorf("cascade cancel for %s: %w", data.UserID, err)
	}
	if h.Logger != nil {
		h.Logger.Info("cancelled bookings of deleted user", "event_id", evt.ID, "guest_id", data.UserID, "count", result.Cancelled)
	}
	return nil
}
