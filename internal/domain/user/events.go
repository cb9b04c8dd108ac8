package user

import "time"

// Deleted is published when an account is removed; the booking side reacts by
// cancelling the account's open bookings.
type Deleted struct {
	UserID ID        `json:"user_id"`
	At     time.Time `json:"at"`
}

const DeletedEventName = "user.deleted"

func (e Deleted) EventName() string     { return DeletedEventName }
func (e Deleted) AggregateID() string   { return string(e.UserID) }
func (e Deleted) OccurredAt() time.Time { return e.At }
