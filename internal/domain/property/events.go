package property

import "time"

type Created struct {
	PropertyID ID        `json:"property_id"`
	OwnerID    string    `json:"owner_id"`
	At         time.Time `json:"at"`
}

func (e Created) EventName() string     { return "property.created" }
func (e Created) AggregateID() string   { return string(e.PropertyID) }
func (e Created) OccurredAt() time.Time { return e.At }

type Activated struct {
	PropertyID ID        `json:"property_id"`
	At         time.Time `json:"at"`
}

func (e Activated) EventName() string     { return "property.activated" }
func (e Activated) AggregateID() string   { return string(e.PropertyID) }
func (e Activated) OccurredAt() time.Time { return e.At }

type Deactivated struct {
	PropertyID ID        `json:"property_id"`
	At         time.Time `json:"at"`
}

func (e Deactivated) EventName() string     { return "property.deactivated" }
func (e Deactivated) AggregateID() string   { return string(e.PropertyID) }
func (e Deactivated) OccurredAt() time.Time { return e.At }

type DatesBlocked struct {
	PropertyID ID          `json:"property_id"`
	Days       []time.Time `json:"days"`
	At         time.Time   `json:"at"`
}

func (e DatesBlocked) EventName() string     { return "property.dates_blocked" }
func (e DatesBlocked) AggregateID() string   { return string(e.PropertyID) }
func (e DatesBlocked) OccurredAt() time.Time { return e.At }

type DatesUnblocked struct {
	PropertyID ID          `json:"property_id"`
	Days       []time.Time `json:"days"`
	At         time.Time   `json:"at"`
}

func (e DatesUnblocked) EventName() string     { return "property.dates_unblocked" }
func (e DatesUnblocked) AggregateID() string   { return string(e.PropertyID) }
func (e DatesUnblocked) OccurredAt() time.Time { return e.At }

type PhotoAdded struct {
	PropertyID ID        `json:"property_id"`
	URL        string    `json:"url"`
	At         time.Time `json:"at"`
}

func (e PhotoAdded) EventName() string     { return "property.photo_added" }
func (e PhotoAdded) AggregateID() string   { return string(e.PropertyID) }
func (e PhotoAdded) OccurredAt() time.Time { return e.At }
