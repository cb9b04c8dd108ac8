package dto

import domainavailability "staybook/internal/domain/availability"

type Availability struct {
	PropertyID string `json:"property_id"`
	CheckIn    string `json:"check_in"`
	CheckOut   string `json:"check_out"`
	Available  bool   `json:"available"`
	Reason     string `json:"reason,omitempty"`
	Message    string `json:"message"`
}

func MapVerdict(propertyID, checkIn, checkOut string, v domainavailability.Verdict) Availability {
	return Availability{
		PropertyID: propertyID,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		Available:  v.Available,
		Reason:     string(v.Reason),
		Message:    v.Message,
	}
}
