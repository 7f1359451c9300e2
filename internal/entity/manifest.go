package entity

import "time"

// Manifest represents a shipping manifest for data transfer between layers.
type Manifest struct {
	ManifestID             string     `json:"manifest_id"`
	ShipperID              string     `json:"shipper_id"`
	OriginLocationID       *int64     `json:"origin_location_id,omitempty"`
	OriginLocation         string     `json:"origin_location,omitempty"`
	OriginContactName      string     `json:"origin_contact_name"`
	DestinationLocationID  *int64     `json:"destination_location_id,omitempty"`
	DestinationLocation    string     `json:"destination_location,omitempty"`
	DestinationContactName string     `json:"destination_contact_name"`
	ScheduledShipTime      *time.Time `json:"scheduled_ship_time,omitempty"`
	ExpectedReceiveTime    *time.Time `json:"expected_receive_time,omitempty"`
	ProjectedWeightKg      *float64   `json:"projected_weight_kg,omitempty"`
	TemperatureC           *float64   `json:"temperature_c,omitempty"`
	Notes                  *string    `json:"notes,omitempty"`
	CreatedByUserID        *int64     `json:"created_by_user_id,omitempty"`
	Status                 string     `json:"status,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
}
