package entity

import "time"

// Shipment is the normalized view of one manifest's pickup and dropoff.
type Shipment struct {
	ShipmentID               string     `json:"shipment_id"`
	ShipperID                string     `json:"shipper_id"`
	PickupTime               time.Time  `json:"pickup_time"`
	DeliveryTime             *time.Time `json:"delivery_time,omitempty"`
	PickupContact            string     `json:"pickup_contact"`
	Receiver                 string     `json:"receiver"`
	Origin                   string     `json:"origin,omitempty"`
	Destination              string     `json:"destination,omitempty"`
	PickupWeightKg           *float64   `json:"pickup_weight_kg,omitempty"`
	DropoffWeightKg          *float64   `json:"dropoff_weight_kg,omitempty"`
	TransitTimeHours         *string    `json:"transit_time_hours,omitempty"`
	TransitSeconds           *int64     `json:"transit_seconds,omitempty"`
	EvaporationRateKgPerHour *float64   `json:"evaporation_rate_kg_per_hour,omitempty"`
}
