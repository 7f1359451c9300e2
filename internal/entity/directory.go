package entity

import "time"

// Shipper is a customer whose containers are shipped.
type Shipper struct {
	ShipperID string    `json:"shipper_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// User is a driver, dispatcher or receiving clerk.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Location is a pickup or delivery site.
type Location struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	CompanyName    string `json:"company_name"`
	CompanyAddress string `json:"company_address"`
	City           string `json:"city"`
	State          string `json:"state"`
}
