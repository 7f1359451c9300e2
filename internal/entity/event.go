package entity

import (
	"time"

	"github.com/joseph-ayodele/cryotrace/constants"
)

// WeightEvent is a pickup or dropoff weighing recorded against a manifest.
type WeightEvent struct {
	ID         int64               `json:"id"`
	Type       constants.EventType `json:"type"`
	ManifestID string              `json:"manifest_id"`
	WeightKg   float64             `json:"weight_kg"`
	MeasuredAt time.Time           `json:"measured_at"`
	// pickup: actual departure; dropoff: actual receive time.
	EventTime time.Time `json:"event_time"`
	UserID    *int64    `json:"user_id,omitempty"`
	ImagePath *string   `json:"image_path,omitempty"`
	Notes     *string   `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
