package messaging

import (
	"time"

	"github.com/joseph-ayodele/cryotrace/constants"
	"github.com/joseph-ayodele/cryotrace/internal/entity"
)

const (
	DefaultExchange         = "cryotrace.events"
	EventRecordedRoutingKey = "shipment.event.recorded.v1"
	eventRecordedName       = "ShipmentEventRecorded"
	eventRecordedVersion    = 1
)

// EventRecordedPayload announces a stored pickup or dropoff weighing.
type EventRecordedPayload struct {
	EventID    int64               `json:"eventId"`
	Type       constants.EventType `json:"type"`
	ManifestID string              `json:"manifestId"`
	WeightKg   float64             `json:"weightKg"`
	EventTime  time.Time           `json:"eventTime"`
	ImagePath  string              `json:"imagePath,omitempty"`
}

type EventRecorded = EventEnvelope[EventRecordedPayload]

// NewEventRecorded builds the envelope for ev, partitioned by manifest.
func NewEventRecorded(ev *entity.WeightEvent, correlationID string) EventRecorded {
	p := EventRecordedPayload{
		EventID:    ev.ID,
		Type:       ev.Type,
		ManifestID: ev.ManifestID,
		WeightKg:   ev.WeightKg,
		EventTime:  ev.EventTime.UTC(),
	}
	if ev.ImagePath != nil {
		p.ImagePath = *ev.ImagePath
	}
	return newEnvelope(eventRecordedName, eventRecordedVersion, ev.ManifestID, correlationID, p)
}
