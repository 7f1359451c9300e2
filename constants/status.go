package constants

// EventType is the kind of weight event recorded against a manifest.
type EventType string

// Stable values (published on the wire and stored in the vector metadata).
const (
	EventPickup  EventType = "PICKUP"
	EventDropoff EventType = "DROPOFF"
)

// ManifestStatus is derived from which events exist for a manifest.
type ManifestStatus string

const (
	StatusScheduled ManifestStatus = "SCHEDULED"  // no pickup yet
	StatusInTransit ManifestStatus = "IN_TRANSIT" // picked up, not delivered
	StatusDelivered ManifestStatus = "DELIVERED"
)

// StatusFor derives the manifest status from event presence.
func StatusFor(hasPickup, hasDropoff bool) ManifestStatus {
	switch {
	case hasDropoff:
		return StatusDelivered
	case hasPickup:
		return StatusInTransit
	default:
		return StatusScheduled
	}
}
