package analytics

import "github.com/samber/lo"

type dedupeKey struct {
	manifestID string
	pickupTime string
}

// Dedupe drops records that repeat an earlier (manifest id, pickup time) pair.
// Keys compare the raw strings exactly; first occurrences keep their order.
func Dedupe(records []RawShipmentRecord) []RawShipmentRecord {
	if len(records) == 0 {
		return []RawShipmentRecord{}
	}
	return lo.UniqBy(records, func(r RawShipmentRecord) dedupeKey {
		return dedupeKey{manifestID: r.ManifestID, pickupTime: r.PickupTime}
	})
}
