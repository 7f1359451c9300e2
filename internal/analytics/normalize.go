package analytics

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/joseph-ayodele/cryotrace/internal/entity"
)

// Normalizer turns raw records into Shipments with derived transit and
// evaporation figures. Records missing required fields are dropped and logged.
type Normalizer struct {
	logger *slog.Logger
}

func NewNormalizer(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger}
}

// Normalize returns false when the record has no manifest id, no shipper id,
// or a missing or unparseable pickup time.
func (n *Normalizer) Normalize(raw RawShipmentRecord) (entity.Shipment, bool) {
	manifestID := strings.TrimSpace(raw.ManifestID)
	shipperID := strings.TrimSpace(raw.ShipperID)
	switch {
	case manifestID == "":
		n.drop(raw, "missing manifest_id")
		return entity.Shipment{}, false
	case shipperID == "":
		n.drop(raw, "missing shipper_id")
		return entity.Shipment{}, false
	}

	pickup, err := ParseTimestamp(raw.PickupTime)
	if err != nil {
		n.drop(raw, "pickup_time: "+err.Error())
		return entity.Shipment{}, false
	}

	s := entity.Shipment{
		ShipmentID:      manifestID,
		ShipperID:       shipperID,
		PickupTime:      pickup,
		PickupContact:   raw.OriginContact,
		Receiver:        raw.DestinationContact,
		Origin:          raw.Origin,
		Destination:     raw.Destination,
		PickupWeightKg:  raw.PickupWeightKg,
		DropoffWeightKg: raw.DropoffWeightKg,
	}

	if strings.TrimSpace(raw.DropoffTime) == "" {
		return s, true
	}
	dropoff, err := ParseTimestamp(raw.DropoffTime)
	if err != nil {
		n.logger.Debug("analytics.normalize.bad_dropoff",
			"manifest_id", manifestID, "dropoff_time", raw.DropoffTime, "error", err)
		return s, true
	}
	s.DeliveryTime = &dropoff

	secs := TransitSeconds(pickup, dropoff)
	display := FormatTransit(secs)
	s.TransitSeconds = &secs
	s.TransitTimeHours = &display

	if rate, ok := EvaporationRate(raw.PickupWeightKg, raw.DropoffWeightKg, secs); ok {
		s.EvaporationRateKgPerHour = &rate
	}
	return s, true
}

func (n *Normalizer) drop(raw RawShipmentRecord, reason string) {
	n.logger.Warn("analytics.normalize.dropped",
		"manifest_id", raw.ManifestID, "shipper_id", raw.ShipperID, "reason", reason)
}

// TransitSeconds is the whole number of seconds from pickup to dropoff over
// the full elapsed span. Sub-second remainders are truncated toward zero.
func TransitSeconds(pickup, dropoff time.Time) int64 {
	return int64(dropoff.Sub(pickup) / time.Second)
}

// FormatTransit renders seconds as H:MM. Hours are unbounded; negative spans
// carry a leading minus.
func FormatTransit(secs int64) string {
	sign := ""
	if secs < 0 {
		sign = "-"
		secs = -secs
	}
	return fmt.Sprintf("%s%d:%02d", sign, secs/3600, (secs%3600)/60)
}

// EvaporationRate is (pickup - dropoff) kg per hour of transit, rounded to four
// decimals. It is undefined without both weights or for non-positive transit.
// A weight gain yields a negative rate.
func EvaporationRate(pickupKg, dropoffKg *float64, transitSecs int64) (float64, bool) {
	if pickupKg == nil || dropoffKg == nil || transitSecs <= 0 {
		return 0, false
	}
	hours := float64(transitSecs) / 3600
	rate := round4((*pickupKg - *dropoffKg) / hours)
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0, false
	}
	return rate, true
}
