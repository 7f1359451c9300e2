package analytics

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RawShipmentRecord is one shipment as returned by a retrieval path, before
// normalization. Timestamps are kept as the raw strings the source produced
// so that deduplication compares exactly what was retrieved.
type RawShipmentRecord struct {
	ManifestID         string   `json:"manifest_id"`
	ShipperID          string   `json:"shipper_id"`
	OriginContact      string   `json:"origin_contact_name,omitempty"`
	DestinationContact string   `json:"destination_contact_name,omitempty"`
	Origin             string   `json:"origin,omitempty"`
	Destination        string   `json:"destination,omitempty"`
	PickupTime         string   `json:"pickup_time"`
	DropoffTime        string   `json:"dropoff_time,omitempty"`
	PickupWeightKg     *float64 `json:"pickup_weight,omitempty"`
	DropoffWeightKg    *float64 `json:"dropoff_weight,omitempty"`
	SummaryText        string   `json:"summary_text,omitempty"`
}

// Metadata renders the record as the loose mapping stored alongside vector
// documents. RecordFromMap reads it back.
func (r RawShipmentRecord) Metadata() map[string]any {
	m := map[string]any{
		"manifest_id":              r.ManifestID,
		"shipper_id":               r.ShipperID,
		"origin_contact_name":      r.OriginContact,
		"destination_contact_name": r.DestinationContact,
		"origin":                   r.Origin,
		"destination":              r.Destination,
		"pickup_time":              r.PickupTime,
		"dropoff_time":             r.DropoffTime,
	}
	if r.PickupWeightKg != nil {
		m["pickup_weight"] = *r.PickupWeightKg
	}
	if r.DropoffWeightKg != nil {
		m["dropoff_weight"] = *r.DropoffWeightKg
	}
	return m
}

// RecordFromMap converts a loosely typed mapping into a RawShipmentRecord.
// Accepted aliases: shipment_id, delivery_time, pickup_contact, receiver,
// pickup_weight_kg and dropoff_weight_kg. Unknown keys are ignored.
func RecordFromMap(m map[string]any) RawShipmentRecord {
	return RawShipmentRecord{
		ManifestID:         firstString(m, "manifest_id", "shipment_id"),
		ShipperID:          firstString(m, "shipper_id"),
		OriginContact:      firstString(m, "origin_contact_name", "pickup_contact"),
		DestinationContact: firstString(m, "destination_contact_name", "receiver"),
		Origin:             firstString(m, "origin"),
		Destination:        firstString(m, "destination"),
		PickupTime:         firstString(m, "pickup_time"),
		DropoffTime:        firstString(m, "dropoff_time", "delivery_time"),
		PickupWeightKg:     firstNumber(m, "pickup_weight", "pickup_weight_kg"),
		DropoffWeightKg:    firstNumber(m, "dropoff_weight", "dropoff_weight_kg"),
		SummaryText:        firstString(m, "summary_text"),
	}
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case time.Time:
			s = FormatTimestamp(t)
		case *time.Time:
			if t == nil {
				continue
			}
			s = FormatTimestamp(*t)
		case fmt.Stringer:
			s = t.String()
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		case int, int32, int64:
			s = fmt.Sprintf("%d", t)
		default:
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

func firstNumber(m map[string]any, keys ...string) *float64 {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		var f float64
		switch t := v.(type) {
		case float64:
			f = t
		case float32:
			f = float64(t)
		case int:
			f = float64(t)
		case int32:
			f = float64(t)
		case int64:
			f = float64(t)
		case *float64:
			if t == nil {
				continue
			}
			f = *t
		case json.Number:
			n, err := t.Float64()
			if err != nil {
				continue
			}
			f = n
		case string:
			n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
			if err != nil {
				continue
			}
			f = n
		default:
			continue
		}
		return &f
	}
	return nil
}
