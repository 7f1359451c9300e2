package vector

import (
	"strings"
	"time"
)

// Where restricts a search to one shipper and, optionally, to pickups
// strictly after or before a cutoff. Zero values match everything.
type Where struct {
	ShipperID string
	After     *time.Time
	Before    *time.Time
}

// clause renders w as a SQL predicate over shipment_vectors.
func (w Where) clause() (string, []any) {
	var (
		parts []string
		args  []any
	)
	if w.ShipperID != "" {
		parts = append(parts, "shipper_id = ?")
		args = append(args, w.ShipperID)
	}
	if w.After != nil {
		parts = append(parts, "pickup_ns > ?")
		args = append(args, w.After.UnixNano())
	}
	if w.Before != nil {
		parts = append(parts, "pickup_ns < ?")
		args = append(args, w.Before.UnixNano())
	}
	if len(parts) == 0 {
		return "1 = 1", nil
	}
	return strings.Join(parts, " AND "), args
}

// Matches reports whether doc satisfies w without consulting the database.
func (w Where) Matches(doc Document) bool {
	if w.ShipperID != "" && doc.ShipperID != w.ShipperID {
		return false
	}
	if w.After != nil && (doc.PickupTime.IsZero() || !doc.PickupTime.After(*w.After)) {
		return false
	}
	if w.Before != nil && (doc.PickupTime.IsZero() || !doc.PickupTime.Before(*w.Before)) {
		return false
	}
	return true
}
