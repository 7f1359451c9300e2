package analytics

import (
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/joseph-ayodele/cryotrace/internal/common"
	"github.com/joseph-ayodele/cryotrace/internal/entity"
)

// ValidateShipperID rejects a blank shipper id.
func ValidateShipperID(shipperID string) error {
	if strings.TrimSpace(shipperID) == "" {
		return common.NewAppError("INVALID_INPUT", "shipper id is required", common.ErrInvalidInput)
	}
	return nil
}

// Filter keeps the shipments of shipperID whose pickup falls strictly after or
// before cutoff. DirectionAll or a nil cutoff applies the shipper filter only.
// The input order is preserved.
func Filter(shipments []entity.Shipment, shipperID string, cutoff *time.Time, dir Direction) ([]entity.Shipment, error) {
	shipperID = strings.TrimSpace(shipperID)
	if err := ValidateShipperID(shipperID); err != nil {
		return nil, err
	}
	return lo.Filter(shipments, func(s entity.Shipment, _ int) bool {
		if s.ShipperID != shipperID {
			return false
		}
		if cutoff == nil {
			return true
		}
		switch dir {
		case DirectionAfter:
			return s.PickupTime.After(*cutoff)
		case DirectionBefore:
			return s.PickupTime.Before(*cutoff)
		default:
			return true
		}
	}), nil
}
