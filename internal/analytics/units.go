package analytics

import (
	"math"

	"github.com/joseph-ayodele/cryotrace/constants"
	"github.com/joseph-ayodele/cryotrace/internal/entity"
)

// EvaporationVolumeLiters converts the weight lost between shipping and receipt
// into liters of liquid nitrogen. A gain, no loss, or NaN input yields 0.
func EvaporationVolumeLiters(shippedKg, receivedKg float64) float64 {
	loss := shippedKg - receivedKg
	if math.IsNaN(loss) || loss <= 0 {
		return 0
	}
	return loss / constants.LN2DensityKgPerM3 * constants.LitersPerM3
}

// ShipmentVolumeLiters is EvaporationVolumeLiters for a shipment with both weights recorded.
func ShipmentVolumeLiters(s entity.Shipment) (float64, bool) {
	if s.PickupWeightKg == nil || s.DropoffWeightKg == nil {
		return 0, false
	}
	return EvaporationVolumeLiters(*s.PickupWeightKg, *s.DropoffWeightKg), true
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
