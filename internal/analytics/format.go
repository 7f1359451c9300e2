package analytics

import (
	"fmt"
	"slices"
	"strings"

	"github.com/joseph-ayodele/cryotrace/internal/entity"
)

const unknown = "unknown"

// FormatForPrompt renders shipments ordered by pickup time, one block each,
// separated by a single blank line. Equal pickup times keep their input order.
func FormatForPrompt(shipments []entity.Shipment) string {
	if len(shipments) == 0 {
		return ""
	}
	sorted := slices.Clone(shipments)
	slices.SortStableFunc(sorted, func(a, b entity.Shipment) int {
		return a.PickupTime.Compare(b.PickupTime)
	})

	blocks := make([]string, 0, len(sorted))
	for _, s := range sorted {
		blocks = append(blocks, formatBlock(s))
	}
	return strings.Join(blocks, "\n\n")
}

func formatBlock(s entity.Shipment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Shipment ID: %s\n", s.ShipmentID)
	fmt.Fprintf(&b, "- Shipper ID: %s\n", s.ShipperID)

	b.WriteString("- Pickup: " + FormatTimestamp(s.PickupTime))
	if s.PickupContact != "" {
		b.WriteString(" by " + s.PickupContact)
	}
	b.WriteString("\n")

	delivery := unknown
	if s.DeliveryTime != nil {
		delivery = FormatTimestamp(*s.DeliveryTime)
	}
	b.WriteString("- Delivery: " + delivery)
	if s.Receiver != "" {
		b.WriteString(" received by " + s.Receiver)
	}
	b.WriteString("\n")

	if s.TransitTimeHours != nil {
		fmt.Fprintf(&b, "- Transit Time: %s hours\n", *s.TransitTimeHours)
	} else {
		b.WriteString("- Transit Time: " + unknown + "\n")
	}

	if s.EvaporationRateKgPerHour != nil {
		fmt.Fprintf(&b, "- Evaporation Rate: %.4f kg/hour", *s.EvaporationRateKgPerHour)
	} else {
		b.WriteString("- Evaporation Rate: " + unknown)
	}
	return b.String()
}
