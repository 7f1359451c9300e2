package analytics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joseph-ayodele/cryotrace/internal/entity"
)

func TestEvaporationVolumeLiters(t *testing.T) {
	tests := []struct {
		name     string
		shipped  float64
		received float64
		want     float64
	}{
		{name: "one kilogram lost", shipped: 10, received: 9, want: 1000.0 / 808.0},
		{name: "full density", shipped: 808, received: 0, want: 1000},
		{name: "no loss", shipped: 9, received: 9, want: 0},
		{name: "weight gain", shipped: 9, received: 10, want: 0},
		{name: "nan", shipped: math.NaN(), received: 1, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, EvaporationVolumeLiters(tt.shipped, tt.received), 1e-9)
		})
	}
}

func TestShipmentVolumeLiters(t *testing.T) {
	pw, dw := 20.0, 11.92
	got, ok := ShipmentVolumeLiters(entity.Shipment{PickupWeightKg: &pw, DropoffWeightKg: &dw})
	assert.True(t, ok)
	assert.InDelta(t, 10.0, got, 1e-9)

	_, ok = ShipmentVolumeLiters(entity.Shipment{PickupWeightKg: &pw})
	assert.False(t, ok)
}
