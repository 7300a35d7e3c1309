package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// north shifts p along the meridian by metres.
func north(p Position, metres float64) Position {
	p.Latitude += metres / 111_195 // metres per degree at R=6371
	return p
}

func newDelivery(driver Position) *ActiveDelivery {
	merchant := Position{Latitude: 6.5300, Longitude: 3.3850}
	consumer := Position{Latitude: 6.5412, Longitude: 3.3960}
	return NewActiveDelivery("d-1", "driver-1", "consumer-1", merchant, consumer, driver, time.Now())
}

func TestAdvanceWithinRadiusTransitions(t *testing.T) {
	d := newDelivery(Position{})
	tr := d.Advance(north(d.MerchantLocation, 30))

	require.True(t, tr.Changed)
	assert.Equal(t, PhasePickingUp, tr.From)
	assert.Equal(t, PhaseDelivering, tr.To)
	assert.Equal(t, PhaseDelivering, d.Phase)
	assert.Equal(t, d.ConsumerLocation, d.Target())
}

func TestAdvanceBeyondRadiusStays(t *testing.T) {
	d := newDelivery(Position{})
	tr := d.Advance(north(d.MerchantLocation, 60))

	assert.False(t, tr.Changed)
	assert.Equal(t, PhasePickingUp, d.Phase)
	assert.InDelta(t, 0.06, tr.DistanceKm, 0.001)
}

func TestAdvanceFullLifecycle(t *testing.T) {
	d := newDelivery(Position{})
	d.Advance(d.MerchantLocation)
	tr := d.Advance(d.ConsumerLocation)
	require.True(t, tr.Changed)
	assert.Equal(t, PhaseArrived, d.Phase)

	tr = d.Advance(d.ConsumerLocation)
	assert.False(t, tr.Changed, "arrived is terminal")
	assert.Equal(t, PhaseArrived, tr.To)
}
