package domain

import "time"

type Phase string

const (
	PhasePickingUp  Phase = "picking_up"
	PhaseDelivering Phase = "delivering"
	PhaseArrived    Phase = "arrived"
)

func (p Phase) Next() Phase {
	switch p {
	case PhasePickingUp:
		return PhaseDelivering
	default:
		return PhaseArrived
	}
}

func (p Phase) Terminal() bool { return p == PhaseArrived }

// ActiveDelivery is an accepted delivery whose driver is being tracked.
// It is owned by one tracker and is not safe for concurrent use.
type ActiveDelivery struct {
	ID               string    `json:"id"`
	DriverID         string    `json:"driver_id"`
	ConsumerID       string    `json:"consumer_id"`
	MerchantLocation Position  `json:"merchant_location"`
	ConsumerLocation Position  `json:"consumer_location"`
	Phase            Phase     `json:"phase"`
	DriverLocation   Position  `json:"driver_location"`
	AcceptedAt       time.Time `json:"accepted_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Transition is the outcome of one Advance call.
type Transition struct {
	DeliveryID string  `json:"delivery_id"`
	From       Phase   `json:"from"`
	To         Phase   `json:"to"`
	DistanceKm float64 `json:"distance_km"`
	Changed    bool    `json:"changed"`
}

func NewActiveDelivery(id, driverID, consumerID string, merchant, consumer, driver Position, now time.Time) *ActiveDelivery {
	return &ActiveDelivery{
		ID:               id,
		DriverID:         driverID,
		ConsumerID:       consumerID,
		MerchantLocation: merchant,
		ConsumerLocation: consumer,
		Phase:            PhasePickingUp,
		DriverLocation:   driver,
		AcceptedAt:       now,
		UpdatedAt:        now,
	}
}

// Target is the merchant while picking up, the consumer afterwards.
func (d *ActiveDelivery) Target() Position {
	if d.Phase == PhasePickingUp {
		return d.MerchantLocation
	}
	return d.ConsumerLocation
}

// Advance records a driver position and moves to the next phase when it is
// within ArrivalRadiusKm of the current target. Arrived is terminal.
func (d *ActiveDelivery) Advance(pos Position) Transition {
	d.DriverLocation = pos
	d.UpdatedAt = time.Now().UTC()

	t := Transition{DeliveryID: d.ID, From: d.Phase, To: d.Phase}
	if d.Phase.Terminal() {
		return t
	}

	t.DistanceKm = pos.DistanceKm(d.Target())
	if t.DistanceKm < ArrivalRadiusKm {
		d.Phase = d.Phase.Next()
		t.To = d.Phase
		t.Changed = true
	}
	return t
}
