package in

import (
	"context"

	"brillprime/internal/tracking/domain"
)

// AcceptDeliveryInput is the body of POST /deliveries.
// DriverLocation is optional; the registry starts the simulated driver at a default offset.
type AcceptDeliveryInput struct {
	DriverID         string           `json:"driver_id"`
	ConsumerID       string           `json:"consumer_id"`
	MerchantLocation domain.Position  `json:"merchant_location"`
	ConsumerLocation domain.Position  `json:"consumer_location"`
	DriverLocation   *domain.Position `json:"driver_location,omitempty"`
	// Source is "simulated" (default) or "live".
	Source string `json:"source,omitempty"`
}

type DeliveryUseCase interface {
	Accept(ctx context.Context, input AcceptDeliveryInput) (domain.ActiveDelivery, error)
	Get(id string) (domain.ActiveDelivery, error)
	List() []domain.ActiveDelivery
}

type RouteOptimizerUseCase interface {
	Optimize(ctx context.Context, stops []domain.Stop) (domain.RouteResult, error)
}
