package transport

import "brillprime/internal/tracking/domain"

// LiveLocationResponse is returned by GET/PUT /location/live.
type LiveLocationResponse struct {
	UserID    string   `json:"user_id"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Timestamp int64    `json:"timestamp"`
	IsStale   bool     `json:"is_stale"`
	Address   string   `json:"address,omitempty"`
}

func newLiveLocationResponse(userID string, pos domain.Position) LiveLocationResponse {
	return LiveLocationResponse{
		UserID:    userID,
		Latitude:  pos.Latitude,
		Longitude: pos.Longitude,
		Accuracy:  pos.Accuracy,
		Timestamp: pos.Timestamp,
		IsStale:   pos.IsStale,
	}
}

type HistoryResponse struct {
	UserID    string            `json:"user_id"`
	Count     int               `json:"count"`
	Positions []domain.Position `json:"positions"`
}

type OptimizeRouteRequest struct {
	Stops []domain.Stop `json:"stops"`
}

type DeliveryListResponse struct {
	Count      int                     `json:"count"`
	Deliveries []domain.ActiveDelivery `json:"deliveries"`
}

// DevicePermissionRequest is sent by the browser page that feeds the tracker.
type DevicePermissionRequest struct {
	State string `json:"state"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the error envelope of every endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
