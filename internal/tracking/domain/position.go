package domain

import (
	"fmt"
	"time"
)

// Position is one timestamped reading. Timestamp is unix milliseconds.
type Position struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"` // metres
	Timestamp int64    `json:"timestamp"`
	IsStale   bool     `json:"is_stale,omitempty"`
}

func NewPosition(lat, lon float64, at time.Time) Position {
	return Position{Latitude: lat, Longitude: lon, Timestamp: at.UnixMilli()}
}

func (p Position) WithAccuracy(metres float64) Position {
	p.Accuracy = &metres
	return p
}

func (p Position) Time() time.Time {
	return time.UnixMilli(p.Timestamp).UTC()
}

func (p Position) DistanceKm(o Position) float64 {
	return HaversineDistanceKm(p.Latitude, p.Longitude, o.Latitude, o.Longitude)
}

func (p Position) Validate() error {
	return ValidateCoordinates(p.Latitude, p.Longitude)
}

func (p Position) String() string {
	return fmt.Sprintf("%.6f, %.6f", p.Latitude, p.Longitude)
}

// LiveLocation is the latest position of one subject, as kept by the real-time store.
type LiveLocation struct {
	UserID   string   `json:"user_id"`
	Position Position `json:"position"`
}

// PositionOptions mirror what a geolocation SDK accepts for a one-shot fetch.
type PositionOptions struct {
	HighAccuracy bool
	Timeout      time.Duration
	// MaximumAge is how old a cached fix may be and still be returned.
	MaximumAge time.Duration
}

type PermissionState string

const (
	PermissionGranted PermissionState = "granted"
	PermissionDenied  PermissionState = "denied"
	PermissionPrompt  PermissionState = "prompt"
)

func ParsePermissionState(s string) (PermissionState, error) {
	switch PermissionState(s) {
	case PermissionGranted, PermissionDenied, PermissionPrompt:
		return PermissionState(s), nil
	}
	return "", fmt.Errorf("unknown permission state %q", s)
}

type Platform string

const (
	PlatformWeb    Platform = "web"
	PlatformNative Platform = "native"
)
