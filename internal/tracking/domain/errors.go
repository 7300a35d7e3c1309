package domain

import "errors"

var (
	// ErrPermissionDenied: the user declined location access. Not retried automatically.
	ErrPermissionDenied = errors.New("location permission denied")

	// ErrProviderUnavailable: the geolocation provider failed or produced nothing.
	ErrProviderUnavailable = errors.New("location provider unavailable")

	// ErrPositionTimeout is wrapped together with ErrProviderUnavailable.
	ErrPositionTimeout = errors.New("position fetch timed out")

	ErrPersistenceFailure = errors.New("location persistence failed")

	// ErrLocationNotFound: no cached and no fetchable position for a subject.
	ErrLocationNotFound = errors.New("live location not found")

	ErrInvalidCoordinates = errors.New("invalid coordinates")

	ErrInvalidRequest = errors.New("invalid request")

	ErrDeliveryNotFound = errors.New("delivery not found")

	// ErrNoToken: no authenticated identity; remote persistence is skipped.
	ErrNoToken = errors.New("no auth token")
)
