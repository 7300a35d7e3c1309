package utils

import "github.com/google/uuid"

// NewUUID returns a random v4 id.
func NewUUID() string {
	return uuid.New().String()
}
