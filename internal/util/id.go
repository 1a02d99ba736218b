package util

import "github.com/google/uuid"

// NewID returns a fresh v4 UUID. Every row identity in the store (projects,
// content blocks, images, core numbers) uses these.
func NewID() string {
	return uuid.NewString()
}
