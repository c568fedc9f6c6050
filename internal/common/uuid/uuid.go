// Package uuid provides time-ordered identifiers (UUIDv7) for request tracing.
// It wraps github.com/google/uuid.
package uuid

import (
	"github.com/google/uuid"
)

// NewRequestID returns a UUIDv7 in string form, falling back to a random v4 id
// if the clock-based generator fails.
func NewRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
