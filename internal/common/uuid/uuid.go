// Package uuid issues the bridge's identifiers. Session and request ids are
// UUIDv7, so they sort by creation time.
package uuid

import (
	"github.com/google/uuid"
)

type UUID = uuid.UUID

// NewRandom returns a new UUIDv7.
func NewRandom() (UUID, error) {
	return uuid.NewV7()
}

// IsValid reports whether s is the canonical form of a UUIDv7.
func IsValid(s string) bool {
	if len(s) != 36 {
		return false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	return id.Version() == uuid.Version(7)
}
