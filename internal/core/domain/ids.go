package domain

import "github.com/google/uuid"

// IDGenerator produces unique string identifiers.
type IDGenerator func() string

// UUIDv7 returns an IDGenerator producing time-sortable RFC 9562 UUIDs.
func UUIDv7() IDGenerator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}
