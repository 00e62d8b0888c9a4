package core

import (
	"time"
)

// Instead of implementing full value objects, alias types and helper methods keep the events lean ...

// RequestIDString represents a VM request identifier
type RequestIDString = string

// TenantIDString represents a tenant identifier
type TenantIDString = string

// UserIDString represents a user identifier
type UserIDString = string

// ProjectIDString represents a project identifier
type ProjectIDString = string

// SizeString represents a VM size category (S, M, L or XL)
type SizeString = string

// EventTypeString represents an event type identifier
type EventTypeString = string

// OccurredAtTS represents when an event occurred
type OccurredAtTS = time.Time

// ToOccurredAt converts a time to OccurredAtTS with UTC normalization and microsecond precision,
// so timestamps survive the Postgres round-trip unchanged.
func ToOccurredAt(t time.Time) OccurredAtTS {
	return t.UTC().Truncate(time.Microsecond)
}
