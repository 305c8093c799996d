package domain

import "time"

type GenerationStatus string

const (
	GenerationStatusPending   GenerationStatus = "pending"
	GenerationStatusCompleted GenerationStatus = "completed"
)

// GenerationRequest records the intent to create Quantity units for an
// event. It is the idempotency checkpoint for chunked creation: a retry
// counts the units already linked to the request before inserting more.
type GenerationRequest struct {
	ID        string
	EventID   string
	Quantity  int
	Status    GenerationStatus
	CreatedAt time.Time
}
