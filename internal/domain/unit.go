package domain

import "time"

type UnitStatus string

const (
	UnitStatusAvailable UnitStatus = "available"
	UnitStatusReserved  UnitStatus = "reserved"
	UnitStatusSold      UnitStatus = "sold"
)

// InventoryUnit is one purchasable item tied to an event. Status only moves
// available -> reserved -> {sold, available}; sold is terminal.
type InventoryUnit struct {
	ID      string
	EventID string
	Status  UnitStatus
	// ReservedUntil is meaningful only while the unit is reserved. It is
	// advisory: the ledger stores it, callers and the keeper honour it.
	ReservedUntil time.Time
	// ConcurrencyToken is an opaque optimistic-lock value. A write is
	// accepted only when the token it carries matches the stored one, and
	// every accepted write rotates it.
	ConcurrencyToken    string
	GenerationRequestID string
	CreatedAt           time.Time
}

// UnitUpdate is one guarded mutation of a unit. Token is the value read
// before the write; NewToken replaces it when the guard matches.
type UnitUpdate struct {
	ID            string
	Token         string
	NewToken      string
	Status        UnitStatus
	ReservedUntil time.Time
}

// Reservation is the receipt handed back to the basket/checkout caller.
type Reservation struct {
	UnitID        string
	ReservedUntil time.Time
}
