package domain

import "time"

// Order is the external order ledger's record of a completed purchase.
// This core only ever reads it: a unit id appearing in any persisted line
// item is the definitional proof that the unit is sold.
type Order struct {
	ID        string
	Items     []OrderItem
	CreatedAt time.Time
}

type OrderItem struct {
	UnitID string
}
