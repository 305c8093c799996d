package app

import (
	"context"
	"time"

	"github.com/openpass/inventory/internal/domain"
)

// UnitLedger is the persistence capability the allocator, keeper and
// generator need from a storage engine. One adapter exists per engine;
// status-transition and reservation-window rules stay out of the adapters.
type UnitLedger interface {
	// WithTx runs fn inside one atomic transaction: the write set either
	// fully commits or fully aborts on infrastructure error. A guard miss
	// inside a committed transaction is a no-op, not an abort.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	// FindReservable returns up to limit units of the event that are free
	// or whose reservation has lapsed at now.
	FindReservable(ctx context.Context, eventID string, limit int, now time.Time) ([]domain.InventoryUnit, error)
	// FindLapsed returns up to limit reserved units across all events whose
	// reservation expired before now.
	FindLapsed(ctx context.Context, limit int, now time.Time) ([]domain.InventoryUnit, error)
	// ApplyGuarded applies each update only where the stored concurrency
	// token still equals update.Token, rotating it to update.NewToken. It
	// reports how many updates matched; misses are silently skipped.
	ApplyGuarded(ctx context.Context, updates []domain.UnitUpdate) (int, error)
	InsertUnits(ctx context.Context, units []domain.InventoryUnit) error
	CountByGeneration(ctx context.Context, generationRequestID string) (int, error)
}

// GenerationLedger stores generation request receipts.
type GenerationLedger interface {
	CreateRequest(ctx context.Context, req domain.GenerationRequest) error
	GetRequest(ctx context.Context, id string) (domain.GenerationRequest, error)
	MarkCompleted(ctx context.Context, id string) error
}

// OrderLedger is the read-only view of the external order store.
type OrderLedger interface {
	// FindUnitIDsWithOrders returns the subset of unitIDs referenced by any
	// persisted order line item.
	FindUnitIDsWithOrders(ctx context.Context, unitIDs []string) (map[string]struct{}, error)
}
