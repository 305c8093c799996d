package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openpass/inventory/internal/clock"
	"github.com/openpass/inventory/internal/domain"
)

const defaultReservationWindow = 90 * time.Minute

// maxReservationBatch keeps reservation transactions short.
const maxReservationBatch = 10

// Allocator reserves available units for a basket. It does not verify the
// event's existence; that precondition belongs to the event collaborator.
type Allocator struct {
	ledger UnitLedger
	clock  clock.Clock
	logger *zap.Logger
	window time.Duration
}

func NewAllocator(ledger UnitLedger, clk clock.Clock, logger *zap.Logger, opts ...AllocatorOption) *Allocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Allocator{
		ledger: ledger,
		clock:  clk,
		logger: logger,
		window: defaultReservationWindow,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type AllocatorOption func(*Allocator)

// WithReservationWindow overrides the default time-to-live of a reservation.
func WithReservationWindow(d time.Duration) AllocatorOption {
	return func(a *Allocator) {
		if d > 0 {
			a.window = d
		}
	}
}

// Reserve marks quantity units of the event as reserved until now+window and
// returns one receipt per unit. It returns a full batch or nothing: when the
// candidate query falls short the caller gets InsufficientInventoryError,
// and when a concurrent allocator wins some of the guarded writes the caller
// gets ErrReservationContention rather than receipts for units that were not
// durably reserved. There is no built-in retry; callers re-invoke.
func (a *Allocator) Reserve(ctx context.Context, eventID string, quantity int) ([]domain.Reservation, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	if quantity > maxReservationBatch {
		return nil, domain.ErrReservationBatchTooBig
	}
	if _, err := uuid.Parse(eventID); err != nil {
		return nil, domain.ErrInvalidID
	}

	now := a.clock.Now()
	reservedUntil := now.Add(a.window)

	candidates, err := a.ledger.FindReservable(ctx, eventID, quantity, now)
	if err != nil {
		return nil, fmt.Errorf("find reservable units: %w", err)
	}
	if len(candidates) < quantity {
		a.logger.Warn("insufficient inventory",
			zap.String("event_id", eventID),
			zap.Int("requested", quantity),
			zap.Int("found", len(candidates)),
		)
		return nil, &domain.InsufficientInventoryError{Requested: quantity, Found: len(candidates)}
	}

	updates := make([]domain.UnitUpdate, 0, len(candidates))
	for _, unit := range candidates {
		updates = append(updates, domain.UnitUpdate{
			ID:            unit.ID,
			Token:         unit.ConcurrencyToken,
			NewToken:      uuid.NewString(),
			Status:        domain.UnitStatusReserved,
			ReservedUntil: reservedUntil,
		})
	}

	var matched int
	err = a.ledger.WithTx(ctx, func(txCtx context.Context) error {
		n, err := a.ledger.ApplyGuarded(txCtx, updates)
		if err != nil {
			return err
		}
		matched = n
		return nil
	})
	if err != nil {
		a.logger.Error("reservation transaction aborted",
			zap.String("event_id", eventID),
			zap.Int("requested", quantity),
			zap.Strings("unit_ids", updateIDs(updates)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("reserve units: %w", err)
	}
	if matched < quantity {
		// Units this call did flip stay reserved and lapse back into the
		// pool through the keeper; none of them is handed out as a receipt.
		a.logger.Warn("reservation contention",
			zap.String("event_id", eventID),
			zap.Int("requested", quantity),
			zap.Int("matched", matched),
			zap.Strings("unit_ids", updateIDs(updates)),
		)
		return nil, domain.ErrReservationContention
	}

	receipts := make([]domain.Reservation, 0, len(candidates))
	for _, unit := range candidates {
		receipts = append(receipts, domain.Reservation{
			UnitID:        unit.ID,
			ReservedUntil: reservedUntil,
		})
	}
	return receipts, nil
}

func updateIDs(updates []domain.UnitUpdate) []string {
	ids := make([]string, 0, len(updates))
	for _, u := range updates {
		ids = append(ids, u.ID)
	}
	return ids
}
