package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openpass/inventory/internal/clock"
	"github.com/openpass/inventory/internal/domain"
)

const defaultSweepPageSize = 1000

// Keeper resolves lapsed reservations into their ground-truth state. It is
// the only writer of the sold status: a lapsed unit referenced by an order
// line item becomes sold, any other lapsed unit returns to the pool. It
// holds no state between runs and is driven by an external scheduler.
type Keeper struct {
	units    UnitLedger
	orders   OrderLedger
	clock    clock.Clock
	logger   *zap.Logger
	pageSize int
}

func NewKeeper(units UnitLedger, orders OrderLedger, clk clock.Clock, logger *zap.Logger, opts ...KeeperOption) *Keeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	k := &Keeper{
		units:    units,
		orders:   orders,
		clock:    clk,
		logger:   logger,
		pageSize: defaultSweepPageSize,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

type KeeperOption func(*Keeper)

// WithSweepPageSize bounds how many lapsed units one sweep considers. Units
// beyond the page are picked up by a later run.
func WithSweepPageSize(n int) KeeperOption {
	return func(k *Keeper) {
		if n > 0 {
			k.pageSize = n
		}
	}
}

// Sweep runs one reconciliation pass. Guard misses on units that changed
// since they were loaded are skipped and resolved on a future run, which
// also makes consecutive sweeps over an unchanged ledger idempotent.
func (k *Keeper) Sweep(ctx context.Context) error {
	now := k.clock.Now()

	units, err := k.units.FindLapsed(ctx, k.pageSize, now)
	if err != nil {
		return fmt.Errorf("load lapsed reservations: %w", err)
	}
	if len(units) == 0 {
		k.logger.Info("sweep found no lapsed reservations")
		return nil
	}

	ids := make([]string, 0, len(units))
	for _, unit := range units {
		ids = append(ids, unit.ID)
	}

	sold, err := k.orders.FindUnitIDsWithOrders(ctx, ids)
	if err != nil {
		k.logger.Error("order lookup failed", zap.Strings("unit_ids", ids), zap.Error(err))
		return fmt.Errorf("load order evidence: %w", err)
	}

	updates := make([]domain.UnitUpdate, 0, len(units))
	for _, unit := range units {
		status := domain.UnitStatusAvailable
		if _, ok := sold[unit.ID]; ok {
			status = domain.UnitStatusSold
		}
		updates = append(updates, domain.UnitUpdate{
			ID:            unit.ID,
			Token:         unit.ConcurrencyToken,
			NewToken:      uuid.NewString(),
			Status:        status,
			ReservedUntil: unit.ReservedUntil,
		})
	}

	var matched int
	err = k.units.WithTx(ctx, func(txCtx context.Context) error {
		n, err := k.units.ApplyGuarded(txCtx, updates)
		if err != nil {
			return err
		}
		matched = n
		return nil
	})
	if err != nil {
		k.logger.Error("sweep transaction aborted", zap.Strings("unit_ids", ids), zap.Error(err))
		return fmt.Errorf("apply sweep updates: %w", err)
	}

	k.logger.Info("sweep completed",
		zap.Int("lapsed", len(units)),
		zap.Int("sold", len(sold)),
		zap.Int("applied", matched),
		zap.Int("skipped", len(updates)-matched),
	)
	return nil
}
