package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openpass/inventory/internal/domain"
)

// UnitRepository is the postgres adapter of the unit ledger.
type UnitRepository struct {
	pool *pgxpool.Pool
}

func NewUnitRepository(pool *pgxpool.Pool) *UnitRepository {
	return &UnitRepository{pool: pool}
}

func (r *UnitRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const unitColumns = `id, event_id, status, reserved_until, concurrency_token, COALESCE(generation_request_id::text, ''), created_at`

func (r *UnitRepository) FindReservable(ctx context.Context, eventID string, limit int, now time.Time) ([]domain.InventoryUnit, error) {
	const q = `
SELECT ` + unitColumns + `
FROM inventory_units
WHERE event_id = $1
  AND (status = 'available' OR (status = 'reserved' AND reserved_until < $2))
ORDER BY created_at
LIMIT $3`

	rows, err := query(ctx, r.pool, q, eventID, now, limit)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("find reservable units: %w", err)
	}
	return scanUnits(rows)
}

func (r *UnitRepository) FindLapsed(ctx context.Context, limit int, now time.Time) ([]domain.InventoryUnit, error) {
	const q = `
SELECT ` + unitColumns + `
FROM inventory_units
WHERE status = 'reserved' AND reserved_until < $1
ORDER BY reserved_until
LIMIT $2`

	rows, err := query(ctx, r.pool, q, now, limit)
	if err != nil {
		return nil, fmt.Errorf("find lapsed units: %w", err)
	}
	return scanUnits(rows)
}

// ApplyGuarded issues one conditional UPDATE per entry and sums the matched
// rows. A guard miss affects zero rows and is not an error; the transaction,
// when one is carried in ctx, commits regardless.
func (r *UnitRepository) ApplyGuarded(ctx context.Context, updates []domain.UnitUpdate) (int, error) {
	const stmt = `
UPDATE inventory_units
SET status = $3, reserved_until = $4, concurrency_token = $5
WHERE id = $1 AND concurrency_token = $2`

	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(stmt, u.ID, u.Token, u.Status, u.ReservedUntil, u.NewToken)
	}

	results := sendBatch(ctx, r.pool, batch)
	matched := 0
	for range updates {
		tag, err := results.Exec()
		if err != nil {
			_ = results.Close()
			if isInvalidUUID(err) {
				return 0, domain.ErrInvalidID
			}
			return 0, fmt.Errorf("apply guarded updates: %w", err)
		}
		matched += int(tag.RowsAffected())
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("apply guarded updates: %w", err)
	}
	return matched, nil
}

func (r *UnitRepository) InsertUnits(ctx context.Context, units []domain.InventoryUnit) error {
	rows := make([][]any, 0, len(units))
	for _, u := range units {
		var generationID any
		if u.GenerationRequestID != "" {
			generationID = u.GenerationRequestID
		}
		rows = append(rows, []any{u.ID, u.EventID, string(u.Status), u.ReservedUntil, u.ConcurrencyToken, generationID, u.CreatedAt})
	}

	_, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"inventory_units"},
		[]string{"id", "event_id", "status", "reserved_until", "concurrency_token", "generation_request_id", "created_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("insert units: %w", err)
	}
	return nil
}

func (r *UnitRepository) CountByGeneration(ctx context.Context, generationRequestID string) (int, error) {
	const q = `SELECT COUNT(*) FROM inventory_units WHERE generation_request_id = $1`

	var count int
	if err := queryRow(ctx, r.pool, q, generationRequestID).Scan(&count); err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		return 0, fmt.Errorf("count generated units: %w", err)
	}
	return count, nil
}

func scanUnits(rows pgx.Rows) ([]domain.InventoryUnit, error) {
	defer rows.Close()

	var units []domain.InventoryUnit
	for rows.Next() {
		var u domain.InventoryUnit
		var status string
		if err := rows.Scan(&u.ID, &u.EventID, &status, &u.ReservedUntil, &u.ConcurrencyToken, &u.GenerationRequestID, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		u.Status = domain.UnitStatus(status)
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("read units: %w", err)
	}
	return units, nil
}
