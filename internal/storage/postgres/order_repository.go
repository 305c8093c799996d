package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// OrderRepository reads the order ledger. The only schema coupling is that
// an order line item carries a reserved unit's id; this core never writes
// orders.
type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) FindUnitIDsWithOrders(ctx context.Context, unitIDs []string) (map[string]struct{}, error) {
	if len(unitIDs) == 0 {
		return map[string]struct{}{}, nil
	}

	const q = `SELECT DISTINCT unit_id FROM order_items WHERE unit_id = ANY($1::uuid[])`

	rows, err := query(ctx, r.pool, q, unitIDs)
	if err != nil {
		return nil, fmt.Errorf("find ordered units: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan ordered unit id: %w", err)
		}
		out[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read ordered unit ids: %w", err)
	}
	return out, nil
}
