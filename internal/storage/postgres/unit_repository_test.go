package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/openpass/inventory/internal/domain"
	"github.com/openpass/inventory/internal/testutil"
)

func testUnit(eventID string, status domain.UnitStatus, reservedUntil time.Time) domain.InventoryUnit {
	return domain.InventoryUnit{
		ID:               uuid.NewString(),
		EventID:          eventID,
		Status:           status,
		ReservedUntil:    reservedUntil,
		ConcurrencyToken: uuid.NewString(),
	}
}

func TestUnitRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewUnitRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	t.Run("FindReservable returns free and lapsed units only", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		now := time.Now().UTC()
		eventID := uuid.NewString()

		free := testUnit(eventID, domain.UnitStatusAvailable, now)
		lapsed := testUnit(eventID, domain.UnitStatusReserved, now.Add(-time.Minute))
		held := testUnit(eventID, domain.UnitStatusReserved, now.Add(time.Hour))
		sold := testUnit(eventID, domain.UnitStatusSold, now)
		otherEvent := testUnit(uuid.NewString(), domain.UnitStatusAvailable, now)
		for _, u := range []domain.InventoryUnit{free, lapsed, held, sold, otherEvent} {
			testutil.InsertUnit(t, ctx, pool, u)
		}

		units, err := repo.FindReservable(ctx, eventID, 10, now)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		got := map[string]bool{}
		for _, u := range units {
			got[u.ID] = true
		}
		if len(units) != 2 || !got[free.ID] || !got[lapsed.ID] {
			t.Fatalf("unexpected candidates: %+v", units)
		}

		limited, err := repo.FindReservable(ctx, eventID, 1, now)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(limited) != 1 {
			t.Fatalf("expected limit respected, got %d", len(limited))
		}

		if _, err := repo.FindReservable(ctx, "not-a-uuid", 1, now); !errors.Is(err, domain.ErrInvalidID) {
			t.Fatalf("expected ErrInvalidID, got %v", err)
		}
	})

	t.Run("FindLapsed pages reserved units past their window", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		now := time.Now().UTC()
		eventID := uuid.NewString()

		oldest := testUnit(eventID, domain.UnitStatusReserved, now.Add(-2*time.Hour))
		newer := testUnit(eventID, domain.UnitStatusReserved, now.Add(-time.Minute))
		live := testUnit(eventID, domain.UnitStatusReserved, now.Add(time.Hour))
		for _, u := range []domain.InventoryUnit{newer, oldest, live} {
			testutil.InsertUnit(t, ctx, pool, u)
		}

		units, err := repo.FindLapsed(ctx, 1, now)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(units) != 1 || units[0].ID != oldest.ID {
			t.Fatalf("expected oldest lapsed unit first, got %+v", units)
		}

		all, err := repo.FindLapsed(ctx, 10, now)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(all) != 2 {
			t.Fatalf("expected 2 lapsed units, got %d", len(all))
		}
	})

	t.Run("ApplyGuarded matches only current tokens", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		now := time.Now().UTC()
		eventID := uuid.NewString()

		current := testUnit(eventID, domain.UnitStatusAvailable, now)
		stale := testUnit(eventID, domain.UnitStatusAvailable, now)
		testutil.InsertUnit(t, ctx, pool, current)
		testutil.InsertUnit(t, ctx, pool, stale)

		until := now.Add(90 * time.Minute)
		updates := []domain.UnitUpdate{
			{ID: current.ID, Token: current.ConcurrencyToken, NewToken: uuid.NewString(), Status: domain.UnitStatusReserved, ReservedUntil: until},
			{ID: stale.ID, Token: uuid.NewString(), NewToken: uuid.NewString(), Status: domain.UnitStatusReserved, ReservedUntil: until},
		}

		var matched int
		err := repo.WithTx(ctx, func(txCtx context.Context) error {
			n, err := repo.ApplyGuarded(txCtx, updates)
			matched = n
			return err
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if matched != 1 {
			t.Fatalf("expected 1 match, got %d", matched)
		}

		var status, token string
		if err := pool.QueryRow(ctx,
			`SELECT status, concurrency_token FROM inventory_units WHERE id = $1`, current.ID,
		).Scan(&status, &token); err != nil {
			t.Fatalf("query unit: %v", err)
		}
		if status != string(domain.UnitStatusReserved) || token == current.ConcurrencyToken {
			t.Fatalf("expected reserved with rotated token, got %s %s", status, token)
		}

		if err := pool.QueryRow(ctx,
			`SELECT status FROM inventory_units WHERE id = $1`, stale.ID,
		).Scan(&status); err != nil {
			t.Fatalf("query unit: %v", err)
		}
		if status != string(domain.UnitStatusAvailable) {
			t.Fatalf("expected guard miss to be a no-op, got %s", status)
		}
	})

	t.Run("InsertUnits and CountByGeneration", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		now := time.Now().UTC()
		eventID := uuid.NewString()

		req := domain.GenerationRequest{
			ID:       uuid.NewString(),
			EventID:  eventID,
			Quantity: 3,
			Status:   domain.GenerationStatusPending,
		}
		testutil.InsertGenerationRequest(t, ctx, pool, req)

		units := make([]domain.InventoryUnit, 0, 3)
		for i := 0; i < 3; i++ {
			u := testUnit(eventID, domain.UnitStatusAvailable, now)
			u.GenerationRequestID = req.ID
			u.CreatedAt = now
			units = append(units, u)
		}
		if err := repo.InsertUnits(ctx, units); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		count, err := repo.CountByGeneration(ctx, req.ID)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if count != 3 {
			t.Fatalf("expected 3 units, got %d", count)
		}
	})
}
