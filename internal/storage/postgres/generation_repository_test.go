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

func TestGenerationRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewGenerationRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	t.Run("CreateRequest then GetRequest round-trips", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		req := domain.GenerationRequest{
			ID:        uuid.NewString(),
			EventID:   uuid.NewString(),
			Quantity:  2500,
			Status:    domain.GenerationStatusPending,
			CreatedAt: time.Now().UTC(),
		}
		if err := repo.CreateRequest(ctx, req); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		got, err := repo.GetRequest(ctx, req.ID)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.ID != req.ID || got.EventID != req.EventID || got.Quantity != req.Quantity {
			t.Fatalf("unexpected request: %+v", got)
		}
		if got.Status != domain.GenerationStatusPending {
			t.Fatalf("expected pending status, got %s", got.Status)
		}
	})

	t.Run("GetRequest for an unknown id", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		if _, err := repo.GetRequest(ctx, uuid.NewString()); !errors.Is(err, domain.ErrGenerationNotFound) {
			t.Fatalf("expected ErrGenerationNotFound, got %v", err)
		}
	})

	t.Run("MarkCompleted flips status once", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		req := domain.GenerationRequest{
			ID:        uuid.NewString(),
			EventID:   uuid.NewString(),
			Quantity:  10,
			Status:    domain.GenerationStatusPending,
			CreatedAt: time.Now().UTC(),
		}
		testutil.InsertGenerationRequest(t, ctx, pool, req)

		if err := repo.MarkCompleted(ctx, req.ID); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		got, err := repo.GetRequest(ctx, req.ID)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.Status != domain.GenerationStatusCompleted {
			t.Fatalf("expected completed status, got %s", got.Status)
		}

		if err := repo.MarkCompleted(ctx, uuid.NewString()); !errors.Is(err, domain.ErrGenerationNotFound) {
			t.Fatalf("expected ErrGenerationNotFound, got %v", err)
		}
	})
}
