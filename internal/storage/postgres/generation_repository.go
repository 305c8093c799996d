package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openpass/inventory/internal/domain"
)

// GenerationRepository stores generation request receipts in postgres.
type GenerationRepository struct {
	pool *pgxpool.Pool
}

func NewGenerationRepository(pool *pgxpool.Pool) *GenerationRepository {
	return &GenerationRepository{pool: pool}
}

func (r *GenerationRepository) CreateRequest(ctx context.Context, req domain.GenerationRequest) error {
	const stmt = `
INSERT INTO generation_requests (id, event_id, quantity, status, created_at)
VALUES ($1, $2, $3, $4, $5)`

	_, err := exec(ctx, r.pool, stmt, req.ID, req.EventID, req.Quantity, req.Status, req.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create generation request: %w", err)
	}
	return nil
}

func (r *GenerationRepository) GetRequest(ctx context.Context, id string) (domain.GenerationRequest, error) {
	const q = `
SELECT id, event_id, quantity, status, created_at
FROM generation_requests
WHERE id = $1`

	var req domain.GenerationRequest
	var status string
	err := queryRow(ctx, r.pool, q, id).Scan(&req.ID, &req.EventID, &req.Quantity, &status, &req.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.GenerationRequest{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.GenerationRequest{}, domain.ErrGenerationNotFound
		}
		return domain.GenerationRequest{}, fmt.Errorf("get generation request: %w", err)
	}
	req.Status = domain.GenerationStatus(status)
	return req, nil
}

func (r *GenerationRepository) MarkCompleted(ctx context.Context, id string) error {
	const stmt = `UPDATE generation_requests SET status = $2 WHERE id = $1`

	tag, err := exec(ctx, r.pool, stmt, id, domain.GenerationStatusCompleted)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("complete generation request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrGenerationNotFound
	}
	return nil
}
