package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openpass/inventory/internal/clock"
	"github.com/openpass/inventory/internal/domain"
)

const defaultGenerationChunk = 1000

// Generator creates inventory units for an event in capped chunks, tracked
// by a GenerationRequest receipt so that retries never overshoot the
// requested total.
type Generator struct {
	units       UnitLedger
	generations GenerationLedger
	clock       clock.Clock
	logger      *zap.Logger
	chunkSize   int
}

func NewGenerator(units UnitLedger, generations GenerationLedger, clk clock.Clock, logger *zap.Logger, opts ...GeneratorOption) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Generator{
		units:       units,
		generations: generations,
		clock:       clk,
		logger:      logger,
		chunkSize:   defaultGenerationChunk,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type GeneratorOption func(*Generator)

// WithGenerationChunk overrides how many units one insert batch carries.
func WithGenerationChunk(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.chunkSize = n
		}
	}
}

// Generate validates the request and persists a pending receipt. The units
// themselves are created later by Fulfil, normally on a queue worker.
func (g *Generator) Generate(ctx context.Context, eventID string, quantity int) (domain.GenerationRequest, error) {
	if quantity <= 0 {
		return domain.GenerationRequest{}, domain.ErrInvalidQuantity
	}
	if _, err := uuid.Parse(eventID); err != nil {
		return domain.GenerationRequest{}, domain.ErrInvalidID
	}

	req := domain.GenerationRequest{
		ID:        uuid.NewString(),
		EventID:   eventID,
		Quantity:  quantity,
		Status:    domain.GenerationStatusPending,
		CreatedAt: g.clock.Now(),
	}
	if err := g.generations.CreateRequest(ctx, req); err != nil {
		return domain.GenerationRequest{}, fmt.Errorf("create generation request: %w", err)
	}
	return req, nil
}

// Materialize inserts one chunk of available units. It is not transactional
// across a whole generation request; Fulfil chunks large requests and counts
// already-created units before issuing the next chunk.
func (g *Generator) Materialize(ctx context.Context, eventID string, quantity int, generationRequestID string) error {
	if quantity <= 0 || quantity > g.chunkSize {
		return domain.ErrInvalidQuantity
	}
	if _, err := uuid.Parse(eventID); err != nil {
		return domain.ErrInvalidID
	}
	if generationRequestID != "" {
		if _, err := uuid.Parse(generationRequestID); err != nil {
			return domain.ErrInvalidID
		}
	}

	now := g.clock.Now()
	units := make([]domain.InventoryUnit, 0, quantity)
	for i := 0; i < quantity; i++ {
		units = append(units, domain.InventoryUnit{
			ID:                  uuid.NewString(),
			EventID:             eventID,
			Status:              domain.UnitStatusAvailable,
			ReservedUntil:       now,
			ConcurrencyToken:    uuid.NewString(),
			GenerationRequestID: generationRequestID,
			CreatedAt:           now,
		})
	}
	if err := g.units.InsertUnits(ctx, units); err != nil {
		g.logger.Error("unit insert failed",
			zap.String("event_id", eventID),
			zap.Int("requested", quantity),
			zap.String("generation_request_id", generationRequestID),
			zap.Error(err),
		)
		return fmt.Errorf("insert units: %w", err)
	}
	return nil
}

// Fulfil creates whatever part of a generation request is still missing.
// The count of units already linked to the request is the idempotency
// checkpoint: a retried or duplicated invocation tops the pool up to the
// requested quantity and never past it.
func (g *Generator) Fulfil(ctx context.Context, generationRequestID string) error {
	if _, err := uuid.Parse(generationRequestID); err != nil {
		return domain.ErrInvalidID
	}

	req, err := g.generations.GetRequest(ctx, generationRequestID)
	if err != nil {
		return fmt.Errorf("load generation request: %w", err)
	}
	if req.Status == domain.GenerationStatusCompleted {
		g.logger.Info("generation request already completed",
			zap.String("generation_request_id", req.ID))
		return nil
	}

	created, err := g.units.CountByGeneration(ctx, req.ID)
	if err != nil {
		return fmt.Errorf("count created units: %w", err)
	}

	remaining := req.Quantity - created
	g.logger.Info("fulfilling generation request",
		zap.String("generation_request_id", req.ID),
		zap.String("event_id", req.EventID),
		zap.Int("requested", req.Quantity),
		zap.Int("already_created", created),
	)
	for remaining > 0 {
		chunk := remaining
		if chunk > g.chunkSize {
			chunk = g.chunkSize
		}
		if err := g.Materialize(ctx, req.EventID, chunk, req.ID); err != nil {
			return fmt.Errorf("materialize chunk: %w", err)
		}
		remaining -= chunk
	}

	if err := g.generations.MarkCompleted(ctx, req.ID); err != nil {
		return fmt.Errorf("complete generation request: %w", err)
	}
	return nil
}
