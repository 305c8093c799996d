package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/openpass/inventory/internal/domain"
)

// GenerationService is the minimal interface needed to accept generation
// requests and materialize chunks.
type GenerationService interface {
	Generate(ctx context.Context, eventID string, quantity int) (domain.GenerationRequest, error)
	Materialize(ctx context.Context, eventID string, quantity int, generationRequestID string) error
}

// GenerationEnqueuer hands a persisted generation request to the worker
// queue.
type GenerationEnqueuer interface {
	EnqueueGeneration(ctx context.Context, generationRequestID string) error
}

// HandleGenerate returns a handler that records a generation request and
// enqueues it for asynchronous fulfilment.
func HandleGenerate(svc GenerationService, queue GenerationEnqueuer, logger *zap.Logger) http.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req generateRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		receipt, err := svc.Generate(r.Context(), req.EventID, req.Quantity)
		if err != nil {
			writeGenerationError(w, err)
			return
		}

		if err := queue.EnqueueGeneration(r.Context(), receipt.ID); err != nil {
			// The receipt is durable; a worker can still pick it up once
			// the queue recovers.
			logger.Error("enqueue generation job failed",
				zap.String("generation_request_id", receipt.ID),
				zap.String("event_id", receipt.EventID),
				zap.Int("requested", receipt.Quantity),
				zap.Error(err),
			)
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(generateResponse{
			ID:     receipt.ID,
			Status: string(receipt.Status),
		})
	}
}

// HandleMaterialize returns a handler that inserts one chunk of units. It
// exists for the generation worker; callers chunk large quantities
// themselves.
func HandleMaterialize(svc GenerationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req materializeRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		if err := svc.Materialize(r.Context(), req.EventID, req.Quantity, req.GenerationRequestID); err != nil {
			writeGenerationError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(materializeResponse{Created: req.Quantity})
	}
}

func writeGenerationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidID):
		writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
	case errors.Is(err, domain.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, codeInvalidQuantity, err.Error())
	case errors.Is(err, domain.ErrGenerationNotFound):
		writeError(w, http.StatusNotFound, codeGenerationNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

type generateRequest struct {
	EventID  string `json:"event_id"`
	Quantity int    `json:"quantity"`
}

type generateResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type materializeRequest struct {
	EventID             string `json:"event_id"`
	Quantity            int    `json:"quantity"`
	GenerationRequestID string `json:"generation_request_id"`
}

type materializeResponse struct {
	Created int `json:"created"`
}
