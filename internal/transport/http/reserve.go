package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/openpass/inventory/internal/domain"
)

// Reserver is the minimal interface needed to reserve units.
type Reserver interface {
	Reserve(ctx context.Context, eventID string, quantity int) ([]domain.Reservation, error)
}

// HandleReserve returns an HTTP handler for reserving inventory units.
func HandleReserve(svc Reserver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req reserveRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		receipts, err := svc.Reserve(r.Context(), req.EventID, req.Quantity)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrInvalidID):
				writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
			case errors.Is(err, domain.ErrInvalidQuantity):
				writeError(w, http.StatusBadRequest, codeInvalidQuantity, err.Error())
			case errors.Is(err, domain.ErrReservationBatchTooBig):
				writeError(w, http.StatusBadRequest, codeBatchTooBig, err.Error())
			case errors.Is(err, domain.ErrInsufficientInventory):
				writeError(w, http.StatusConflict, codeInsufficientInventory, err.Error())
			case errors.Is(err, domain.ErrReservationContention):
				writeError(w, http.StatusConflict, codeReservationContention, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		resp := reserveResponse{Reservations: make([]reservationPayload, 0, len(receipts))}
		for _, rec := range receipts {
			resp.Reservations = append(resp.Reservations, reservationPayload{
				UnitID:        rec.UnitID,
				ReservedUntil: rec.ReservedUntil,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

type reserveRequest struct {
	EventID  string `json:"event_id"`
	Quantity int    `json:"quantity"`
}

type reserveResponse struct {
	Reservations []reservationPayload `json:"reservations"`
}

type reservationPayload struct {
	UnitID        string    `json:"unit_id"`
	ReservedUntil time.Time `json:"reserved_until"`
}
