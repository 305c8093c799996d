package mongo

import (
	"time"

	"github.com/openpass/inventory/internal/domain"
)

type unitDoc struct {
	ID                  string    `bson:"_id"`
	EventID             string    `bson:"event_id"`
	Status              string    `bson:"status"`
	ReservedUntil       time.Time `bson:"reserved_until"`
	ConcurrencyToken    string    `bson:"concurrency_token"`
	GenerationRequestID string    `bson:"generation_request_id,omitempty"`
	CreatedAt           time.Time `bson:"created_at"`
}

func toUnitDoc(u domain.InventoryUnit) unitDoc {
	return unitDoc{
		ID:                  u.ID,
		EventID:             u.EventID,
		Status:              string(u.Status),
		ReservedUntil:       u.ReservedUntil.UTC(),
		ConcurrencyToken:    u.ConcurrencyToken,
		GenerationRequestID: u.GenerationRequestID,
		CreatedAt:           u.CreatedAt.UTC(),
	}
}

func fromUnitDoc(d unitDoc) domain.InventoryUnit {
	return domain.InventoryUnit{
		ID:                  d.ID,
		EventID:             d.EventID,
		Status:              domain.UnitStatus(d.Status),
		ReservedUntil:       d.ReservedUntil,
		ConcurrencyToken:    d.ConcurrencyToken,
		GenerationRequestID: d.GenerationRequestID,
		CreatedAt:           d.CreatedAt,
	}
}

type generationDoc struct {
	ID        string    `bson:"_id"`
	EventID   string    `bson:"event_id"`
	Quantity  int       `bson:"quantity"`
	Status    string    `bson:"status"`
	CreatedAt time.Time `bson:"created_at"`
}

type orderDoc struct {
	ID        string         `bson:"_id"`
	Items     []orderItemDoc `bson:"items"`
	CreatedAt time.Time      `bson:"created_at"`
}

type orderItemDoc struct {
	UnitID string `bson:"unit_id"`
}
