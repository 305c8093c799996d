package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/openpass/inventory/internal/app"
	"github.com/openpass/inventory/internal/domain"
)

const (
	colUnits       = "inventory_units"
	colGenerations = "generation_requests"
	colOrders      = "orders"
)

var (
	_ app.UnitLedger       = (*Ledger)(nil)
	_ app.GenerationLedger = (*Ledger)(nil)
	_ app.OrderLedger      = (*Ledger)(nil)
)

// Ledger is the MongoDB adapter of the unit, generation and order ledgers.
// Transactions require a replica set or sharded deployment.
type Ledger struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewLedger(client *mongo.Client, database string) *Ledger {
	return &Ledger{
		client: client,
		db:     client.Database(database),
	}
}

// Migrate creates the indexes the predicate queries rely on.
func (l *Ledger) Migrate(ctx context.Context) error {
	unitIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "event_id", Value: 1}, {Key: "status", Value: 1}, {Key: "reserved_until", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "reserved_until", Value: 1}}},
		{Keys: bson.D{{Key: "generation_request_id", Value: 1}}},
	}
	if _, err := l.db.Collection(colUnits).Indexes().CreateMany(ctx, unitIndexes); err != nil {
		return fmt.Errorf("create unit indexes: %w", err)
	}

	orderIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "items.unit_id", Value: 1}}},
	}
	if _, err := l.db.Collection(colOrders).Indexes().CreateMany(ctx, orderIndexes); err != nil {
		return fmt.Errorf("create order indexes: %w", err)
	}
	return nil
}

func (l *Ledger) Ping(ctx context.Context) error {
	return l.client.Ping(ctx, nil)
}

func (l *Ledger) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	sess, err := l.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(txCtx context.Context) (any, error) {
		return nil, fn(txCtx)
	})
	return err
}

func (l *Ledger) FindReservable(ctx context.Context, eventID string, limit int, now time.Time) ([]domain.InventoryUnit, error) {
	filter := bson.M{
		"event_id": eventID,
		"$or": []bson.M{
			{"status": string(domain.UnitStatusAvailable)},
			{"status": string(domain.UnitStatusReserved), "reserved_until": bson.M{"$lt": now}},
		},
	}
	return l.findUnits(ctx, filter, limit)
}

func (l *Ledger) FindLapsed(ctx context.Context, limit int, now time.Time) ([]domain.InventoryUnit, error) {
	filter := bson.M{
		"status":         string(domain.UnitStatusReserved),
		"reserved_until": bson.M{"$lt": now},
	}
	return l.findUnits(ctx, filter, limit)
}

func (l *Ledger) findUnits(ctx context.Context, filter bson.M, limit int) ([]domain.InventoryUnit, error) {
	cur, err := l.db.Collection(colUnits).Find(ctx, filter, options.Find().SetLimit(int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("find units: %w", err)
	}

	var docs []unitDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("read units: %w", err)
	}

	units := make([]domain.InventoryUnit, 0, len(docs))
	for _, d := range docs {
		units = append(units, fromUnitDoc(d))
	}
	return units, nil
}

// ApplyGuarded updates each unit only where the stored token still matches.
// A miss matches zero documents and is skipped; the count of accepted
// updates is returned.
func (l *Ledger) ApplyGuarded(ctx context.Context, updates []domain.UnitUpdate) (int, error) {
	coll := l.db.Collection(colUnits)
	matched := 0
	for _, u := range updates {
		res, err := coll.UpdateOne(ctx,
			bson.M{"_id": u.ID, "concurrency_token": u.Token},
			bson.M{"$set": bson.M{
				"status":            string(u.Status),
				"reserved_until":    u.ReservedUntil.UTC(),
				"concurrency_token": u.NewToken,
			}},
		)
		if err != nil {
			return 0, fmt.Errorf("guarded update %s: %w", u.ID, err)
		}
		matched += int(res.MatchedCount)
	}
	return matched, nil
}

func (l *Ledger) InsertUnits(ctx context.Context, units []domain.InventoryUnit) error {
	docs := make([]any, 0, len(units))
	for _, u := range units {
		docs = append(docs, toUnitDoc(u))
	}
	if _, err := l.db.Collection(colUnits).InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert units: %w", err)
	}
	return nil
}

func (l *Ledger) CountByGeneration(ctx context.Context, generationRequestID string) (int, error) {
	n, err := l.db.Collection(colUnits).CountDocuments(ctx, bson.M{"generation_request_id": generationRequestID})
	if err != nil {
		return 0, fmt.Errorf("count generated units: %w", err)
	}
	return int(n), nil
}

func (l *Ledger) CreateRequest(ctx context.Context, req domain.GenerationRequest) error {
	doc := generationDoc{
		ID:        req.ID,
		EventID:   req.EventID,
		Quantity:  req.Quantity,
		Status:    string(req.Status),
		CreatedAt: req.CreatedAt.UTC(),
	}
	if _, err := l.db.Collection(colGenerations).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("create generation request: %w", err)
	}
	return nil
}

func (l *Ledger) GetRequest(ctx context.Context, id string) (domain.GenerationRequest, error) {
	var doc generationDoc
	err := l.db.Collection(colGenerations).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.GenerationRequest{}, domain.ErrGenerationNotFound
		}
		return domain.GenerationRequest{}, fmt.Errorf("get generation request: %w", err)
	}
	return domain.GenerationRequest{
		ID:        doc.ID,
		EventID:   doc.EventID,
		Quantity:  doc.Quantity,
		Status:    domain.GenerationStatus(doc.Status),
		CreatedAt: doc.CreatedAt,
	}, nil
}

func (l *Ledger) MarkCompleted(ctx context.Context, id string) error {
	res, err := l.db.Collection(colGenerations).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": string(domain.GenerationStatusCompleted)}},
	)
	if err != nil {
		return fmt.Errorf("complete generation request: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrGenerationNotFound
	}
	return nil
}

func (l *Ledger) FindUnitIDsWithOrders(ctx context.Context, unitIDs []string) (map[string]struct{}, error) {
	if len(unitIDs) == 0 {
		return map[string]struct{}{}, nil
	}

	cur, err := l.db.Collection(colOrders).Find(ctx, bson.M{"items.unit_id": bson.M{"$in": unitIDs}})
	if err != nil {
		return nil, fmt.Errorf("find ordered units: %w", err)
	}

	var orders []orderDoc
	if err := cur.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("read orders: %w", err)
	}

	wanted := make(map[string]struct{}, len(unitIDs))
	for _, id := range unitIDs {
		wanted[id] = struct{}{}
	}
	out := make(map[string]struct{})
	for _, order := range orders {
		for _, item := range order.Items {
			if _, ok := wanted[item.UnitID]; ok {
				out[item.UnitID] = struct{}{}
			}
		}
	}
	return out, nil
}
