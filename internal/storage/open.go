package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/openpass/inventory/internal/app"
	"github.com/openpass/inventory/internal/config"
	mongostore "github.com/openpass/inventory/internal/storage/mongo"
	"github.com/openpass/inventory/internal/storage/postgres"
	"github.com/openpass/inventory/migrations"
)

// Ledgers bundles the adapters of one storage engine.
type Ledgers struct {
	Units       app.UnitLedger
	Generations app.GenerationLedger
	Orders      app.OrderLedger
}

// Open connects to the configured engine, applies its migrations and
// returns the ledgers plus a close function.
func Open(ctx context.Context, cfg config.Config) (Ledgers, func(), error) {
	switch cfg.StorageEngine {
	case config.EnginePostgres:
		return openPostgres(ctx, cfg)
	case config.EngineMongo:
		return openMongo(ctx, cfg)
	default:
		return Ledgers{}, nil, fmt.Errorf("unknown storage engine %q", cfg.StorageEngine)
	}
}

func openPostgres(ctx context.Context, cfg config.Config) (Ledgers, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return Ledgers{}, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return Ledgers{}, nil, fmt.Errorf("postgres ping: %w", err)
	}
	if err := migrations.Apply(ctx, pool); err != nil {
		pool.Close()
		return Ledgers{}, nil, fmt.Errorf("apply migrations: %w", err)
	}

	return Ledgers{
		Units:       postgres.NewUnitRepository(pool),
		Generations: postgres.NewGenerationRepository(pool),
		Orders:      postgres.NewOrderRepository(pool),
	}, pool.Close, nil
}

func openMongo(ctx context.Context, cfg config.Config) (Ledgers, func(), error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return Ledgers{}, nil, fmt.Errorf("connect to mongo: %w", err)
	}

	ledger := mongostore.NewLedger(client, cfg.MongoDatabase)
	closeFn := func() { _ = client.Disconnect(context.Background()) }

	if err := ledger.Ping(ctx); err != nil {
		closeFn()
		return Ledgers{}, nil, fmt.Errorf("mongo ping: %w", err)
	}
	if err := ledger.Migrate(ctx); err != nil {
		closeFn()
		return Ledgers{}, nil, fmt.Errorf("create indexes: %w", err)
	}

	return Ledgers{
		Units:       ledger,
		Generations: ledger,
		Orders:      ledger,
	}, closeFn, nil
}
