package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/reginald441/reginaldkargbo-site/internal/bookings"
	appconfig "github.com/reginald441/reginaldkargbo-site/internal/config"
	"github.com/reginald441/reginaldkargbo-site/pkg/logging"
)

// StoreHandle is a booking store plus the resources to release on shutdown.
type StoreHandle struct {
	Store   bookings.Store
	Backend string
	// Ping reports backend reachability for /health. Nil for in-process stores.
	Ping    func(context.Context) error
	closers []func(context.Context) error
}

// Close releases connections in reverse order of acquisition.
func (h *StoreHandle) Close(ctx context.Context) error {
	var firstErr error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i](ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// BuildStore opens the availability store selected by STORE_BACKEND.
func BuildStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*StoreHandle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	h := &StoreHandle{Backend: cfg.StoreBackend}
	switch cfg.StoreBackend {
	case appconfig.BackendMemory:
		h.Store = bookings.NewMemoryStore()

	case appconfig.BackendFile:
		store, err := bookings.OpenDocumentStore(cfg.BookingsFile)
		if err != nil {
			return nil, err
		}
		h.Store = store

	case appconfig.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
		}
		h.Store = bookings.NewPostgresStore(pool)
		h.Ping = pool.Ping
		h.closers = append(h.closers, func(context.Context) error { pool.Close(); return nil })

	case appconfig.BackendRedis:
		client := BuildRedisClient(ctx, cfg, logger, true)
		if client == nil {
			return nil, fmt.Errorf("bootstrap: redis unavailable at %s", cfg.RedisAddr)
		}
		h.Store = bookings.NewRedisStore(client, cfg.RedisPrefix)
		h.Ping = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		h.closers = append(h.closers, func(context.Context) error { return client.Close() })

	case appconfig.BackendDynamoDB:
		awsCfg, err := LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		h.Store = bookings.NewDynamoStore(NewDynamoClient(awsCfg, cfg), cfg.BookingsTable, logger)

	case appconfig.BackendMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI).SetConnectTimeout(10*time.Second))
		if err != nil {
			return nil, fmt.Errorf("bootstrap: connect mongo: %w", err)
		}
		store := bookings.NewMongoStore(client.Database(cfg.MongoDatabase).Collection("bookings"))
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		h.Store = store
		h.Ping = func(ctx context.Context) error { return client.Ping(ctx, nil) }
		h.closers = append(h.closers, client.Disconnect)
	}

	logger.Info("availability store ready", "backend", h.Backend)
	return h, nil
}
