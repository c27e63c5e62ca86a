package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/IBM/sarama"

	"listingchat/internal/app/bootstrap"
	"listingchat/internal/app/middleware"
	"listingchat/internal/app/policies"
	"listingchat/internal/app/uow"
	"listingchat/internal/infra/broker/kafka"
	rediscache "listingchat/internal/infra/cache/redis"
	"listingchat/internal/infra/config"
	"listingchat/internal/infra/db/mongo"
	"listingchat/internal/infra/db/postgres"
	"listingchat/internal/infra/inbox"
	"listingchat/internal/infra/obs"
	infraoutbox "listingchat/internal/infra/outbox"
	"listingchat/internal/infra/storage/memory"
	"listingchat/internal/infra/storage/scylla"
)

const eventSource = "app://listingchat"

type application struct {
	deps       bootstrap.Deps
	checks     map[string]obs.Check
	background []func(ctx context.Context) error
	closers    []func()
}

func (a *application) onClose(fn func()) { a.closers = append(a.closers, fn) }

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// listingStore is a gateway that the listing projector can also write to.
type listingStore interface {
	policies.ListingGateway
	kafka.ListingProjection
}

func wire(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	app := &application{checks: map[string]obs.Check{}}
	app.deps.Logger = logger

	var mongoClient *mongo.Client
	if cfg.NeedsMongo() {
		client, err := mongo.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("mongo connect: %w", err)
		}
		mongoClient = client
		app.checks["mongo"] = client.Ping
		app.onClose(func() { _ = client.Close(context.Background()) })
	}

	factory, err := storage(ctx, app, cfg, mongoClient, logger)
	if err != nil {
		app.close()
		return nil, err
	}
	app.deps.UoWFactory = factory

	listings, err := listingGateway(ctx, cfg, mongoClient, logger)
	if err != nil {
		app.close()
		return nil, err
	}
	app.deps.Listings = listings

	idem, err := idempotencyStore(ctx, app, cfg, mongoClient)
	if err != nil {
		app.close()
		return nil, err
	}
	app.deps.Idempotency = idem

	if err := events(ctx, app, cfg, mongoClient, listings, logger); err != nil {
		app.close()
		return nil, err
	}
	return app, nil
}

func storage(ctx context.Context, app *application, cfg config.Config, client *mongo.Client, logger *slog.Logger) (uow.UoWFactory, error) {
	switch cfg.StorageDriver {
	case config.DriverMongo:
		convs := mongo.NewConversationRepository(client.DB)
		msgs := mongo.NewMessageLog(client.DB, convs)
		if err := convs.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("mongo conversation indexes: %w", err)
		}
		if err := msgs.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("mongo message indexes: %w", err)
		}
		return mongo.Factory{DB: client.DB, Conversations: convs, Messages: msgs}, nil
	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		app.onClose(pool.Close)
		if err := postgres.Migrate(ctx, pool); err != nil {
			return nil, err
		}
		app.checks["postgres"] = pool.Ping
		return postgres.Factory{Pool: pool}, nil
	case config.DriverScylla:
		session, err := scylla.NewSession(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		app.onClose(session.Close)
		app.checks["scylla"] = func(ctx context.Context) error {
			return session.Query("SELECT now() FROM system.local").WithContext(ctx).Exec()
		}
		return scylla.Factory{Store: scylla.NewStore(session, logger)}, nil
	default:
		return memory.Factory{Store: memory.NewChatStore()}, nil
	}
}

func listingGateway(ctx context.Context, cfg config.Config, client *mongo.Client, logger *slog.Logger) (listingStore, error) {
	if cfg.ListingGateway == config.DriverMongo {
		return mongo.NewListingGateway(client.DB), nil
	}
	gateway := memory.NewListingGateway()
	if cfg.ListingsFixtures == "" {
		return gateway, nil
	}
	raw, err := os.ReadFile(cfg.ListingsFixtures)
	if err != nil {
		logger.Warn("listing fixtures not readable", "error", err, "path", cfg.ListingsFixtures)
		return gateway, nil
	}
	n, err := gateway.LoadFixtures(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("listing fixtures %s: %w", cfg.ListingsFixtures, err)
	}
	logger.Info("listing fixtures loaded", "count", n, "path", cfg.ListingsFixtures)
	return gateway, nil
}

func idempotencyStore(ctx context.Context, app *application, cfg config.Config, client *mongo.Client) (middleware.IdempotencyStore, error) {
	switch {
	case cfg.RedisURL != "":
		rdb, err := rediscache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		app.onClose(func() { _ = rdb.Close() })
		store := rediscache.NewIdempotencyStore(rdb, cfg.IdempotencyTTL)
		app.checks["redis"] = store.Ping
		return store, nil
	case cfg.StorageDriver == config.DriverMongo:
		store := mongo.NewIdempotencyStore(client.DB, cfg.IdempotencyTTL)
		if err := store.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("mongo idempotency indexes: %w", err)
		}
		return store, nil
	default:
		return memory.NewIdempotencyStore(cfg.IdempotencyTTL), nil
	}
}

// events wires the outbox and, with Kafka configured, the relay worker and
// the listing projector.
func events(ctx context.Context, app *application, cfg config.Config, client *mongo.Client, listings listingStore, logger *slog.Logger) error {
	if !cfg.KafkaEnabled() {
		app.deps.Outbox = &memory.Outbox{Logger: logger}
		return nil
	}
	producer, err := kafka.NewProducer(cfg.KafkaBrokers, sarama.NewConfig())
	if err != nil {
		return fmt.Errorf("kafka producer: %w", err)
	}
	app.onClose(func() { _ = producer.Close() })

	if cfg.StorageDriver == config.DriverMongo {
		store := infraoutbox.NewMongoStore(client.DB)
		if err := store.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("mongo outbox indexes: %w", err)
		}
		app.deps.Outbox = store
		worker := &infraoutbox.Worker{
			Store:       store,
			Producer:    producer,
			Interval:    cfg.OutboxPollInterval,
			TopicPrefix: cfg.KafkaTopicPrefix,
			Source:      eventSource,
			Backoff:     cfg.RetryBackoff,
			Logger:      logger,
		}
		app.background = append(app.background, worker.Run)
	} else {
		app.deps.Outbox = &memory.Outbox{
			Publisher:   producer,
			TopicPrefix: cfg.KafkaTopicPrefix,
			Source:      eventSource,
			Logger:      logger,
		}
	}

	var dedupe kafka.Deduper = inbox.NewMemoryStore()
	if client != nil {
		store := inbox.NewMongoStore(client.DB, cfg.KafkaGroupID)
		if err := store.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("mongo inbox indexes: %w", err)
		}
		dedupe = store
	}
	projector := &kafka.ListingProjector{Projection: listings, Inbox: dedupe, Logger: logger}
	consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, sarama.NewConfig(), projector, logger)
	if err != nil {
		return fmt.Errorf("kafka consumer: %w", err)
	}
	app.onClose(func() { _ = consumer.Close() })
	app.background = append(app.background, func(ctx context.Context) error {
		logger.Info("listing projector starting", "topic", cfg.KafkaListingTopic, "group", cfg.KafkaGroupID)
		return consumer.Run(ctx, []string{cfg.KafkaListingTopic})
	})
	return nil
}
