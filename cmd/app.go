package cmd

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/WKowalczykDev/EntranceControl/internal/audit"
	"github.com/WKowalczykDev/EntranceControl/internal/audit/outbox"
	"github.com/WKowalczykDev/EntranceControl/internal/config"
	"github.com/WKowalczykDev/EntranceControl/internal/database"
	"github.com/WKowalczykDev/EntranceControl/internal/database/postgres"
	"github.com/WKowalczykDev/EntranceControl/internal/embeddings"
	"github.com/WKowalczykDev/EntranceControl/internal/encoder"
	"github.com/WKowalczykDev/EntranceControl/internal/imagestore"
	"github.com/WKowalczykDev/EntranceControl/internal/logging"
	"github.com/WKowalczykDev/EntranceControl/internal/scoring"
	"github.com/WKowalczykDev/EntranceControl/internal/token"
	"github.com/WKowalczykDev/EntranceControl/internal/verification"
)

// app holds the components shared by the commands.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	pool      *postgres.Pool
	directory *postgres.DirectoryRepository
	attempts  *postgres.AttemptRepository
	encoder   encoder.Encoder
	store     *embeddings.Store
	images    *imagestore.Dir

	// set by startAudit
	outbox     *outbox.Outbox
	dispatcher *audit.Dispatcher
	retrier    *audit.Retrier
}

// newApp loads configuration, connects to PostgreSQL and loads the
// embedding store.
func newApp(ctx context.Context) (*app, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	fmt.Printf("Connecting to PostgreSQL database...\n")
	pool, err := postgres.Initialize(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}

	var snapshots database.EmbeddingSnapshotStore
	switch cfg.Embedding.Backend {
	case "postgres":
		snapshots = postgres.NewEmbeddingRepository(pool)
		fmt.Printf("Using PostgreSQL embedding backend\n")
	default:
		fp := embeddings.NewFilePersister(cfg.Embedding.StorePath)
		snapshots = fp
		fmt.Printf("Using file embedding backend (%s)\n", fp.Path())
	}

	enc := encoder.NewLimited(
		encoder.NewClient(cfg.Encoder.URL, cfg.Encoder.MaxImagePx),
		cfg.Encoder.Concurrency,
		cfg.Encoder.Timeout,
	)
	store := embeddings.NewStore(enc, snapshots, cfg.Embedding.Dim, logger)
	if err := store.Load(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("loading embedding store: %w", err)
	}
	fmt.Printf("Embedding store ready with %d persons\n", store.Len())

	return &app{
		cfg:       cfg,
		logger:    logger,
		pool:      pool,
		directory: postgres.NewDirectoryRepository(pool),
		attempts:  postgres.NewAttemptRepository(pool),
		encoder:   enc,
		store:     store,
		images:    imagestore.NewDir(cfg.Images.Root),
	}, nil
}

// startAudit opens the outbox and starts the dispatcher and retry loop.
func (a *app) startAudit(ctx context.Context) error {
	var sink audit.Sink = a.attempts
	if url := a.cfg.Audit.ElasticsearchURL; url != "" {
		es, err := audit.NewElasticSink(url, a.cfg.Audit.ElasticsearchIndex)
		if err != nil {
			return err
		}
		sink = audit.MultiSink{a.attempts, es}
		fmt.Printf("Indexing attempts into Elasticsearch (%s)\n", a.cfg.Audit.ElasticsearchIndex)
	}

	ob, err := outbox.Open(ctx, a.cfg.Audit.OutboxPath)
	if err != nil {
		return fmt.Errorf("opening audit outbox: %w", err)
	}
	if n, err := ob.Count(ctx); err == nil && n > 0 {
		fmt.Printf("Audit outbox holds %d undelivered attempts\n", n)
	}

	a.outbox = ob
	a.dispatcher = audit.NewDispatcher(sink, ob, a.cfg.Audit.QueueSize, a.cfg.Audit.Workers, a.logger)
	a.retrier = audit.NewRetrier(sink, ob, a.cfg.Audit.RetryInterval, a.logger)
	a.retrier.Start(ctx)
	return nil
}

// engine builds the verification engine. startAudit must have run.
func (a *app) engine() *verification.Engine {
	return verification.NewEngine(verification.Deps{
		Tokens:     token.NewValidator(a.directory, a.cfg.Location),
		Persons:    a.directory,
		Gates:      a.directory,
		References: a.store,
		Images:     a.images,
		Encoder:    a.encoder,
		Evidence:   a.images,
		Audit:      a.dispatcher,
		Logger:     a.logger,
	}, verification.Options{
		Scoring:       scoring.ParamsFromConfig(a.cfg.Scoring),
		AcceptanceBar: a.cfg.Scoring.AcceptanceBar,
		Timeout:       a.cfg.Verification.Timeout,
	})
}

// close drains the audit queue and releases resources.
func (a *app) close(ctx context.Context) {
	if a.dispatcher != nil {
		if err := a.dispatcher.Close(ctx); err != nil {
			fmt.Printf("Warning: audit queue not fully drained: %v\n", err)
		}
	}
	if a.retrier != nil {
		a.retrier.Stop()
	}
	if a.outbox != nil {
		if err := a.outbox.Close(); err != nil {
			fmt.Printf("Warning: %v\n", err)
		}
	}
	if err := a.pool.Close(); err != nil {
		fmt.Printf("Warning: closing database: %v\n", err)
	}
	_ = a.logger.Sync()
}
