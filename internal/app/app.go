// Package app wires configuration, storage and the ledger services into one
// container shared by the HTTP server and the enrollctl CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-ledger/internal/repository"
	"github.com/noah-isme/enrollment-ledger/internal/service"
	"github.com/noah-isme/enrollment-ledger/pkg/cache"
	"github.com/noah-isme/enrollment-ledger/pkg/config"
	"github.com/noah-isme/enrollment-ledger/pkg/database"
	"github.com/noah-isme/enrollment-ledger/pkg/events"
	"github.com/noah-isme/enrollment-ledger/pkg/jobs"
	"github.com/noah-isme/enrollment-ledger/pkg/telemetry"
)

// Options adjusts how the container is assembled.
type Options struct {
	// WithIdempotency connects the Redis replay store when enabled in config.
	WithIdempotency bool
	// DefaultActor overrides the configured audit actor fallback.
	DefaultActor string
}

// Container holds every long-lived dependency of the process.
type Container struct {
	Config *config.Config
	Logger *zap.Logger
	DB     *sqlx.DB
	Tx     *repository.TxRunner

	Metrics     *service.MetricsService
	Auth        *service.AuthService
	Ledger      *service.EnrollmentService
	Grades      *service.GradeService
	Audit       *service.AuditService
	Queries     *service.QueryService
	Directory   *service.DirectoryService
	Seeder      *service.SeedService
	Idempotency *repository.IdempotencyRepository

	publisher         events.Publisher
	shutdownTelemetry func(context.Context) error
}

// Build opens the database and constructs the services. Callers must Close
// the container.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("setup telemetry: %w", err)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		_ = shutdown(ctx)
		return nil, fmt.Errorf("open database: %w", err)
	}

	c := &Container{
		Config:            cfg,
		Logger:            logger,
		DB:                db,
		Tx:                repository.NewTxRunner(db),
		Metrics:           service.NewMetricsService(),
		publisher:         events.Noop{},
		shutdownTelemetry: shutdown,
	}

	if cfg.Events.Enabled && len(cfg.Events.Brokers) > 0 {
		c.publisher = events.NewAsyncPublisher(ctx, events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic), jobs.Config{
			Workers:    cfg.Events.Workers,
			BufferSize: cfg.Events.Buffer,
			MaxRetries: 3,
			RetryDelay: 500 * time.Millisecond,
			Logger:     logger,
		})
		logger.Info("domain events enabled", zap.Strings("brokers", cfg.Events.Brokers), zap.String("topic", cfg.Events.Topic))
	}

	if opts.WithIdempotency && cfg.Idempotency.Enabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logger.Warn("idempotency store unavailable, replays disabled", zap.Error(err))
		} else {
			c.Idempotency = repository.NewIdempotencyRepository(client, logger)
		}
	}

	actorTag := cfg.Audit.DefaultActor
	if opts.DefaultActor != "" {
		actorTag = opts.DefaultActor
	}

	validate := validator.New()
	students := repository.NewStudentRepository(db)
	courses := repository.NewCourseRepository(db)
	enrollments := repository.NewEnrollmentRepository(db)
	audit := repository.NewGradeAuditRepository(db)
	oracle := service.NewIdentityOracle(students, courses)

	c.Auth = service.NewAuthService(service.AuthConfig{Secret: cfg.JWT.Secret, Expiry: cfg.JWT.Expiration})
	c.Ledger = service.NewEnrollmentService(enrollments, oracle, c.publisher, validate, logger, c.Metrics).WithDefaultActor(actorTag)
	c.Grades = service.NewGradeService(enrollments, audit, c.Tx, c.publisher, cfg.Grades, logger, c.Metrics).WithDefaultActor(actorTag)
	c.Audit = service.NewAuditService(audit, cfg.Audit, logger, c.Metrics)
	c.Queries = service.NewQueryService(enrollments, c.Metrics)
	c.Directory = service.NewDirectoryService(students, courses, c.Ledger, c.Tx, validate, logger, c.Metrics)
	c.Seeder = service.NewSeedService(c.Directory, c.Ledger, c.Grades, logger)

	return c, nil
}

// Close releases every resource in reverse order of acquisition.
func (c *Container) Close(ctx context.Context) error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.publisher != nil {
		keep(c.publisher.Close())
	}
	if c.Idempotency != nil {
		keep(c.Idempotency.Close())
	}
	if c.DB != nil {
		keep(c.DB.Close())
	}
	if c.shutdownTelemetry != nil {
		keep(c.shutdownTelemetry(ctx))
	}
	return firstErr
}
