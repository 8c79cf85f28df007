package serverapp

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"aerodb/internal/config"
	"aerodb/internal/dbexec"
	"aerodb/internal/denorm"
	"aerodb/internal/events"
	"aerodb/internal/filter"
	"aerodb/internal/gateway"
	"aerodb/internal/junction"
	"aerodb/internal/logging"
	"aerodb/internal/ops"
	"aerodb/internal/probe"
)

// Observer receives operation and storage round-trip measurements.
type Observer interface {
	ops.Observer
	gateway.Recorder
}

// BuildRegistry wires the data-access stack over db and returns the
// operation registry with the event publisher it uses. The caller closes
// the publisher. observer may be nil.
func BuildRegistry(ctx context.Context, cfg *config.Config, db *sql.DB, logger *logging.Logger, observer Observer) (*ops.Registry, events.Publisher, error) {
	dialect, err := cfg.Database.Dialect()
	if err != nil {
		return nil, nil, err
	}
	strategy, err := junction.ParseStrategy(cfg.Schema.StandMembership)
	if err != nil {
		return nil, nil, err
	}

	var recorder gateway.Recorder
	var opObserver ops.Observer
	if observer != nil {
		recorder, opObserver = observer, observer
	}

	reg := NewSchemaRegistry(cfg, logger.Logger)
	exec := dbexec.NewStandardExecutor(db)
	gw := gateway.New(exec, filter.NewCompiler(reg, dialect), logger.Logger, recorder)
	svc := denorm.New(gw, exec, junction.New(strategy), denorm.Config{
		Concurrency:       cfg.Reads.Concurrency,
		Snapshot:          cfg.Reads.Snapshot,
		StrictProjectJoin: cfg.Reads.StrictProjectJoin,
		AllocateRetries:   cfg.Writes.AllocateRetries,
	}, logger.Logger)

	prober, err := buildProber(ctx, cfg.Probe)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize imagery prober: %w", err)
	}
	publisher, err := buildPublisher(cfg.Events, logger.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize event publisher: %w", err)
	}

	logger.Info("operation registry ready",
		slog.String("dialect", string(dialect)),
		slog.String("stand_membership", strategy.String()),
		slog.String("probe", cfg.Probe.Driver),
		slog.Bool("events", cfg.Events.Enabled()),
	)

	return ops.NewRegistry(ops.Deps{
		Service:   svc,
		Prober:    prober,
		Publisher: publisher,
		Observer:  opObserver,
		Logger:    logger.Logger,
	}), publisher, nil
}

func buildProber(ctx context.Context, cfg config.ProbeConfig) (probe.Prober, error) {
	switch cfg.Driver {
	case "fs":
		return probe.NewFilesystem(cfg.Root, cfg.Kinds), nil
	case "s3":
		return probe.NewS3(ctx, probe.S3Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			Prefix:    cfg.S3.Prefix,
			PathStyle: cfg.S3.PathStyle,
			Kinds:     cfg.Kinds,
		})
	case "", "none":
		return probe.Noop{}, nil
	default:
		return nil, fmt.Errorf("unknown probe driver %q", cfg.Driver)
	}
}

func buildPublisher(cfg config.EventsConfig, logger *slog.Logger) (events.Publisher, error) {
	if !cfg.Enabled() {
		return events.Noop{}, nil
	}
	return events.Connect(cfg.NATSURL, cfg.SubjectPrefix, cfg.ClientName, logger)
}
