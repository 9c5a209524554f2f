package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/vishaldhankecha/prodigy-api/internal/config"
	"github.com/vishaldhankecha/prodigy-api/internal/domain"
	"github.com/vishaldhankecha/prodigy-api/internal/outbox"
	persistence "github.com/vishaldhankecha/prodigy-api/internal/persistence/postgres"
	"github.com/vishaldhankecha/prodigy-api/internal/seed"
)

type regenerator interface {
	Regenerate(ctx context.Context, programID int64) (domain.ScheduleDiff, error)
	RegenerateAll(ctx context.Context) error
}

// app holds the collaborators shared by every subcommand. connect and newRegenerator are swapped
// out in tests.
type app struct {
	cfg            config.Config
	logger         *slog.Logger
	connect        func(ctx context.Context, url string) (*pgxpool.Pool, error)
	newRegenerator func(pool *pgxpool.Pool) regenerator
}

func newApp(cfg config.Config, logger *slog.Logger) *app {
	return &app{
		cfg:     cfg,
		logger:  logger,
		connect: pgxpool.New,
		newRegenerator: func(pool *pgxpool.Pool) regenerator {
			repo := persistence.NewRepository(pool, persistence.WithLockTimeout(cfg.LockTimeout))
			return domain.NewReconciler(repo, domain.WithReconcilerLogger(logger))
		},
	}
}

func (a *app) withPool(ctx context.Context, fn func(*pgxpool.Pool) error) error {
	pool, err := a.connect(ctx, a.cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	if pool != nil {
		defer pool.Close()
	}
	return fn(pool)
}

func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "scheduler",
		Short:         "Out-of-band maintenance for program schedules",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newMigrateCommand(a))
	cmd.AddCommand(newSeedCommand(a))
	cmd.AddCommand(newRegenerateCommand(a))
	cmd.AddCommand(newDLQReplayCommand(a))
	return cmd
}

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withPool(cmd.Context(), func(pool *pgxpool.Pool) error {
				applied, err := persistence.Migrate(cmd.Context(), pool, a.logger)
				if err != nil {
					return err
				}
				a.logger.Info("migrations complete", "applied", len(applied))
				return nil
			})
		},
	}
}

func newSeedCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Replace all program data with the 30-day wellness program",
		Long: `Wipe programs, users, enrollments, schedules and progress, then load the
30-Day Wellness Program with one ACTIVE test user and materialise its schedule.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withPool(cmd.Context(), func(pool *pgxpool.Pool) error {
				seeder := seed.NewSeeder(pool, a.newRegenerator(pool), a.logger)
				_, err := seeder.Run(cmd.Context(), seed.WellnessProgram())
				return err
			})
		},
	}
}

func newRegenerateCommand(a *app) *cobra.Command {
	var programID int64

	cmd := &cobra.Command{
		Use:   "regenerate",
		Short: "Reconcile scheduled activities with the current rules",
		Long: `Recompute every program's scheduled activities from its recurrence rules.

With --program-id only that program is reconciled. Without it, programs are
processed in ascending id order and the first failure aborts the run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("program-id") && programID <= 0 {
				return fmt.Errorf("--program-id must be a positive integer")
			}
			return a.withPool(cmd.Context(), func(pool *pgxpool.Pool) error {
				r := a.newRegenerator(pool)
				if programID > 0 {
					_, err := r.Regenerate(cmd.Context(), programID)
					return err
				}
				return r.RegenerateAll(cmd.Context())
			})
		},
	}
	cmd.Flags().Int64Var(&programID, "program-id", 0, "reconcile a single program")
	return cmd
}

func newDLQReplayCommand(a *app) *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "dlq-replay",
		Short: "Requeue dead-lettered events into the outbox",
		Long: `Move due outbox_dlq entries back into the outbox for the API's dispatcher to publish.
Entries that exceeded DLQ_MAX_RETRIES are quarantined instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if batchSize <= 0 {
				return fmt.Errorf("--batch-size must be a positive integer")
			}
			return a.withPool(cmd.Context(), func(pool *pgxpool.Pool) error {
				replayer := outbox.NewReplayer(pool, a.cfg.DLQMaxRetries, a.cfg.DLQBaseDelay, a.logger)
				requeued, err := replayer.RunOnce(cmd.Context(), batchSize)
				a.logger.Info("dlq replay finished", "requeued", requeued)
				return err
			})
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", a.cfg.DLQBatchSize, "maximum entries to process")
	return cmd
}
