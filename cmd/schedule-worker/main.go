package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicore/clinic-scheduling/internal/config"
	"github.com/clinicore/clinic-scheduling/internal/db"
	redisclient "github.com/clinicore/clinic-scheduling/internal/redis"
	"github.com/clinicore/clinic-scheduling/internal/scheduling"
)

const jobName = "schedule-maintenance"

func main() {
	cfg, err := config.Load()
	if err != nil {
		errLogger := zerolog.New(os.Stderr)
		errLogger.Fatal().Err(err).Msg("config load error")
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("component", "schedule-worker").Logger()
	if cfg.Env == "dev" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Str("component", "schedule-worker").Logger()
	}
	logger.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("schedule-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	if err := db.Migrate(rootCtx, pgPool); err != nil {
		logger.Fatal().Err(err).Msg("migration error")
	}

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	repo := scheduling.NewPgRepository(pgPool, logger)
	generator := scheduling.NewGenerator(repo, scheduling.GeneratorConfig{
		RestDay:     cfg.RestDay,
		SlotMinutes: cfg.SlotMinutes,
		Sessions: []scheduling.SessionBlock{
			{Start: cfg.MorningStart, End: cfg.MorningEnd},
			{Start: cfg.AfternoonStart, End: cfg.AfternoonEnd},
		},
	}, logger)
	locker := redisclient.NewRedisJobLocker(rdb, cfg.JobLockTTL)

	// Run once at startup
	runOnce(rootCtx, locker, generator, cfg, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping schedule-worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, locker, generator, cfg, logger)
		}
	}
}

// runOnce holds the job lock across one generate+purge pass. Losing the lock
// means another worker is already on it; the run is skipped, not failed,
// since generation is idempotent anyway.
func runOnce(ctx context.Context, locker redisclient.Locker, generator *scheduling.Generator, cfg config.Config, logger zerolog.Logger) {
	start := time.Now()

	err := locker.WithJobLock(ctx, jobName, func(lockCtx context.Context) error {
		res, err := generator.GenerateForHorizon(lockCtx, time.Now(), cfg.HorizonDays)
		if err != nil {
			return err
		}
		logger.Info().Int("created", res.Created).Int("skipped", res.Skipped).Msg("generation pass done")

		deleted, err := generator.PurgeOlderThan(lockCtx, cfg.RetentionDays)
		if err != nil {
			return err
		}
		logger.Info().Int64("deleted", deleted).Msg("purge pass done")
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			logger.Info().Msg("another worker holds the job lock, skipping run")
			return
		}
		logger.Error().Err(err).Msg("maintenance run error")
		return
	}

	logger.Info().Dur("took", time.Since(start)).Msg("maintenance run complete")
}
