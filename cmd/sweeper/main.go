// Command sweeper runs the periodic sweeps once and exits. Schedule it from
// cron or a Kubernetes CronJob; concurrent runs are safe.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bizops-platform/internal/app"
	"bizops-platform/internal/config"
	"bizops-platform/internal/jobs"
	"bizops-platform/pkg/logger"
	"bizops-platform/pkg/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	job := flag.String("job", jobs.JobAll, fmt.Sprintf("sweep to run: %s or one of %v", jobs.JobAll, jobs.Jobs()))
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *job); err != nil {
		slog.Error("sweeper failed", "job", *job, "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, job string) error {
	if err := config.LoadDotenv(".env", ".env.local"); err != nil {
		return fmt.Errorf("dotenv: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := logger.NewWithFile(cfg.App.Env, logger.FileConfig{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	}).With("component", "sweeper")
	slog.SetDefault(log)
	ctx = logger.With(ctx, log)
	defer func() { _ = logger.ShutdownFlush(context.Background(), 2*time.Second) }()

	db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{MaxOpenConns: 5, MaxIdleConns: 2})
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer db.Close()

	gdb, err := utils.OpenGorm(db, false)
	if err != nil {
		return fmt.Errorf("gorm: %w", err)
	}

	rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer rdb.Close()

	svcs, err := app.Build(cfg, db, gdb)
	if err != nil {
		return err
	}

	sw := &jobs.Sweeper{
		Locker:        jobs.RedisLocker{RDB: rdb},
		FollowUps:     svcs.Telecalling,
		Tickets:       svcs.Support,
		Tasks:         svcs.Automation,
		AutoCloseDays: cfg.Jobs.SupportAutoCloseDays,
		LockTTL:       cfg.Jobs.SweepLockTTL,
	}
	results, err := sw.Run(ctx, job)
	for _, r := range results {
		log.Info("sweep result", "job", r.Job, "skipped", r.Skipped, "count", r.Count, "failed", r.Failed)
	}
	return err
}
