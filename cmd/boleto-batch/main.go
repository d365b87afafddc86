package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/consorcioops/boleto-batch/internal/browser"
	"github.com/consorcioops/boleto-batch/internal/classify"
	"github.com/consorcioops/boleto-batch/internal/config"
	"github.com/consorcioops/boleto-batch/internal/filelink"
	"github.com/consorcioops/boleto-batch/internal/ingest"
	"github.com/consorcioops/boleto-batch/internal/logger"
	"github.com/consorcioops/boleto-batch/internal/orchestrator"
	"github.com/consorcioops/boleto-batch/internal/sink"
	"github.com/consorcioops/boleto-batch/internal/state"
)

var (
	flagConfig       string
	flagStartFrom    int
	flagMaxRecords   int
	flagBatchSize    int
	flagIgnoreResume bool
	flagDryRun       bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "boleto-batch",
		Short:         "Batch retrieval of consortium payment slips",
		Long:          "Processes a list of group/quota records against the consortium portal, downloading and filing each available payment slip.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	rootCmd.Flags().StringVarP(&flagConfig, "config", "c", "", "path to a .env configuration file")
	rootCmd.Flags().IntVar(&flagStartFrom, "start-from", 0, "1-based record position to start at")
	rootCmd.Flags().IntVar(&flagMaxRecords, "max-records", 0, "maximum number of records to process (0 = all)")
	rootCmd.Flags().IntVar(&flagBatchSize, "batch-size", 0, "override the configured batch size")
	rootCmd.Flags().BoolVar(&flagIgnoreResume, "ignore-resume", false, "ignore the persisted resume state and start from the top")
	rootCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "resolve skip and resume logic without opening any browser session")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if flagConfig != "" {
		if err := godotenv.Load(flagConfig); err != nil {
			return fmt.Errorf("load config file %s: %w", flagConfig, err)
		}
	} else {
		// Best effort: a missing default .env is fine
		_ = godotenv.Load()
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if flagBatchSize > 0 {
		cfg.Processing.BatchSize = flagBatchSize
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source := ingest.NewCSVSource(cfg.DataSource, log)
	records, err := source.Load(ctx)
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}
	records = ingest.Window(records, flagStartFrom, flagMaxRecords)
	if len(records) == 0 {
		log.Warn("No records to process")
		return nil
	}

	deps, cleanup, err := buildDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	// A manual window means the resume markers refer to a different slice;
	// honoring them would skip the wrong records.
	ignoreResume := flagIgnoreResume || flagStartFrom > 1

	orch := orchestrator.New(*deps)
	report, err := orch.Run(ctx, records, orchestrator.RunOptions{
		IgnoreResume: ignoreResume,
		DryRun:       flagDryRun,
	})
	if report != nil {
		log.WithFields(logrus.Fields{
			"run_id":       report.RunID,
			"total":        report.Summary.TotalRecords,
			"successful":   report.Summary.Successful,
			"failed":       report.Summary.Failed,
			"no_downloads": report.Summary.NoDownloads,
			"downloads":    report.Summary.TotalDownloads,
		}).Info("Run finished")
	}
	if errors.Is(err, context.Canceled) {
		log.Warn("Run interrupted")
		return nil
	}
	return err
}

func buildDependencies(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*orchestrator.Dependencies, func(), error) {
	tracker := state.NewTracker(cfg.Processing.ProcessedStateFile, cfg.Processing.ProcessedRetention, log)
	checkpoint := state.NewCheckpoint(cfg.Processing.ResumeStateFile, log)

	redisClient := initRedis(ctx, cfg.Redis, log)
	skipCache := state.NewSkipCache(redisClient, cfg.Redis.CacheTTL, log)

	deps := &orchestrator.Dependencies{
		Config:     cfg.Processing,
		Sessions:   browser.NewChromeFactory(cfg.Site, cfg.Browser, log),
		Classifier: classify.New(cfg.Classify),
		Tracker:    tracker,
		Checkpoint: checkpoint,
		SkipCache:  skipCache,
		Logger:     log,
	}

	if cfg.Storage.Enabled {
		store, err := sink.NewS3Store(ctx, cfg.Storage, log)
		if err != nil {
			return nil, nil, fmt.Errorf("initialize artifact store: %w", err)
		}
		deps.Store = store
	}
	if cfg.Notify.Enabled {
		deps.Notifier = sink.NewWebhookNotifier(cfg.Notify, log)
	}
	if cfg.AuditLog.Enabled {
		deps.AuditLog = sink.NewCSVAuditLog(cfg.AuditLog.Path, log)
	}
	if cfg.FileLink.Enabled {
		links, err := filelink.NewService(cfg.Processing.DownloadsDir, cfg.FileLink.BaseURL, cfg.FileLink.SecretKey, cfg.FileLink.Expiry)
		if err != nil {
			return nil, nil, fmt.Errorf("initialize file link service: %w", err)
		}
		deps.Links = links
	}

	cleanup := func() {
		if redisClient != nil {
			redisClient.Close()
		}
	}
	return deps, cleanup, nil
}

// initRedis connects the skip cache. An unreachable Redis degrades to the
// in-memory fallback instead of failing startup.
func initRedis(ctx context.Context, cfg config.RedisConfig, log *logrus.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		log.WithError(err).Warn("Redis unavailable, skip cache will use in-memory fallback")
		client.Close()
		return nil
	}

	log.WithField("addr", client.Options().Addr).Info("Redis connected")
	return client
}
