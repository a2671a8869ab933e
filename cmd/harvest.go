package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	gstorage "cloud.google.com/go/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/miilabs/auction-harvester/internal/api"
	"github.com/miilabs/auction-harvester/internal/config"
	"github.com/miilabs/auction-harvester/internal/dataset"
	"github.com/miilabs/auction-harvester/internal/discovery"
	"github.com/miilabs/auction-harvester/internal/fetch"
	"github.com/miilabs/auction-harvester/internal/logging"
	"github.com/miilabs/auction-harvester/internal/notify"
	"github.com/miilabs/auction-harvester/internal/pipeline"
	"github.com/miilabs/auction-harvester/internal/runlog"
	"github.com/miilabs/auction-harvester/internal/source"
	"github.com/miilabs/auction-harvester/internal/storage"
	"github.com/miilabs/auction-harvester/internal/storage/gcs"
	"github.com/miilabs/auction-harvester/internal/storage/local"
)

func newHarvestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "harvest [source...]",
		Short: "Run one harvest for the named sources (default: all).",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			logger, err := logging.New(logging.Options{
				Development: cfg.Logging.Development,
				Level:       cfg.Logging.Level,
			})
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			sources, err := resolveSources(args)
			if err != nil {
				return err
			}
			return runHarvest(cmd.Context(), cfg, logger, sources)
		},
	}
}

func newSourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the registered auction sources.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, src := range source.All() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", src.Name, src.SitemapURL)
			}
			return nil
		},
	}
}

func resolveSources(names []string) ([]*source.Source, error) {
	if len(names) == 0 {
		return source.All(), nil
	}
	sources := make([]*source.Source, 0, len(names))
	for _, name := range names {
		src, err := source.ByName(name)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func runHarvest(ctx context.Context, cfg config.Config, logger *zap.Logger, sources []*source.Source) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	blobs, closeBlobs, err := buildBlobStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBlobs()

	ledger, err := buildLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer ledger.Close()

	notifier, closeNotifier, err := buildNotifier(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeNotifier()

	if cfg.Server.Enabled {
		server := api.NewServer(logger)
		go func() {
			if err := server.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	var firstErr error
	for _, src := range sources {
		if err := harvestSource(ctx, cfg, logger, blobs, ledger, notifier, src); err != nil {
			logger.Error("harvest failed", zap.String("source", src.Name), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
		if ctx.Err() != nil {
			break
		}
	}
	return firstErr
}

func harvestSource(
	ctx context.Context,
	cfg config.Config,
	logger *zap.Logger,
	blobs storage.BlobStore,
	ledger *runlog.Ledger,
	notifier *notify.Notifier,
	src *source.Source,
) error {
	store, err := dataset.NewStore(blobs, dataset.StoreConfig{
		ObjectKey:       src.DatasetObject,
		BackupPrefix:    src.BackupPrefix,
		BackupRetention: cfg.Harvest.BackupRetention,
	}, logger)
	if err != nil {
		return err
	}

	fetcher, err := fetch.New(fetch.Config{
		UserAgent:         cfg.Harvest.UserAgent,
		NavigationTimeout: cfg.Harvest.NavigationTimeout,
		PaceDelay:         src.PaceDelay,
		MaxTabs:           1,
	}, fetch.FixedRetryPolicy{Attempts: 3, Delay: 2 * time.Second}, logger)
	if err != nil {
		return err
	}
	defer fetcher.Close()

	discoverer := discovery.New(discovery.Config{
		UserAgent: cfg.Harvest.UserAgent,
		Timeout:   cfg.Harvest.SitemapTimeout,
	}, fetcher, logger)

	orchestrator := pipeline.New(pipeline.Config{
		CheckpointEvery: cfg.Harvest.CheckpointEvery,
		MaxPerRun:       cfg.Harvest.MaxPerRun,
	}, discoverer, fetcher, store, logger)

	startedAt := time.Now()
	report, runErr := orchestrator.Run(ctx, src)

	if err := ledger.Record(context.WithoutCancel(ctx), startedAt, report, runErr); err != nil {
		logger.Warn("run ledger write failed", zap.String("source", src.Name), zap.Error(err))
	}
	if runErr == nil && report.Succeeded > 0 {
		if _, err := notifier.DatasetRefreshed(ctx, notify.RefreshEvent{
			Source:     src.Name,
			ObjectKey:  src.DatasetObject,
			Records:    store.Size(),
			NewRecords: report.Succeeded,
			FinishedAt: time.Now(),
		}); err != nil {
			logger.Warn("refresh notification failed", zap.String("source", src.Name), zap.Error(err))
		}
	}
	return runErr
}

func buildBlobStore(ctx context.Context, cfg config.Config) (storage.BlobStore, func(), error) {
	switch cfg.Storage.Backend {
	case "gcs":
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("create storage client: %w", err)
		}
		blobs, err := gcs.New(client, gcs.Config{Bucket: cfg.Storage.Bucket})
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		return blobs, func() { _ = client.Close() }, nil
	case "local":
		blobs, err := local.New(local.Config{BaseDir: cfg.Storage.Dir})
		if err != nil {
			return nil, nil, err
		}
		return blobs, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func buildLedger(ctx context.Context, cfg config.Config) (*runlog.Ledger, error) {
	if cfg.Database.DSN == "" {
		return nil, nil
	}
	return runlog.New(ctx, runlog.Config{
		DSN:   cfg.Database.DSN,
		Table: cfg.Database.Table,
	})
}

func buildNotifier(ctx context.Context, cfg config.Config) (*notify.Notifier, func(), error) {
	if cfg.PubSub.Topic == "" {
		return notify.New(nil), func() {}, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	publisher := notify.NewPubSubPublisher(client.Publisher(cfg.PubSub.Topic))
	return notify.New(publisher), func() { _ = client.Close() }, nil
}
