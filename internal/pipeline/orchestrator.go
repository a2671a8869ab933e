// Package pipeline runs one harvest: discover listing URLs, drop the
// already-known ones, scrape the rest sequentially, and checkpoint the
// dataset as results accumulate.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/miilabs/auction-harvester/internal/assemble"
	"github.com/miilabs/auction-harvester/internal/classify"
	"github.com/miilabs/auction-harvester/internal/dataset"
	"github.com/miilabs/auction-harvester/internal/discovery"
	"github.com/miilabs/auction-harvester/internal/extract"
	"github.com/miilabs/auction-harvester/internal/fetch"
	"github.com/miilabs/auction-harvester/internal/source"
)

// ErrNoURLs aborts a run whose discovery produced nothing. An empty
// sitemap means the discovery path is broken, not that the site has no
// auctions, and scraping zero URLs would silently mask that.
var ErrNoURLs = errors.New("discovery produced no listing URLs")

const defaultCheckpointEvery = 25

// Discoverer finds candidate listing URLs for a source.
type Discoverer interface {
	Discover(ctx context.Context, src *source.Source) (discovery.Result, error)
}

// PageFetcher renders one listing page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string, settle fetch.SettleFunc) (fetch.Page, error)
}

// StateStore is the persisted dataset the run merges into.
type StateStore interface {
	Load(ctx context.Context) error
	Known(key string) bool
	Size() int
	MergeAndPersist(ctx context.Context, batch []dataset.Record) error
}

// Config tunes one run.
type Config struct {
	// CheckpointEvery persists the buffer after this many new records.
	CheckpointEvery int
	// MaxPerRun overrides the source's own cap when positive.
	MaxPerRun int
}

// Report summarizes one run.
type Report struct {
	Source             string
	Discovered         int
	NewURLs            int
	Succeeded          int
	Failed             int
	Skipped            int
	InProgress         int
	Checkpoints        int
	CheckpointFailures int
	Duration           time.Duration
}

// Orchestrator wires one run's collaborators together.
type Orchestrator struct {
	cfg        Config
	discoverer Discoverer
	fetcher    PageFetcher
	store      StateStore
	logger     *zap.Logger
	now        func() time.Time
}

// New builds an Orchestrator.
func New(cfg Config, d Discoverer, f PageFetcher, store StateStore, logger *zap.Logger) *Orchestrator {
	if cfg.CheckpointEvery <= 0 {
		cfg.CheckpointEvery = defaultCheckpointEvery
	}
	return &Orchestrator{
		cfg:        cfg,
		discoverer: d,
		fetcher:    f,
		store:      store,
		logger:     logger,
		now:        time.Now,
	}
}

// Run executes one harvest for the source. Per-listing failures are
// counted, never fatal; only a broken store or an empty discovery
// aborts. Whatever is buffered when the loop ends is always offered to
// the store one last time, even on cancellation.
func (o *Orchestrator) Run(ctx context.Context, src *source.Source) (Report, error) {
	start := o.now()
	report := Report{Source: src.Name}

	if err := o.store.Load(ctx); err != nil {
		return report, fmt.Errorf("load dataset: %w", err)
	}
	o.logger.Info("dataset ready", zap.String("source", src.Name), zap.Int("known", o.store.Size()))

	found, err := o.discoverer.Discover(ctx, src)
	if err != nil {
		return report, fmt.Errorf("discover %s: %w", src.Name, err)
	}
	report.Discovered = len(found.URLs)
	if len(found.URLs) == 0 {
		return report, ErrNoURLs
	}

	targets := o.selectTargets(found.URLs, src)
	report.NewURLs = len(targets)
	o.logger.Info("targets selected",
		zap.String("source", src.Name),
		zap.Int("discovered", report.Discovered),
		zap.Int("new", report.NewURLs),
	)

	classifier := classify.New(src.Markers)
	settle := func(body []byte) time.Duration {
		return src.SettleWait[classifier.Classify(body)]
	}

	var buffer []dataset.Record
	for _, url := range targets {
		if ctx.Err() != nil {
			break
		}
		record, err := o.scrape(ctx, src, classifier, settle, url)
		switch {
		case err == nil:
			buffer = append(buffer, record)
			report.Succeeded++
			ListingsScraped.WithLabelValues(src.Name).Inc()
		case errors.Is(err, assemble.ErrInProgress):
			report.InProgress++
			ListingsSkipped.WithLabelValues(src.Name, "in_progress").Inc()
		case errors.Is(err, assemble.ErrNoSignal):
			report.Skipped++
			ListingsSkipped.WithLabelValues(src.Name, "no_signal").Inc()
		default:
			report.Failed++
			ListingsFailed.WithLabelValues(src.Name).Inc()
			o.logger.Warn("listing failed", zap.String("url", url), zap.Error(err))
		}

		if len(buffer) >= o.cfg.CheckpointEvery {
			if o.persist(ctx, src, buffer, &report) {
				buffer = buffer[:0]
			}
		}
	}

	// The final persist runs even when the context is already gone;
	// losing a paced hour of scraping to a late cancel is worse than
	// one more write.
	if len(buffer) > 0 {
		if o.persist(context.WithoutCancel(ctx), src, buffer, &report) {
			buffer = nil
		}
	}

	report.Duration = o.now().Sub(start)
	o.logger.Info("run finished",
		zap.String("source", src.Name),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
		zap.Int("in_progress", report.InProgress),
		zap.Int("checkpoints", report.Checkpoints),
		zap.Duration("duration", report.Duration),
	)
	if len(buffer) > 0 {
		return report, fmt.Errorf("run finished with %d unpersisted records", len(buffer))
	}
	return report, nil
}

// selectTargets drops known URLs and applies the per-run cap.
func (o *Orchestrator) selectTargets(urls []string, src *source.Source) []string {
	limit := src.MaxPerRun
	if o.cfg.MaxPerRun > 0 {
		limit = o.cfg.MaxPerRun
	}
	targets := make([]string, 0, len(urls))
	for _, url := range urls {
		if o.store.Known(url) {
			continue
		}
		targets = append(targets, url)
		if limit > 0 && len(targets) >= limit {
			break
		}
	}
	return targets
}

func (o *Orchestrator) scrape(ctx context.Context, src *source.Source, classifier *classify.Classifier, settle fetch.SettleFunc, url string) (dataset.Record, error) {
	page, err := o.fetcher.Fetch(ctx, url, settle)
	if err != nil {
		return dataset.Record{}, err
	}
	label := classifier.Classify(page.Body)
	if label == classify.LabelError {
		return dataset.Record{}, fmt.Errorf("site error page at %s", url)
	}
	doc, err := extract.NewDocument(page.Body)
	if err != nil {
		return dataset.Record{}, err
	}
	return assemble.Assemble(src, url, doc, label, o.now())
}

// persist merges the buffer into the store. A failed checkpoint keeps
// the buffer for the next attempt and is never fatal mid-run.
func (o *Orchestrator) persist(ctx context.Context, src *source.Source, buffer []dataset.Record, report *Report) bool {
	if err := o.store.MergeAndPersist(ctx, buffer); err != nil {
		report.CheckpointFailures++
		CheckpointFailures.WithLabelValues(src.Name).Inc()
		o.logger.Error("checkpoint failed",
			zap.String("source", src.Name), zap.Int("buffered", len(buffer)), zap.Error(err))
		return false
	}
	report.Checkpoints++
	CheckpointsPersisted.WithLabelValues(src.Name).Inc()
	o.logger.Info("checkpoint persisted",
		zap.String("source", src.Name), zap.Int("records", len(buffer)), zap.Int("total", o.store.Size()))
	return true
}
