package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ListingsScraped tracks listings successfully assembled per source.
	ListingsScraped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_listings_scraped_total",
		Help: "The total number of listings successfully scraped.",
	}, []string{"source"})
	// ListingsFailed tracks per-listing failures per source.
	ListingsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_listings_failed_total",
		Help: "The total number of listings that failed to scrape.",
	}, []string{"source"})
	// ListingsSkipped tracks discarded and in-progress listings.
	ListingsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_listings_skipped_total",
		Help: "The total number of listings skipped without a record.",
	}, []string{"source", "reason"})
	// CheckpointsPersisted tracks successful dataset checkpoints.
	CheckpointsPersisted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_checkpoints_total",
		Help: "The total number of dataset checkpoints persisted.",
	}, []string{"source"})
	// CheckpointFailures tracks persistence attempts that failed.
	CheckpointFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_checkpoint_failures_total",
		Help: "The total number of dataset checkpoint attempts that failed.",
	}, []string{"source"})
)
