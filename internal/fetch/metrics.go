package fetch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// FetchRetries tracks page-load attempts beyond the first.
var FetchRetries = promauto.NewCounter(prometheus.CounterOpts{
	Name: "harvester_fetch_retries_total",
	Help: "The total number of page fetches that were retried.",
})
