package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransformDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "versa_transform_seconds",
		Help:    "Time spent transforming a source file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	FilesTransformedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "versa_files_transformed_total",
		Help: "Total number of transformed source files, by file kind.",
	}, []string{"kind"})

	FileFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "versa_file_failures_total",
		Help: "Total number of source files that failed to transform, by error class.",
	}, []string{"reason"})

	ResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "versa_resolutions_total",
		Help: "Total number of specifier resolutions, by outcome.",
	}, []string{"outcome"})

	ManifestCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "versa_manifest_cache_hits_total",
		Help: "Total number of package manifests served from the cache.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "versa_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	HMRClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "versa_hmr_clients",
		Help: "Current number of connected HMR clients.",
	})
)
