// Package metrics records run metrics in a private Prometheus registry.
//
// The sync is a batch job, so metrics are written to a node_exporter
// textfile at the end of a run instead of being served.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the collectors for one run. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	registry *prometheus.Registry

	quotaUnits     *prometheus.CounterVec
	quotaExhausted prometheus.Gauge
	cacheLookups   *prometheus.CounterVec
	filterVideos   *prometheus.GaugeVec
	inserts        *prometheus.CounterVec
	runDuration    prometheus.Gauge
	lastRun        prometheus.Gauge
}

// NewRecorder creates and registers all collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		quotaUnits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "playlist_sync_quota_units_total",
				Help: "Quota units spent, by API method.",
			},
			[]string{"method"},
		),
		quotaExhausted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "playlist_sync_quota_exhausted",
			Help: "1 if the run stopped early because quota ran out.",
		}),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "playlist_sync_cache_lookups_total",
				Help: "Cache lookups, by cache and result.",
			},
			[]string{"cache", "result"},
		),
		filterVideos: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "playlist_sync_filter_videos",
				Help: "Videos seen by the filter in the last run, by outcome.",
			},
			[]string{"outcome"},
		),
		inserts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "playlist_sync_inserts_total",
				Help: "Playlist insert outcomes.",
			},
			[]string{"outcome"},
		),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "playlist_sync_run_duration_seconds",
			Help: "Wall time of the last run.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "playlist_sync_last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
	}
	r.registry.MustRegister(
		r.quotaUnits,
		r.quotaExhausted,
		r.cacheLookups,
		r.filterVideos,
		r.inserts,
		r.runDuration,
		r.lastRun,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// QuotaUsed adds units for method.
func (r *Recorder) QuotaUsed(method string, units int) {
	if r == nil {
		return
	}
	r.quotaUnits.WithLabelValues(method).Add(float64(units))
}

// QuotaExhausted flags the run as quota-halted.
func (r *Recorder) QuotaExhausted() {
	if r == nil {
		return
	}
	r.quotaExhausted.Set(1)
}

// CacheLookup counts a hit or miss on cache.
func (r *Recorder) CacheLookup(cache string, hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(cache, result).Inc()
}

// FilterStats publishes the filter counters of the last run.
func (r *Recorder) FilterStats(stats map[string]int) {
	if r == nil {
		return
	}
	for outcome, n := range stats {
		r.filterVideos.WithLabelValues(outcome).Set(float64(n))
	}
}

// InsertOutcome counts one playlist insert outcome.
func (r *Recorder) InsertOutcome(outcome string) {
	if r == nil {
		return
	}
	r.inserts.WithLabelValues(outcome).Inc()
}

// RunFinished records the run's duration and completion time.
func (r *Recorder) RunFinished(started, finished time.Time) {
	if r == nil {
		return
	}
	r.runDuration.Set(finished.Sub(started).Seconds())
	r.lastRun.Set(float64(finished.Unix()))
}

// WriteTextfile writes all metrics in the text exposition format to path.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
