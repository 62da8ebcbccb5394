package builder

import "github.com/prometheus/client_golang/prometheus"

// Observability counters from spec §6, plus a few the Retry Controller and
// Driver need to make adaptivity and recovery visible. Grounded on the
// teacher's index_manager.go vectors: package-level, labeled by the thing
// the metric is about, incremented at the call site rather than through a
// registered collector wrapper.
var (
	recordsScanned = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "onlinebuild",
		Name:      "records_scanned_total",
	}, []string{"index"})

	recordsIndexed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "onlinebuild",
		Name:      "records_indexed_total",
	}, []string{"index"})

	waitOnlineBuildIndex = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "onlinebuild",
		Name:      "wait_online_build_index_seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"index"})

	limitShrinks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "onlinebuild",
		Name:      "limit_shrinks_total",
	}, []string{"index"})

	rangeAlreadyBuiltRecoveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "onlinebuild",
		Name:      "range_already_built_recoveries_total",
	}, []string{"index"})

	currentLimit = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "onlinebuild",
		Name:      "limit",
	}, []string{"index"})
)

// Metrics binds the package-level vectors to one index, so callers deep in
// the build loop (chunk.go, retry.go, driver.go) don't have to carry the
// index label around separately.
type Metrics struct {
	index string
}

func NewMetrics(index string) *Metrics {
	return &Metrics{index: index}
}

func (m *Metrics) ScannedInc() { recordsScanned.WithLabelValues(m.index).Inc() }
func (m *Metrics) IndexedInc() { recordsIndexed.WithLabelValues(m.index).Inc() }

func (m *Metrics) ObserveWait(seconds float64) {
	waitOnlineBuildIndex.WithLabelValues(m.index).Observe(seconds)
}

func (m *Metrics) LimitShrinkInc() { limitShrinks.WithLabelValues(m.index).Inc() }

func (m *Metrics) RangeAlreadyBuiltRecoveryInc() {
	rangeAlreadyBuiltRecoveries.WithLabelValues(m.index).Inc()
}

func (m *Metrics) SetLimit(limit int) {
	currentLimit.WithLabelValues(m.index).Set(float64(limit))
}
