// Package metrics exposes Prometheus collectors for the temperature and
// emission-measure engine. A nil *Metrics is valid and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/KI7MT/goes-xrs-tem/internal/response"
	"github.com/KI7MT/goes-xrs-tem/internal/xrs"
)

const namespace = "xrs_tem"

// Outcome labels for calculations.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics holds the engine collectors.
type Metrics struct {
	Samples       *prometheus.CounterVec // by satellite
	RatioFloor    prometheus.Counter
	QualityMasked prometheus.Counter
	Extrapolated  prometheus.Counter
	Segments      *prometheus.CounterVec // by detector pair
	Calculations  *prometheus.CounterVec // by outcome
	TableLoads    prometheus.Counter
	Duration      prometheus.Histogram
	RowsWritten   *prometheus.CounterVec // by sink
}

// New creates the collectors and registers them on reg. Use a fresh
// registry per process; registering twice on one registry fails.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_total",
			Help:      "Flux samples converted to temperature and emission measure.",
		}, []string{"satellite"}),
		RatioFloor: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratio_floor_total",
			Help:      "Samples whose flux ratio was replaced by the floor value.",
		}),
		QualityMasked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quality_masked_total",
			Help:      "Samples masked by a non-zero quality code.",
		}),
		Extrapolated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extrapolated_total",
			Help:      "Samples evaluated outside the response table domain.",
		}),
		Segments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detector_segment_samples_total",
			Help:      "Samples computed per GOES-R detector pair.",
		}, []string{"detector"}),
		Calculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calculations_total",
			Help:      "Series calculations, partitioned by outcome.",
		}, []string{"outcome"}),
		TableLoads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "response_table_loads_total",
			Help:      "Response table artifact loads.",
		}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "calculation_seconds",
			Help:      "Series calculation latency in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		RowsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "Diagnostic rows written, partitioned by sink.",
		}, []string{"sink"}),
	}

	collectors := []prometheus.Collector{
		m.Samples, m.RatioFloor, m.QualityMasked, m.Extrapolated,
		m.Segments, m.Calculations, m.TableLoads, m.Duration, m.RowsWritten,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveSeries records one finished calculation.
func (m *Metrics) ObserveSeries(d *xrs.DiagnosticSeries, elapsed time.Duration) {
	if m == nil || d == nil {
		return
	}
	m.Calculations.WithLabelValues(OutcomeSuccess).Inc()
	m.Duration.Observe(elapsed.Seconds())
	m.Samples.WithLabelValues(satelliteLabel(d.Satellite)).Add(float64(d.Len()))

	var floor, masked, extrap int
	perDetector := map[int8]int{}
	for _, p := range d.Points {
		if p.Flags.Has(xrs.FlagRatioFloor) {
			floor++
		}
		if p.Flags.Has(xrs.FlagQualityMasked) {
			masked++
		}
		if p.Flags.Has(xrs.FlagExtrapolated) {
			extrap++
		}
		if p.Detector != xrs.NoDetector {
			perDetector[p.Detector]++
		}
	}
	m.RatioFloor.Add(float64(floor))
	m.QualityMasked.Add(float64(masked))
	m.Extrapolated.Add(float64(extrap))
	for det, n := range perDetector {
		m.Segments.WithLabelValues(detectorLabel(det)).Add(float64(n))
	}
}

// ObserveError records a failed calculation.
func (m *Metrics) ObserveError(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Calculations.WithLabelValues(OutcomeError).Inc()
	m.Duration.Observe(elapsed.Seconds())
}

// TableLoaded counts a response table load.
func (m *Metrics) TableLoaded(string) {
	if m == nil {
		return
	}
	m.TableLoads.Inc()
}

// Written counts rows written to a sink ("clickhouse", "parquet", "csv").
func (m *Metrics) Written(sink string, n int) {
	if m == nil {
		return
	}
	m.RowsWritten.WithLabelValues(sink).Add(float64(n))
}

func satelliteLabel(n int) string {
	if n <= 0 {
		return "unknown"
	}
	return "goes" + strconv.Itoa(n)
}

func detectorLabel(d int8) string {
	if d < 0 || response.DetectorPair(d) > response.A2B2 {
		return "unknown"
	}
	return response.DetectorPair(d).String()
}
