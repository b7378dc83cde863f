package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "agbprep"

// AcquisitionCollector bundles the acquisition metrics.
type AcquisitionCollector struct {
	gatherer prometheus.Gatherer

	Plots         *prometheus.CounterVec
	Bands         *prometheus.CounterVec
	BytesTotal    prometheus.Counter
	QueryDuration *prometheus.HistogramVec
	LastRun       prometheus.Gauge
}

// NewAcquisitionCollector registers the acquisition metrics against reg,
// defaulting to the global registry when nil.
func NewAcquisitionCollector(reg prometheus.Registerer) (*AcquisitionCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	plots, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "plots_total",
		Help:      "Plots handled by the acquisition driver, labeled by outcome.",
	}, []string{"outcome"}), "plots_total")
	if err != nil {
		return nil, err
	}
	bands, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "band_downloads_total",
		Help:      "Band extracts attempted, labeled by band and outcome.",
	}, []string{"band", "outcome"}), "band_downloads_total")
	if err != nil {
		return nil, err
	}
	bytesTotal, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "downloaded_bytes_total",
		Help:      "Raster bytes written to the imagery directory.",
	}), "downloaded_bytes_total")
	if err != nil {
		return nil, err
	}
	queryDuration, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "catalog_query_duration_seconds",
		Help:      "Imagery catalog search latency in seconds.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"result"}), "catalog_query_duration_seconds")
	if err != nil {
		return nil, err
	}
	lastRun, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last acquisition run finished.",
	}), "last_run_timestamp_seconds")
	if err != nil {
		return nil, err
	}

	return &AcquisitionCollector{
		gatherer:      gatherer,
		Plots:         plots,
		Bands:         bands,
		BytesTotal:    bytesTotal,
		QueryDuration: queryDuration,
		LastRun:       lastRun,
	}, nil
}

// ObservePlot counts one plot outcome.
func (c *AcquisitionCollector) ObservePlot(outcome string) {
	if c == nil || c.Plots == nil {
		return
	}
	c.Plots.WithLabelValues(outcome).Inc()
}

// ObserveBand counts one band outcome and the bytes it wrote.
func (c *AcquisitionCollector) ObserveBand(band, outcome string, bytes int64) {
	if c == nil {
		return
	}
	if c.Bands != nil {
		c.Bands.WithLabelValues(band, outcome).Inc()
	}
	if c.BytesTotal != nil && bytes > 0 {
		c.BytesTotal.Add(float64(bytes))
	}
}

// ObserveQuery records one catalog search.
func (c *AcquisitionCollector) ObserveQuery(elapsed time.Duration, result string) {
	if c == nil || c.QueryDuration == nil {
		return
	}
	c.QueryDuration.WithLabelValues(result).Observe(elapsed.Seconds())
}

// MarkRun stamps the last-run gauge.
func (c *AcquisitionCollector) MarkRun(at time.Time) {
	if c == nil || c.LastRun == nil {
		return
	}
	c.LastRun.Set(float64(at.Unix()))
}

// WriteTextfile writes every gathered metric to path in the text exposition
// format. An empty path is a no-op.
func (c *AcquisitionCollector) WriteTextfile(path string) error {
	if c == nil || strings.TrimSpace(path) == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if err := prometheus.WriteToTextfile(path, gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
