// Package metrics exposes simulation progress as prometheus metrics on an
// optional HTTP endpoint. It is off by default and entirely passive: the
// reported statistics never feed back into a run, so a disabled collector is
// a set of no-op methods rather than a different code path for callers.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cachesim/cachesim/pkg/types"
	"github.com/cachesim/cachesim/pkg/utils"
)

// Config controls the collector.
type Config struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// DefaultConfig returns the collector defaults (disabled).
func DefaultConfig() *Config {
	return &Config{
		Enabled:   false,
		Port:      9090,
		Path:      "/metrics",
		Namespace: "cachesim",
	}
}

// Collector aggregates per-configuration run metrics into its own registry.
type Collector struct {
	mu     sync.Mutex
	config *Config
	logger *utils.Logger

	registry *prometheus.Registry
	server   *http.Server

	requestsTotal *prometheus.CounterVec
	missesTotal   *prometheus.CounterVec
	rejectedTotal *prometheus.CounterVec
	bytesMiss     *prometheus.CounterVec
	missRatio     *prometheus.GaugeVec
	runSeconds    *prometheus.HistogramVec
	runsTotal     prometheus.Counter
}

// NewCollector builds a collector. With cfg.Enabled false every method is a
// no-op and no registry is created.
func NewCollector(cfg *Config, logger *utils.Logger) (*Collector, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = utils.NewLogger(utils.DefaultLoggerConfig())
	}
	c := &Collector{config: cfg, logger: logger.WithComponent("metrics")}
	if !cfg.Enabled {
		return c, nil
	}

	labels := []string{"config", "policy"}
	c.registry = prometheus.NewRegistry()
	c.requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Name:      "requests_total",
		Help:      "Requests replayed per configuration",
	}, labels)
	c.missesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Name:      "misses_total",
		Help:      "Cache misses per configuration",
	}, labels)
	c.rejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Name:      "rejected_total",
		Help:      "Requests rejected as larger than capacity",
	}, labels)
	c.bytesMiss = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Name:      "miss_bytes_total",
		Help:      "Bytes missed per configuration",
	}, labels)
	c.missRatio = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: cfg.Namespace,
		Name:      "miss_ratio",
		Help:      "Final miss ratio of the last completed run",
	}, labels)
	c.runSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: cfg.Namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall-clock duration of completed runs",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
	}, labels)
	c.runsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Name:      "runs_total",
		Help:      "Completed replay runs",
	})

	c.registry.MustRegister(
		c.requestsTotal, c.missesTotal, c.rejectedTotal,
		c.bytesMiss, c.missRatio, c.runSeconds, c.runsTotal,
	)
	return c, nil
}

// ObserveRun records the final statistics of one completed configuration.
func (c *Collector) ObserveRun(config, policy string, stats types.Statistics, elapsed time.Duration) {
	if c == nil || c.registry == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requestsTotal.WithLabelValues(config, policy).Add(float64(stats.Requests))
	c.missesTotal.WithLabelValues(config, policy).Add(float64(stats.Misses))
	c.rejectedTotal.WithLabelValues(config, policy).Add(float64(stats.Rejected))
	c.bytesMiss.WithLabelValues(config, policy).Add(float64(stats.BytesMiss))
	c.missRatio.WithLabelValues(config, policy).Set(stats.MissRatio())
	c.runSeconds.WithLabelValues(config, policy).Observe(elapsed.Seconds())
	c.runsTotal.Inc()
}

// Registry exposes the underlying registry, mainly for tests. Nil when the
// collector is disabled.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Serve starts the metrics HTTP endpoint in the background. No-op when
// disabled.
func (c *Collector) Serve() error {
	if c == nil || c.registry == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle(c.config.Path, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	c.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", c.config.Port),
		Handler: mux,
	}
	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			c.logger.Error("metrics server failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()
	c.logger.Info("metrics endpoint listening", map[string]interface{}{
		"port": c.config.Port,
		"path": c.config.Path,
	})
	return nil
}

// Shutdown stops the metrics endpoint if it was started.
func (c *Collector) Shutdown(ctx context.Context) error {
	if c == nil || c.server == nil {
		return nil
	}
	return c.server.Shutdown(ctx)
}
