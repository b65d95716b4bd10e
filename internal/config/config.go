// Package config loads and validates the simulation configuration: the
// trace source, the cache configurations to replay it against, driver
// options and the optional MRC estimation pass. Files are YAML, loaded
// through viper so CACHESIM_-prefixed environment variables override any
// key without editing the file.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/cachesim/cachesim/internal/cache"
	"github.com/cachesim/cachesim/internal/metrics"
	"github.com/cachesim/cachesim/internal/mrc"
	"github.com/cachesim/cachesim/internal/trace"
	simerrors "github.com/cachesim/cachesim/pkg/errors"
	"github.com/cachesim/cachesim/pkg/types"
	"github.com/cachesim/cachesim/pkg/utils"
)

// PrintSentinel is the parameter value that asks for the effective
// configuration to be reported instead of running requests.
const PrintSentinel = "print"

// Configuration is the complete simulation configuration.
type Configuration struct {
	Global  GlobalConfig   `yaml:"global"`
	Trace   TraceConfig    `yaml:"trace"`
	Caches  []CacheSpec    `yaml:"caches"`
	Driver  DriverConfig   `yaml:"driver"`
	MRC     MRCConfig      `yaml:"mrc"`
	Metrics metrics.Config `yaml:"metrics"`
}

// GlobalConfig holds settings that apply to the whole process.
type GlobalConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// TraceConfig selects the request source. Exactly one of Path or Synthetic
// is used; a non-empty Path wins.
type TraceConfig struct {
	Path      string                `yaml:"path"`
	Synthetic trace.SyntheticConfig `yaml:"synthetic"`
}

// CacheSpec describes one cache configuration to simulate. Capacity accepts
// human-readable sizes ("64MB") or plain byte counts.
type CacheSpec struct {
	Name     string            `yaml:"name"`
	Policy   string            `yaml:"policy"`
	Capacity string            `yaml:"capacity"`
	Params   map[string]string `yaml:"params"`
}

// DriverConfig holds replay options.
type DriverConfig struct {
	WarmupRequests uint64 `yaml:"warmup_requests"`
	Workers        int    `yaml:"workers"`
	Strict         bool   `yaml:"strict"`
	Output         string `yaml:"output"` // "table" or "csv"
	OutputFile     string `yaml:"output_file"`
}

// MRCConfig holds the estimator options.
type MRCConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Mode       mrc.Mode `yaml:"mode"`
	Rate       float64  `yaml:"rate"`
	MaxSamples int      `yaml:"max_samples"`
	Points     int      `yaml:"points"`
	OutputFile string   `yaml:"output_file"`
}

// NewDefault returns a configuration with sensible defaults: one LRU cache
// over a small zipf workload, table output, estimator off.
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel:  "INFO",
			LogFormat: "text",
		},
		Trace: TraceConfig{
			Synthetic: trace.SyntheticConfig{
				Distribution: trace.DistZipf,
				Objects:      100000,
				Requests:     1000000,
				ObjectSize:   4096,
				ZipfS:        1.08,
				Seed:         1,
			},
		},
		Caches: []CacheSpec{
			{Name: "lru", Policy: "lru", Capacity: "64MB"},
		},
		Driver: DriverConfig{
			Output: "table",
		},
		MRC: MRCConfig{
			Enabled:    false,
			Mode:       mrc.ModeFixedRate,
			Rate:       0.01,
			MaxSamples: 8192,
			Points:     100,
		},
		Metrics: *metrics.DefaultConfig(),
	}
}

// Load reads the configuration file at path (optional) merged with
// CACHESIM_ environment overrides on top of the defaults.
func Load(path string) (*Configuration, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// Seed viper with the defaults so every key is known to it; known
	// keys are what AutomaticEnv overrides apply to.
	defaults, err := yaml.Marshal(NewDefault())
	if err != nil {
		return nil, simerrors.Wrap(simerrors.ErrCodeInternalError,
			"failed to render default configuration", err).WithComponent("config")
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, simerrors.Wrap(simerrors.ErrCodeInternalError,
			"failed to seed default configuration", err).WithComponent("config")
	}

	v.SetEnvPrefix("CACHESIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		expanded, err := utils.ExpandPath(path)
		if err != nil {
			return nil, simerrors.Wrap(simerrors.ErrCodeConfigLoad,
				"invalid configuration path", err).
				WithComponent("config").WithDetail("path", path)
		}
		v.SetConfigFile(expanded)
		if err := v.MergeInConfig(); err != nil {
			return nil, simerrors.Wrap(simerrors.ErrCodeConfigLoad,
				"failed to read configuration file", err).
				WithComponent("config").WithDetail("path", path)
		}
	}

	cfg := NewDefault()
	// Round-trip through YAML so the yaml struct tags stay the single
	// source of truth for key names.
	merged, err := yaml.Marshal(v.AllSettings())
	if err != nil {
		return nil, simerrors.Wrap(simerrors.ErrCodeConfigLoad,
			"failed to merge configuration", err).WithComponent("config")
	}
	if err := yaml.Unmarshal(merged, cfg); err != nil {
		return nil, simerrors.Wrap(simerrors.ErrCodeConfigLoad,
			"failed to parse configuration", err).
			WithComponent("config").WithDetail("path", path)
	}
	return cfg, nil
}

// Validate checks the configuration before any cache is built. Policy
// existence and parameter ranges are checked here so a bad configuration
// fails before the first request.
func (c *Configuration) Validate() error {
	bad := func(format string, args ...interface{}) error {
		return simerrors.Newf(simerrors.ErrCodeConfigValidation, format, args...).
			WithComponent("config")
	}

	switch strings.ToUpper(c.Global.LogLevel) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return bad("invalid log_level %q", c.Global.LogLevel)
	}
	switch c.Global.LogFormat {
	case "text", "json":
	default:
		return bad("invalid log_format %q", c.Global.LogFormat)
	}

	if len(c.Caches) == 0 {
		return bad("at least one cache configuration is required")
	}
	names := make(map[string]bool, len(c.Caches))
	for i := range c.Caches {
		spec := &c.Caches[i]
		if spec.Name == "" {
			spec.Name = fmt.Sprintf("%s-%d", spec.Policy, i)
		}
		if names[spec.Name] {
			return bad("duplicate cache name %q", spec.Name)
		}
		names[spec.Name] = true
		if _, ok := cache.PolicyDefaults(spec.Policy); !ok {
			return simerrors.Newf(simerrors.ErrCodeUnknownPolicy,
				"unknown policy %q (registered: %s)",
				spec.Policy, strings.Join(cache.PolicyNames(), ", ")).
				WithComponent("config")
		}
		if _, err := ParseSize(spec.Capacity); err != nil {
			return bad("cache %q: bad capacity %q", spec.Name, spec.Capacity)
		}
	}

	switch c.Driver.Output {
	case "table", "csv":
	default:
		return bad("invalid driver output %q", c.Driver.Output)
	}

	if c.MRC.Enabled {
		switch c.MRC.Mode {
		case mrc.ModeFixedRate, mrc.ModeFixedSize:
		default:
			return bad("invalid mrc mode %q", c.MRC.Mode)
		}
	}
	return nil
}

// CacheConfigs resolves the configured caches into kernel configurations, filling each
// policy's registered parameter defaults under the explicit values.
func (c *Configuration) CacheConfigs() ([]cache.Config, error) {
	out := make([]cache.Config, 0, len(c.Caches))
	for i := range c.Caches {
		spec := &c.Caches[i]
		capBytes, err := ParseSize(spec.Capacity)
		if err != nil {
			return nil, simerrors.Wrap(simerrors.ErrCodeConfigValidation,
				"bad capacity for cache "+spec.Name, err).WithComponent("config")
		}
		defaults, _ := cache.PolicyDefaults(spec.Policy)
		params := make(map[string]string, len(defaults)+len(spec.Params))
		for k, val := range defaults {
			params[k] = val
		}
		for k, val := range spec.Params {
			params[k] = val
		}
		out = append(out, cache.Config{
			Name:          spec.Name,
			Policy:        spec.Policy,
			CapacityBytes: capBytes,
			Params:        params,
		})
	}
	return out, nil
}

// EstimatorConfig resolves the MRC section into an estimator config.
func (c *Configuration) EstimatorConfig() mrc.Config {
	return mrc.Config{
		Mode:       c.MRC.Mode,
		Rate:       c.MRC.Rate,
		MaxSamples: c.MRC.MaxSamples,
		Seed:       c.Trace.Synthetic.Seed,
	}
}

// WantsPrint reports whether any parameter carries the print sentinel.
func (c *Configuration) WantsPrint() bool {
	for i := range c.Caches {
		for _, val := range c.Caches[i].Params {
			if val == PrintSentinel {
				return true
			}
		}
	}
	return false
}

// Print renders the effective configuration, with parameter defaults
// resolved, as YAML. Used by the print sentinel and the print command.
func (c *Configuration) Print(w io.Writer) error {
	effective := *c
	effective.Caches = make([]CacheSpec, len(c.Caches))
	copy(effective.Caches, c.Caches)
	for i := range effective.Caches {
		spec := &effective.Caches[i]
		defaults, ok := cache.PolicyDefaults(spec.Policy)
		if !ok {
			continue
		}
		params := make(map[string]string, len(defaults)+len(spec.Params))
		for k, val := range defaults {
			params[k] = val
		}
		for k, val := range spec.Params {
			if val != PrintSentinel {
				params[k] = val
			}
		}
		spec.Params = params
	}
	data, err := yaml.Marshal(&effective)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// SaveToFile writes the configuration as YAML.
func (c *Configuration) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return simerrors.Wrap(simerrors.ErrCodeInternalError,
			"failed to marshal configuration", err).WithComponent("config")
	}
	if err := utils.EnsureParentDir(path); err != nil {
		return simerrors.Wrap(simerrors.ErrCodeConfigLoad,
			"failed to create output directory", err).
			WithComponent("config").WithDetail("path", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return simerrors.Wrap(simerrors.ErrCodeConfigLoad,
			"failed to write configuration file", err).
			WithComponent("config").WithDetail("path", path)
	}
	return nil
}

// ParseSize parses a human-readable byte size: a bare integer, or an
// integer with a KB/MB/GB/TB suffix (decimal multiples) or KiB/MiB/GiB/TiB
// (binary multiples). Case-insensitive.
func ParseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}
	upper := strings.ToUpper(s)
	multipliers := []struct {
		suffix string
		factor uint64
	}{
		{"KIB", 1 << 10}, {"MIB", 1 << 20}, {"GIB", 1 << 30}, {"TIB", 1 << 40},
		{"KB", 1e3}, {"MB", 1e6}, {"GB", 1e9}, {"TB", 1e12},
		{"B", 1},
	}
	for _, m := range multipliers {
		if strings.HasSuffix(upper, m.suffix) {
			num := strings.TrimSpace(strings.TrimSuffix(upper, m.suffix))
			n, err := strconv.ParseUint(num, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("bad size %q: %w", s, err)
			}
			return n * m.factor, nil
		}
	}
	n, err := strconv.ParseUint(upper, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad size %q: %w", s, err)
	}
	return n, nil
}

// NewTraceReader builds the configured request source: the CSV file when a
// path is set, the synthetic generator otherwise.
func (c *Configuration) NewTraceReader() (types.TraceReader, error) {
	if c.Trace.Path != "" {
		path, err := utils.ExpandPath(c.Trace.Path)
		if err != nil {
			return nil, simerrors.Wrap(simerrors.ErrCodeTraceParse,
				"invalid trace path", err).
				WithComponent("config").WithDetail("path", c.Trace.Path)
		}
		return trace.OpenCSV(path)
	}
	return trace.NewSynthetic(c.Trace.Synthetic)
}
