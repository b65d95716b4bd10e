// Command cachesim replays access traces against configured cache policies
// and reports miss statistics, and estimates miss-ratio curves from a
// single trace pass.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cachesim/cachesim/internal/cache"
	"github.com/cachesim/cachesim/internal/config"
	"github.com/cachesim/cachesim/internal/driver"
	"github.com/cachesim/cachesim/internal/metrics"
	"github.com/cachesim/cachesim/internal/mrc"
	_ "github.com/cachesim/cachesim/internal/plugin" // registers the plugin policy
	_ "github.com/cachesim/cachesim/internal/policy" // registers the built-in policies
	simerrors "github.com/cachesim/cachesim/pkg/errors"
	"github.com/cachesim/cachesim/pkg/utils"
)

var (
	version = "dev"

	configPath string
	logLevel   string
	logFormat  string
)

func main() {
	root := &cobra.Command{
		Use:     "cachesim",
		Short:   "Cache replacement policy simulator",
		Version: version,
		Long: `cachesim replays object access traces against one or more eviction
policies (FIFO, LRU, Clock, SIEVE, LFU, ARC, S3-FIFO, CLOCK-Pro, sampled
scoring, or dynamically loaded plugins) and reports hit, miss and byte-miss
statistics per configuration. It can also estimate a full miss-ratio curve
from a single sampled pass over the trace.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "configuration file (YAML)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (DEBUG, INFO, WARN, ERROR)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "override log format (text, json)")

	root.AddCommand(newRunCmd(), newMRCCmd(), newPoliciesCmd(), newPrintCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "cachesim: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig merges the file, environment and flag overrides, and builds the
// process logger. All configuration errors surface here, before any request
// is processed.
func loadConfig() (*config.Configuration, *utils.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.Global.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.Global.LogFormat = logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	level, err := utils.ParseLogLevel(cfg.Global.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	lc := utils.DefaultLoggerConfig()
	lc.Level = level
	if cfg.Global.LogFormat == "json" {
		lc.Format = utils.FormatJSON
	}
	return cfg, utils.NewLogger(lc), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Replay the trace against the configured caches",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.WantsPrint() {
				return cfg.Print(os.Stdout)
			}

			reader, err := cfg.NewTraceReader()
			if err != nil {
				return err
			}
			if closer, ok := reader.(io.Closer); ok {
				defer closer.Close()
			}
			cacheCfgs, err := cfg.CacheConfigs()
			if err != nil {
				return err
			}

			collector, err := metrics.NewCollector(&cfg.Metrics, logger)
			if err != nil {
				return err
			}
			if cfg.Metrics.Enabled {
				if err := collector.Serve(); err != nil {
					return err
				}
				defer func() {
					ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
					defer cancel()
					collector.Shutdown(ctx)
				}()
			}

			ctx, cancel := signalContext()
			defer cancel()

			opts := driver.Options{
				WarmupRequests: cfg.Driver.WarmupRequests,
				Workers:        cfg.Driver.Workers,
				Strict:         cfg.Driver.Strict,
				Logger:         logger,
				Collector:      collector,
			}
			results, err := driver.RunAll(ctx, cacheCfgs, reader, opts)
			if err != nil {
				return err
			}
			return writeResults(cfg, results)
		},
	}
	return cmd
}

func writeResults(cfg *config.Configuration, results []driver.Result) error {
	out := os.Stdout
	if cfg.Driver.OutputFile != "" {
		f, err := createOutput(cfg.Driver.OutputFile)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	var err error
	if cfg.Driver.Output == "csv" {
		err = driver.WriteCSV(out, results)
	} else {
		err = driver.WriteTable(out, results)
	}
	if err != nil {
		return err
	}
	// A configuration failure is the run's failure once reported.
	for _, r := range results {
		if r.Err != nil && simerrors.IsFatal(r.Err) {
			return r.Err
		}
	}
	return nil
}

func createOutput(path string) (*os.File, error) {
	expanded, err := utils.ExpandPath(path)
	if err != nil {
		return nil, err
	}
	if err := utils.EnsureParentDir(expanded); err != nil {
		return nil, err
	}
	return os.Create(expanded)
}

func newMRCCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mrc",
		Short: "Estimate a miss-ratio curve from one trace pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			reader, err := cfg.NewTraceReader()
			if err != nil {
				return err
			}
			if closer, ok := reader.(io.Closer); ok {
				defer closer.Close()
			}

			est, err := mrc.New(cfg.EstimatorConfig(), logger)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()
			start := time.Now()
			for ctx.Err() == nil {
				req, err := reader.Next()
				if err == io.EOF {
					break
				}
				if err != nil {
					return err
				}
				est.Record(req)
			}
			logger.Info("estimation pass complete", map[string]interface{}{
				"requests": est.Requests(),
				"rate":     est.Rate(),
				"elapsed":  time.Since(start).String(),
			})

			out := os.Stdout
			if cfg.MRC.OutputFile != "" {
				f, err := createOutput(cfg.MRC.OutputFile)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			return est.WriteTable(out, cfg.MRC.Points)
		},
	}
	return cmd
}

func newPoliciesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "policies",
		Short: "List registered policies and their default parameters",
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
			fmt.Fprintln(tw, "POLICY\tPARAM\tDEFAULT")
			for _, name := range cache.PolicyNames() {
				defaults, _ := cache.PolicyDefaults(name)
				if len(defaults) == 0 {
					fmt.Fprintf(tw, "%s\t-\t-\n", name)
					continue
				}
				for _, k := range sortedKeys(defaults) {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", name, k, defaults[k])
				}
			}
			return tw.Flush()
		},
	}
}

func newPrintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "print",
		Short: "Print the effective configuration and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			return cfg.Print(os.Stdout)
		},
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
