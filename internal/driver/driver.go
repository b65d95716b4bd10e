// Package driver owns the trace-replay loop. A single-cache run replays one
// configuration end to end, optionally discarding a warm-up prefix from the
// statistics. A multi-cache run fans N independent configurations out over a
// bounded worker pool, each with its own cache instance and its own clone of
// the trace, and merges per-configuration results after the workers join.
package driver

import (
	"context"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/cachesim/cachesim/internal/cache"
	"github.com/cachesim/cachesim/internal/metrics"
	simerrors "github.com/cachesim/cachesim/pkg/errors"
	"github.com/cachesim/cachesim/pkg/types"
	"github.com/cachesim/cachesim/pkg/utils"
)

// Options control a replay.
type Options struct {
	// WarmupRequests is the prefix of the trace that mutates cache state
	// without counting toward statistics.
	WarmupRequests uint64

	// Workers bounds the multi-cache pool. Zero means GOMAXPROCS.
	Workers int

	// Strict enables per-operation invariant validation on every cache.
	Strict bool

	Logger    *utils.Logger
	Collector *metrics.Collector
}

// Result is the outcome of replaying one configuration. Err is set when the
// configuration's worker hit a fatal error; its Stats then cover only the
// requests applied before the failure.
type Result struct {
	RunID           string
	ConfigName      string
	PolicyName      string
	CapacityBytes   uint64
	Stats           types.Statistics
	ResidentObjects uint64
	OccupiedBytes   uint64
	Elapsed         time.Duration
	Err             error
}

// Run replays reader through a single cache configuration.
func Run(ctx context.Context, cfg cache.Config, reader types.TraceReader, opts Options) (Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewLogger(utils.DefaultLoggerConfig())
	}
	cfg.Strict = cfg.Strict || opts.Strict
	if cfg.Logger == nil {
		cfg.Logger = logger
	}

	res := Result{
		RunID:         xid.New().String(),
		ConfigName:    cfg.Name,
		PolicyName:    cfg.Policy,
		CapacityBytes: cfg.CapacityBytes,
	}

	c, err := cache.New(cfg)
	if err != nil {
		res.Err = err
		return res, err
	}
	defer c.Close()

	logger.Info("starting replay", map[string]interface{}{
		"run_id":   res.RunID,
		"config":   cfg.Name,
		"policy":   cfg.Policy,
		"capacity": cfg.CapacityBytes,
		"warmup":   opts.WarmupRequests,
	})

	start := time.Now()
	res.Err = replay(ctx, c, reader, opts, &res.Stats)
	res.Elapsed = time.Since(start)
	res.ResidentObjects = c.ResidentObjects()
	res.OccupiedBytes = c.OccupiedBytes()

	if opts.Collector != nil {
		opts.Collector.ObserveRun(res.ConfigName, res.PolicyName, res.Stats, res.Elapsed)
	}

	if res.Err != nil {
		logger.Error("replay failed", map[string]interface{}{
			"run_id": res.RunID,
			"config": cfg.Name,
			"error":  res.Err.Error(),
		})
		return res, res.Err
	}
	logger.Info("replay complete", map[string]interface{}{
		"run_id":     res.RunID,
		"config":     cfg.Name,
		"requests":   res.Stats.Requests,
		"miss_ratio": res.Stats.MissRatio(),
		"elapsed":    res.Elapsed.String(),
	})
	return res, nil
}

// replay is the inner loop shared by both modes. Requests apply strictly in
// trace order; cancellation is only checked between requests, so a context
// abort still leaves a valid partial statistics snapshot.
func replay(ctx context.Context, c *cache.Cache, reader types.TraceReader, opts Options, stats *types.Statistics) error {
	var seen uint64
	for {
		if err := ctx.Err(); err != nil {
			return nil // partial snapshot is a valid result
		}
		req, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		outcome, err := c.Apply(req)
		if err != nil {
			return err
		}
		seen++
		if seen > opts.WarmupRequests {
			stats.Record(req, outcome)
		}
	}
}

// RunAll replays every configuration against its own clone of reader,
// bounded by the worker pool. A fatal error in one configuration is isolated
// to that configuration's Result; RunAll itself fails only when no
// configuration could be started at all.
func RunAll(ctx context.Context, cfgs []cache.Config, reader types.TraceReader, opts Options) ([]Result, error) {
	if len(cfgs) == 0 {
		return nil, simerrors.New(simerrors.ErrCodeInvalidConfig,
			"no cache configurations to run").WithComponent("driver")
	}
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewLogger(utils.DefaultLoggerConfig())
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(cfgs) {
		workers = len(cfgs)
	}

	logger.Info("starting multi-cache replay", map[string]interface{}{
		"configurations": len(cfgs),
		"workers":        workers,
	})

	results := make([]Result, len(cfgs))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				// Each worker writes only its own slot; results are
				// read after the join below.
				results[i] = runOne(ctx, cfgs[i], reader, opts, logger)
			}
		}()
	}
	for i := range cfgs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results, nil
}

func runOne(ctx context.Context, cfg cache.Config, reader types.TraceReader, opts Options, logger *utils.Logger) Result {
	clone, err := reader.Clone()
	if err != nil {
		return Result{
			RunID:         xid.New().String(),
			ConfigName:    cfg.Name,
			PolicyName:    cfg.Policy,
			CapacityBytes: cfg.CapacityBytes,
			Err:           err,
		}
	}
	if closer, ok := clone.(io.Closer); ok {
		defer closer.Close()
	}
	opts.Logger = logger
	res, _ := Run(ctx, cfg, clone, opts)
	return res
}
