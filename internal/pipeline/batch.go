package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ymori/newsdispatch/internal/digest"
	"github.com/ymori/newsdispatch/internal/metrics"
)

const defaultConcurrency = 4

// DriverOptions wires the batch driver.
type DriverOptions struct {
	Planner     *Planner
	Configs     digest.ConfigStore
	Publisher   digest.Publisher
	Topic       string
	Concurrency int
	Budget      time.Duration
	Clock       digest.Clock
	Logger      *zap.Logger
}

// Driver fans auto-send configs out over a bounded worker pool. Each run is
// isolated: an aborted config never stops the others.
type Driver struct {
	planner     *Planner
	configs     digest.ConfigStore
	publisher   digest.Publisher
	topic       string
	concurrency int
	budget      time.Duration
	clock       digest.Clock
	logger      *zap.Logger
}

// NewDriver builds a Driver.
func NewDriver(opts DriverOptions) *Driver {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		planner:     opts.Planner,
		configs:     opts.Configs,
		publisher:   opts.Publisher,
		topic:       opts.Topic,
		concurrency: concurrency,
		budget:      opts.Budget,
		clock:       opts.Clock,
		logger:      logger,
	}
}

// RunBatch runs every auto-send config and publishes a summary event. The
// whole batch shares one deadline; configs not started before it expires are
// skipped.
func (d *Driver) RunBatch(ctx context.Context) (digest.BatchSummary, error) {
	started := d.clock.Now().UTC()
	if d.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.budget)
		defer cancel()
	}

	configs, err := d.configs.ListAutoSend(ctx)
	if err != nil {
		return digest.BatchSummary{}, fmt.Errorf("list auto-send configs: %w", err)
	}
	d.logger.Info("batch starting",
		zap.Int("configs", len(configs)), zap.Int("workers", d.concurrency))

	jobs := make(chan digest.SearchConfig)
	results := make(chan digest.PipelineResult)

	var wg sync.WaitGroup
	for i := 0; i < d.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cfg := range jobs {
				metrics.IncActiveWorkers()
				res := d.planner.Run(ctx, cfg)
				metrics.DecActiveWorkers()
				results <- res
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, cfg := range configs {
			select {
			case jobs <- cfg:
			case <-ctx.Done():
				d.logger.Warn("batch budget exhausted, skipping remaining configs",
					zap.String("config", cfg.Name))
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	summary := digest.BatchSummary{Started: started}
	for res := range results {
		summary.Runs++
		if res.Ready() {
			summary.Ready++
		} else {
			summary.Aborted++
		}
		summary.RunIDs = append(summary.RunIDs, res.RunID)
	}
	summary.Finished = d.clock.Now().UTC()

	if d.publisher != nil && d.topic != "" {
		// The batch deadline must not suppress the summary event.
		if _, err := d.publisher.Publish(context.WithoutCancel(ctx), d.topic, summary); err != nil {
			d.logger.Error("publish batch summary", zap.Error(err))
		}
	}
	d.logger.Info("batch finished",
		zap.Int("runs", summary.Runs), zap.Int("ready", summary.Ready),
		zap.Int("aborted", summary.Aborted),
		zap.Duration("elapsed", summary.Finished.Sub(summary.Started)))
	return summary, nil
}
