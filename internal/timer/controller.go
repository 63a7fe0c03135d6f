package timer

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// CycleFunc runs one reconciliation cycle and reports whether it ran to
// completion. A false return is logged but never stops future cycles.
type CycleFunc func(ctx context.Context) bool

// Controller drives a CycleFunc on a fixed period with at most one cycle
// in flight. The timer is disarmed before each cycle and re-armed only
// after the cycle settles, so a slow cycle stretches the effective period
// instead of stacking up ticks.
type Controller struct {
	period time.Duration
	run    CycleFunc
	logger *slog.Logger

	mu      sync.Mutex
	started bool
	running bool
	timer   *time.Timer
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewController creates an inert controller. Nothing runs until Start.
func NewController(period time.Duration, run CycleFunc, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		period: period,
		run:    run,
		logger: logger,
	}
}

// Start arms the timer. Calling Start on an already-started controller is
// a no-op. The given context bounds every cycle the controller runs.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return
	}
	c.started = true
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.timer = time.AfterFunc(c.period, c.tick)
	c.logger.Info("reconciliation scheduler started", "period", c.period)
}

// Stop disarms the timer and waits for an in-flight cycle to settle.
// Stopping an already-stopped controller is a no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.cancel()
	c.mu.Unlock()

	c.wg.Wait()
	c.logger.Info("reconciliation scheduler stopped")
}

func (c *Controller) tick() {
	c.mu.Lock()
	if !c.started || c.running {
		// A tick that lands while a cycle is in flight is suppressed,
		// not queued. The finishing cycle re-arms the timer itself.
		c.mu.Unlock()
		return
	}
	c.running = true
	c.wg.Add(1)
	ctx := c.ctx
	c.mu.Unlock()

	defer c.wg.Done()

	start := time.Now()
	ok := c.run(ctx)
	if !ok {
		c.logger.Warn("reconciliation cycle did not complete", "elapsed", time.Since(start))
	}

	c.mu.Lock()
	c.running = false
	if c.started {
		c.timer = time.AfterFunc(c.period, c.tick)
	}
	c.mu.Unlock()
}
