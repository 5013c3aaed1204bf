package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/application/workflow"
)

// StallScanner is the slice of the workflow engine the scanner needs
type StallScanner interface {
	ScanStalled(ctx context.Context, olderThan time.Duration) ([]workflow.StalledStep, error)
}

// StallScannerWorker periodically looks for in-progress steps nobody can act on.
// The engine publishes a step.stalled event for each one it finds.
type StallScannerWorker struct {
	engine    StallScanner
	schedule  string
	threshold time.Duration
	logger    *zap.Logger

	mu     sync.Mutex
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

// NewStallScannerWorker creates a scanner running on a cron schedule with seconds
// precision, e.g. "0 */5 * * * *" or "@every 5m"
func NewStallScannerWorker(engine StallScanner, schedule string, threshold time.Duration, logger *zap.Logger) *StallScannerWorker {
	return &StallScannerWorker{
		engine:    engine,
		schedule:  schedule,
		threshold: threshold,
		logger:    logger,
	}
}

func (w *StallScannerWorker) Name() string {
	return "stall-scanner"
}

// Start validates the schedule and starts the cron loop
func (w *StallScannerWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cron != nil {
		return fmt.Errorf("%s already started", w.Name())
	}

	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(w.schedule, func() { w.RunOnce(w.ctx) }); err != nil {
		return fmt.Errorf("invalid stall scan schedule %q: %w", w.schedule, err)
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.cron = c
	c.Start()

	w.logger.Info("Stall scanner started",
		zap.String("schedule", w.schedule),
		zap.Duration("threshold", w.threshold))
	return nil
}

// Stop halts the cron loop and waits for a running scan to finish
func (w *StallScannerWorker) Stop() error {
	w.mu.Lock()
	c := w.cron
	w.cron = nil
	w.mu.Unlock()

	if c == nil {
		return nil
	}
	w.cancel()
	<-c.Stop().Done()
	return nil
}

// RunOnce performs a single scan and returns the number of stalled steps
func (w *StallScannerWorker) RunOnce(ctx context.Context) int {
	stalled, err := w.engine.ScanStalled(ctx, w.threshold)
	if err != nil {
		w.logger.Error("Stall scan failed", zap.Error(err))
		return 0
	}

	for _, s := range stalled {
		w.logger.Warn("Instance stalled",
			zap.String("instance_id", s.Instance.ID),
			zap.String("organization_id", s.Instance.OrganizationID),
			zap.String("step", s.StepName),
			zap.Time("since", s.Since))
	}
	if len(stalled) > 0 {
		w.logger.Info("Stall scan complete", zap.Int("stalled", len(stalled)))
	}
	return len(stalled)
}
