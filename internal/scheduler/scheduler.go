// Package scheduler drives the periodic collection and prediction cycles and
// hands fresh results to the hub for unsolicited push.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mila411/pollen-storm/internal/domain"
	"github.com/mila411/pollen-storm/internal/metrics"
	"github.com/mila411/pollen-storm/internal/resolver"
)

const (
	jobCollect = "collect"
	jobPredict = "predict"

	resultOK      = "ok"
	resultPanic   = "panic"
	resultSkipped = "skipped"
)

// Publisher receives each completed cycle's output. Satisfied by hub.Hub.
type Publisher interface {
	PublishSnapshots(snapshots map[string]domain.Snapshot)
	PublishPredictions(predictions map[string]domain.Prediction)
}

// RegionSource yields the regions every cycle covers. Satisfied by
// catalog.Catalog.
type RegionSource interface {
	List() []domain.Region
}

// Scheduler runs the collection and prediction jobs on independent
// intervals. A firing that overlaps a still-running cycle of the same job is
// skipped, never queued.
type Scheduler struct {
	regions     RegionSource
	snapshots   *resolver.Snapshots
	predictions *resolver.Predictions
	publisher   Publisher
	clock       clockwork.Clock

	collectInterval time.Duration
	predictInterval time.Duration
	predictionDays  int

	collectRunning atomic.Bool
	predictRunning atomic.Bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler. Start must be called to begin periodic runs.
func New(regions RegionSource, snapshots *resolver.Snapshots, predictions *resolver.Predictions, publisher Publisher, collectInterval, predictInterval time.Duration, predictionDays int, clock clockwork.Clock) *Scheduler {
	return &Scheduler{
		regions:         regions,
		snapshots:       snapshots,
		predictions:     predictions,
		publisher:       publisher,
		clock:           clock,
		collectInterval: collectInterval,
		predictInterval: predictInterval,
		predictionDays:  predictionDays,
	}
}

// Start launches the ticker loop. Cycles continue until Stop is called.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(ctx)

	slog.Info("Scheduler started",
		"collection_interval", s.collectInterval,
		"prediction_interval", s.predictInterval)
}

// Stop cancels any in-flight cycle and waits for the loop to exit.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	slog.Info("Scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	collectTicker := s.clock.NewTicker(s.collectInterval)
	defer collectTicker.Stop()
	predictTicker := s.clock.NewTicker(s.predictInterval)
	defer predictTicker.Stop()

	for {
		select {
		case <-collectTicker.Chan():
			s.dispatch(ctx, jobCollect, &s.collectRunning, s.collectCycle)
		case <-predictTicker.Chan():
			s.dispatch(ctx, jobPredict, &s.predictRunning, s.predictCycle)
		case <-ctx.Done():
			return
		}
	}
}

// dispatch runs a cycle on its own goroutine so a slow collection never
// delays prediction fires, and an overlapping fire of the same job hits the
// running-flag guard instead of queueing behind the loop.
func (s *Scheduler) dispatch(ctx context.Context, job string, running *atomic.Bool, cycle func(context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runJob(ctx, job, running, cycle)
	}()
}

// CollectNow runs one collection cycle synchronously. Used at startup so the
// hub has state before the first client connects.
func (s *Scheduler) CollectNow(ctx context.Context) {
	s.runJob(ctx, jobCollect, &s.collectRunning, s.collectCycle)
}

// PredictNow runs one prediction cycle synchronously.
func (s *Scheduler) PredictNow(ctx context.Context) {
	s.runJob(ctx, jobPredict, &s.predictRunning, s.predictCycle)
}

// runJob guards a cycle with the job's running flag and isolates panics so a
// bad cycle never takes the loop down.
func (s *Scheduler) runJob(ctx context.Context, job string, running *atomic.Bool, cycle func(context.Context)) {
	if !running.CompareAndSwap(false, true) {
		slog.Warn("Skipping scheduled run, previous cycle still in progress", "job", job)
		metrics.SchedulerSkippedFires.WithLabelValues(job).Inc()
		metrics.SchedulerRunsTotal.WithLabelValues(job, resultSkipped).Inc()
		return
	}
	defer running.Store(false)

	start := s.clock.Now()
	defer func() {
		metrics.SchedulerRunDuration.WithLabelValues(job).Observe(s.clock.Since(start).Seconds())
		if r := recover(); r != nil {
			slog.Error("Scheduler cycle panicked", "job", job, "panic", r)
			metrics.SchedulerRunsTotal.WithLabelValues(job, resultPanic).Inc()
			return
		}
		metrics.SchedulerRunsTotal.WithLabelValues(job, resultOK).Inc()
	}()

	cycle(ctx)
}

func (s *Scheduler) collectCycle(ctx context.Context) {
	regions := s.regions.List()
	snapshots := s.snapshots.Resolve(ctx, regions, resolver.ResolveOptions{})
	s.publisher.PublishSnapshots(snapshots)
	slog.Debug("Collection cycle complete", "regions", len(snapshots))
}

func (s *Scheduler) predictCycle(ctx context.Context) {
	regions := s.regions.List()
	predictions := s.predictions.Resolve(ctx, regions, s.predictionDays, resolver.ResolveOptions{})
	s.publisher.PublishPredictions(predictions)
	slog.Debug("Prediction cycle complete", "regions", len(predictions))
}
