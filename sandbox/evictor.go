package sandbox

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Evictor periodically closes sessions that have been idle for too long.
// A zero idle timeout disables it.
type Evictor struct {
	registry *Registry
	logger   *zap.Logger
	maxIdle  time.Duration
	cron     *cron.Cron
}

// NewEvictor schedules EvictIdle on registry using a cron expression such as "@every 1m"
func NewEvictor(logger *zap.Logger, registry *Registry, maxIdle time.Duration, schedule string) (*Evictor, error) {
	e := &Evictor{
		registry: registry,
		logger:   logger.With(zap.String("component", "evictor")),
		maxIdle:  maxIdle,
	}
	if maxIdle <= 0 {
		return e, nil
	}

	e.cron = cron.New(cron.WithParser(cron.NewParser(
		cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)))
	if _, err := e.cron.AddFunc(schedule, e.run); err != nil {
		return nil, fmt.Errorf("invalid eviction schedule %q: %w", schedule, err)
	}

	return e, nil
}

// Enabled reports whether idle eviction is active
func (e *Evictor) Enabled() bool {
	return e.cron != nil
}

// Start begins the schedule
func (e *Evictor) Start() {
	if e.cron == nil {
		return
	}
	e.logger.Info("idle eviction enabled", zap.Duration("max_idle", e.maxIdle))
	e.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish or ctx to end
func (e *Evictor) Stop(ctx context.Context) {
	if e.cron == nil {
		return
	}
	select {
	case <-e.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (e *Evictor) run() {
	e.registry.EvictIdle(context.Background(), e.maxIdle)
}
