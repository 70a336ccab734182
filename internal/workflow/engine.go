// internal/workflow/engine.go
package workflow

import (
	"context"
	"time"

	"demand-broker/internal/common/logger"
	"demand-broker/internal/geocoder"
	"demand-broker/internal/matching"
	"demand-broker/internal/notify"
	"demand-broker/internal/parser"
	"demand-broker/internal/scheduler"
	"demand-broker/internal/storage"
)

// Task names handed to the scheduler for deferred work.
const (
	TaskCancelProposal = "proposal-cancel"
	TaskMatchDemand    = "demand-match"
)

// Engine applies the demand and proposal lifecycles. Every operation
// loads the entity, checks the transition guard, mutates, persists, and
// only then emits its side effects. Notification failures never undo a
// persisted transition.
type Engine struct {
	store     storage.Store
	sequencer storage.Sequencer
	matcher   *matching.Engine
	notifier  notify.Notifier
	scheduler scheduler.Scheduler
	geocoder  geocoder.Geocoder
	patterns  *parser.PatternCache
	log       logger.Logger
	now       func() time.Time
}

func NewEngine(
	store storage.Store,
	sequencer storage.Sequencer,
	matcher *matching.Engine,
	notifier notify.Notifier,
	sched scheduler.Scheduler,
	geo geocoder.Geocoder,
	patterns *parser.PatternCache,
	log logger.Logger,
) *Engine {
	return &Engine{
		store:     store,
		sequencer: sequencer,
		matcher:   matcher,
		notifier:  notifier,
		scheduler: sched,
		geocoder:  geo,
		patterns:  patterns,
		log:       log,
		now:       time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// send delivers a best-effort notification. The notifier contract already
// swallows delivery failures; this guards against a nil notifier too.
func (e *Engine) send(ctx context.Context, msg notify.Message) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, msg); err != nil {
		e.log.WithError(err).Warn("notification dropped", map[string]interface{}{
			"recipient": msg.Recipient,
		})
	}
}

// schedule enqueues deferred work and logs instead of failing when the
// scheduler is unreachable; the persisted transition stands either way.
func (e *Engine) schedule(ctx context.Context, task scheduler.Task) {
	if e.scheduler == nil {
		return
	}
	if err := e.scheduler.Enqueue(ctx, task); err != nil {
		e.log.WithError(err).Error("task enqueue failed", map[string]interface{}{
			"task":       task.Name,
			"entity_key": task.EntityKey,
		})
	}
}
