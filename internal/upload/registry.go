package upload

import (
	"context"
	"sync"
	"time"
	"yoloview/internal/logger"
	"yoloview/internal/repository"

	"github.com/benbjohnson/clock"
)

// Option customizes a Registry.
type Option func(*Registry)

// WithClock replaces the wall clock used to track session activity.
func WithClock(c clock.Clock) Option {
	return func(r *Registry) { r.clock = c }
}

// Registry keeps one Flow per browser session.
type Registry struct {
	processor Processor
	ledger    repository.RequestRepository
	janitor   *Janitor
	clock     clock.Clock
	logger    *logger.Logger

	mu    sync.Mutex
	flows map[string]*Flow
}

func NewRegistry(processor Processor, ledger repository.RequestRepository, janitor *Janitor, logger *logger.Logger, opts ...Option) *Registry {
	r := &Registry{
		processor: processor,
		ledger:    ledger,
		janitor:   janitor,
		clock:     clock.New(),
		logger:    logger,
		flows:     make(map[string]*Flow),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Flow returns the flow of sessionID, creating it on first use. Every call
// counts as activity of the session.
func (r *Registry) Flow(sessionID string) *Flow {
	r.mu.Lock()
	defer r.mu.Unlock()

	flow, ok := r.flows[sessionID]
	if !ok {
		flow = NewFlow(sessionID, r.processor, r.ledger, r.janitor, r.logger)
		r.flows[sessionID] = flow
	}
	flow.lastSeen = r.clock.Now()
	return flow
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.flows)
}

// EvictIdle drops the flows not used for maxIdle and releases their results.
// Flows with an upload in progress are kept until the next sweep.
func (r *Registry) EvictIdle(maxIdle time.Duration) int {
	cutoff := r.clock.Now().Add(-maxIdle)

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, flow := range r.flows {
		if flow.lastSeen.After(cutoff) {
			continue
		}
		if !flow.close() {
			continue
		}
		delete(r.flows, id)
		evicted++
	}
	return evicted
}

// Run sweeps idle sessions every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := r.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.EvictIdle(maxIdle); n > 0 {
				r.logger.Info("Evicted %d idle upload sessions", n)
			}
		}
	}
}
