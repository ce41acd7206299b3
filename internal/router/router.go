// Package router drains the durable event log and dispatches each
// data_collection_completed event to the analysis service, composed with a
// periodic health check, grounded on
// original_source/modules/llm_analysis/scripts/analysis_system_router.py's
// AnalysisSystemRouter (5s poll, batches of 10) and
// system_manager.py's 30s _management_loop/_health_check pair.
package router

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// pollInterval matches the original router's asyncio.sleep(5) between
// unprocessed-event polls.
const pollInterval = 5 * time.Second

// healthCheckInterval matches system_manager.py's 30s management loop.
const healthCheckInterval = 30 * time.Second

// eventBatchSize matches the original's LIMIT 10 per poll.
const eventBatchSize = 10

// Dispatcher processes a batch of unprocessed events; analysis.Service
// satisfies this.
type Dispatcher interface {
	ProcessUnprocessedEvents(ctx context.Context, limit int) error
}

// HealthReporter reports whether a dependency the Router monitors is
// healthy, for the periodic health check (spec SPEC_FULL.md §4.12).
type HealthReporter interface {
	Healthy(ctx context.Context) bool
	Name() string
}

// Router polls the event log on a fixed interval and dispatches batches to
// the active analysis backend, while a separate loop periodically checks
// the health of registered dependencies.
type Router struct {
	dispatcher          Dispatcher
	reporters           []HealthReporter
	pollInterval        time.Duration
	healthCheckInterval time.Duration
}

// New constructs a Router dispatching to dispatcher and health-checking
// reporters.
func New(dispatcher Dispatcher, reporters ...HealthReporter) *Router {
	return &Router{
		dispatcher:          dispatcher,
		reporters:           reporters,
		pollInterval:        pollInterval,
		healthCheckInterval: healthCheckInterval,
	}
}

// Run blocks, polling for unprocessed events every pollInterval and running
// the health check every healthCheckInterval, until ctx is cancelled. The
// two loops run independently so a slow health check never delays event
// dispatch.
func (r *Router) Run(ctx context.Context) {
	log.Info().Msg("analysis router starting")

	eventTicker := time.NewTicker(r.pollInterval)
	defer eventTicker.Stop()
	healthTicker := time.NewTicker(r.healthCheckInterval)
	defer healthTicker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-healthTicker.C:
				r.runHealthCheck(ctx)
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("analysis router stopped")
			return
		case <-eventTicker.C:
			if err := r.dispatcher.ProcessUnprocessedEvents(ctx, eventBatchSize); err != nil {
				log.Error().Err(err).Msg("event dispatch failed")
			}
		}
	}
}

func (r *Router) runHealthCheck(ctx context.Context) {
	for _, reporter := range r.reporters {
		if !reporter.Healthy(ctx) {
			log.Warn().Str("dependency", reporter.Name()).Msg("dependency reported unhealthy")
		}
	}
}
