package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/isdelr/ender-feed-be/internal/services"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// reconcileTimeout bounds a single scheduled repair pass.
const reconcileTimeout = 2 * time.Minute

// Scheduler periodically repairs asymmetric follow edges.
type Scheduler struct {
	graph services.GraphServiceProvider
	cron  *cron.Cron
}

// NewScheduler creates a scheduler that runs GraphService.Reconcile on spec,
// a standard cron expression or descriptor such as "@every 10m".
func NewScheduler(graph services.GraphServiceProvider, spec string) (*Scheduler, error) {
	s := &Scheduler{
		graph: graph,
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DefaultLogger),
			cron.SkipIfStillRunning(cron.DefaultLogger),
		)),
	}
	if _, err := s.cron.AddFunc(spec, s.reconcile); err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", spec, err)
	}
	return s, nil
}

// Run starts the scheduler in the background.
func (s *Scheduler) Run() {
	log.Info().Msg("Starting graph reconcile scheduler")
	s.cron.Start()
}

// Stop halts the scheduler and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("Stopped graph reconcile scheduler")
}

func (s *Scheduler) reconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
	defer cancel()

	report, err := s.graph.Reconcile(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Scheduled graph reconcile failed")
		return
	}
	log.Debug().Int("repaired", report.Repaired()).Msg("Scheduled graph reconcile finished")
}
