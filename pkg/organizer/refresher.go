package organizer

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// TagRefresher periodically repopulates the controller's tag cache so the
// filter UI sees tags created by other clients (or the AI tagger) without a
// user-triggered mutation. Purely best effort.
type TagRefresher struct {
	controller *Controller
	cronExpr   string
	cron       *cron.Cron
	mu         sync.Mutex
	running    bool
}

// NewTagRefresher creates a refresher driven by the given cron expression.
func NewTagRefresher(controller *Controller, cronExpr string) *TagRefresher {
	return &TagRefresher{
		controller: controller,
		cronExpr:   cronExpr,
		cron:       cron.New(),
		running:    false,
	}
}

// Start starts the refresher.
func (r *TagRefresher) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		log.Warn().Msg("Tag refresher already running")
		return nil
	}

	log.Info().
		Str("cron_expression", r.cronExpr).
		Msg("Starting tag refresher")

	_, err := r.cron.AddFunc(r.cronExpr, func() {
		r.runRefresh()
	})
	if err != nil {
		return err
	}

	r.cron.Start()
	r.running = true

	return nil
}

// Stop stops the refresher and waits for an in-flight run to finish.
func (r *TagRefresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}

	log.Info().Msg("Stopping tag refresher")

	ctx := r.cron.Stop()
	<-ctx.Done()

	r.running = false
}

// IsRunning returns whether the refresher is running.
func (r *TagRefresher) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// runRefresh is called by the cron scheduler.
func (r *TagRefresher) runRefresh() {
	ctx := context.Background()

	if err := r.controller.RefreshTagList(ctx); err != nil {
		log.Warn().Err(err).Msg("Scheduled tag list refresh failed")
		return
	}

	log.Debug().Msg("Scheduled tag list refresh completed")
}
