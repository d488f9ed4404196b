// Package scheduler runs the periodic jobs of the reminder backend: the
// minute tick that delivers due reminders and the cleanup of expired
// webhook dedup rows.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/remindbot/go-reminder-backend/internal/repo"
	"github.com/remindbot/go-reminder-backend/internal/services"
)

// Scheduler owns the cron instance. Jobs run in the configured location so
// cron specs read in local time.
type Scheduler struct {
	cron       *cron.Cron
	db         *gorm.DB
	dispatcher *services.Dispatcher
	log        zerolog.Logger
}

// New builds a stopped scheduler.
func New(loc *time.Location, db *gorm.DB, dispatcher *services.Dispatcher, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithLocation(loc)),
		db:         db,
		dispatcher: dispatcher,
		log:        log,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	// Due reminders every minute.
	if _, err := s.cron.AddFunc("* * * * *", s.dispatchDue); err != nil {
		return err
	}
	// Expired dedup rows every ten minutes.
	if _, err := s.cron.AddFunc("*/10 * * * *", s.purgeDedup); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info().Msg("scheduler started")
	return nil
}

// Stop halts the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) dispatchDue() {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Second)
	defer cancel()

	sent, err := s.dispatcher.DispatchDue(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("dispatch tick failed")
		return
	}
	if sent > 0 {
		s.log.Info().Int("sent", sent).Msg("reminders dispatched")
	}
}

func (s *Scheduler) purgeDedup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	purged, err := repo.PurgeExpiredUpdates(ctx, s.db, time.Now())
	if err != nil {
		s.log.Error().Err(err).Msg("dedup purge failed")
		return
	}
	if purged > 0 {
		s.log.Debug().Int64("purged", purged).Msg("expired dedup rows removed")
	}
}
