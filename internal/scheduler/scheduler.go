// Package scheduler runs the recurring gamification jobs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"pyquest-gamification/internal/domain"
	"pyquest-gamification/internal/logger"
)

// ReminderHour is the local hour streak reminders go out.
const ReminderHour = 18

const jobTimeout = 2 * time.Minute

// Jobs is the work the scheduler triggers.
type Jobs interface {
	GenerateToday(ctx context.Context, notify bool) (domain.DailyChallenge, bool, error)
	SendStreakReminders(ctx context.Context) (int, error)
}

// Scheduler generates each day's challenge at the cutoff hour and sends
// streak reminders in the evening, both in the cutoff location.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	jobs       Jobs
	cutoffHour int
	notify     bool
	log        *logger.Logger
}

func New(jobs Jobs, loc *time.Location, cutoffHour int, notify bool, log *logger.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	s := gocron.NewScheduler(loc)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler:  s,
		jobs:       jobs,
		cutoffHour: cutoffHour,
		notify:     notify,
		log:        logger.OrNop(log),
	}
}

// Start registers the jobs and runs them in the background.
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(1).Day().At(clock(s.cutoffHour)).Do(s.generate); err != nil {
		return fmt.Errorf("schedule challenge generation: %w", err)
	}
	if _, err := s.scheduler.Every(1).Day().At(clock(ReminderHour)).Do(s.remind); err != nil {
		return fmt.Errorf("schedule streak reminders: %w", err)
	}
	s.scheduler.StartAsync()
	s.log.Info("scheduler started", "generate_at", clock(s.cutoffHour), "remind_at", clock(ReminderHour))
	return nil
}

func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) generate() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	c, created, err := s.jobs.GenerateToday(ctx, s.notify)
	if err != nil {
		s.log.Error("challenge generation failed", "error", err)
		return
	}
	s.log.Info("daily challenge ready", "date", c.ID, "created", created, "topic", c.GlobalChallenge.Topic)
}

func (s *Scheduler) remind() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if _, err := s.jobs.SendStreakReminders(ctx); err != nil {
		s.log.Error("streak reminders failed", "error", err)
	}
}

func clock(hour int) string {
	return fmt.Sprintf("%02d:00", hour)
}
