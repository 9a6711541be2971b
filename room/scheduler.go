// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package room

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// cronParser accepts standard 5-field cron expressions plus an
// optional seconds field and @every descriptors.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Scheduler is the dedicated scheduled-task pool for rooms. Timers and
// deferred notifications fire here, never on a dispatch goroutine.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// NewScheduler builds a stopped scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithParser(cronParser)),
		logger: logger.With("component", "scheduler"),
	}
}

// Schedule registers a task against a cron expression ("*/5 * * * *",
// "@every 30s"). The name is for logs only.
func (s *Scheduler) Schedule(spec, name string, task func()) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(spec, func() {
		s.logger.Debug("scheduled task firing", "task", name)
		task()
	})
	if err != nil {
		return 0, fmt.Errorf("room: scheduling %q (%s): %w", name, spec, err)
	}
	s.logger.Info("task scheduled", "task", name, "schedule", spec)
	return id, nil
}

// Remove deregisters a task.
func (s *Scheduler) Remove(id cron.EntryID) {
	s.cron.Remove(id)
}

// Start begins firing scheduled tasks.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the ticker and waits for running tasks to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
