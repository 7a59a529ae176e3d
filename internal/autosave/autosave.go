// Package autosave persists unsaved engine edits on a cron schedule.
package autosave

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Saver is the part of the engine the scheduler drives.
type Saver interface {
	DirtyCount() int
	SaveDirty(ctx context.Context) error
}

// Scheduler runs Saver.SaveDirty on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	saver   Saver
	timeout time.Duration

	mu   sync.Mutex
	runs int
	last error
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTimeout bounds each save pass.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.timeout = d }
}

// New returns a scheduler for spec, which accepts standard five-field cron
// expressions and descriptors such as "@every 30s".
func New(saver Saver, spec string, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		saver:   saver,
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := s.cron.AddFunc(spec, func() { _ = s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("autosave: schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins running in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Printf("autosave: scheduler started")
}

// Stop stops the schedule, waits for a running pass, and then saves once
// more so no edits are left behind.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.RunOnce(ctx)
}

// RunOnce saves every dirty project. Failures are logged and returned; the
// next pass retries them.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if s.saver.DirtyCount() == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.saver.SaveDirty(ctx)
	s.mu.Lock()
	s.runs++
	s.last = err
	s.mu.Unlock()
	if err != nil {
		log.Printf("WARNING: autosave failed: %v", err)
	}
	return err
}

// Runs returns how many save passes found dirty projects, and the error of
// the most recent one.
func (s *Scheduler) Runs() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs, s.last
}
