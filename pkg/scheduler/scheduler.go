package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Target is what a Scheduler drives: a stream with a storage half (Pump) and
// a peripheral half (Service). *stream.Controller is a Target.
type Target interface {
	Pump() (int, error)
	Service() error
	Done() bool
}

// Scheduler stands in for the periodic hook of a microcontroller main loop.
// Every interval it runs one tick against a Target: storage first, then the
// peripheral.
//
// Stream operations are not safe for concurrent use, so everything that
// touches the Target (ticks, and commands passed to Do) runs one at a time.
type Scheduler struct {
	logger *slog.Logger
	uuid   uuid.UUID

	interval time.Duration
	mu       sync.Mutex
	ticks    uint64
}

func New(interval time.Duration) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("scheduler interval must be positive")
	}
	uuid := uuid.New()
	return &Scheduler{
		logger: slog.Default().With(
			"scheduler uuid", uuid,
		),
		uuid:     uuid,
		interval: interval,
	}, nil
}

func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Run ticks target until it is Done, a tick fails, or ctx is canceled.
// Reaching Done returns nil; cancellation returns the context's error.
func (s *Scheduler) Run(ctx context.Context, target Target) error {
	s.logger.Debug("scheduler started", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("scheduler canceled", "ticks", s.Ticks())
			return ctx.Err()
		case <-ticker.C:
		}

		done, err := s.Tick(target)
		if err != nil {
			s.logger.Error("tick failed", "err", err)
			return err
		}
		if done {
			s.logger.Debug("target done", "ticks", s.Ticks())
			return nil
		}
	}
}

// Tick runs a single tick and reports whether target is now Done.
func (s *Scheduler) Tick(target Target) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ticks++
	if target.Done() {
		return true, nil
	}
	if _, err := target.Pump(); err != nil {
		return false, err
	}
	if err := target.Service(); err != nil {
		return false, err
	}
	return target.Done(), nil
}

// Do runs fn between ticks. It waits for a tick in progress to finish, or
// for ctx to be canceled.
func (s *Scheduler) Do(ctx context.Context, fn func() error) error {
	locked := make(chan struct{})
	go func() {
		s.mu.Lock()
		close(locked)
	}()

	select {
	case <-locked:
	case <-ctx.Done():
		// Release the lock once the pending acquisition completes.
		go func() {
			<-locked
			s.mu.Unlock()
		}()
		return ctx.Err()
	}
	defer s.mu.Unlock()
	return fn()
}

func (s *Scheduler) Ticks() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks
}
