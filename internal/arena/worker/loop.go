// Package worker provides the scheduling loop shared by the bot
// checker and the match runner: blocking dequeue with a fixed timeout
// as heartbeat, one job fully processed before the next, and a
// supervisory restart policy for connectivity failures only.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"botarena/internal/common/queue"
	appErr "botarena/pkg/errors"
	"botarena/pkg/utils/logger"
)

// HandlerFunc processes one dequeued payload. Per-job failures must be
// recorded on the owning entity and swallowed; only connectivity
// errors may be returned as fatal.
type HandlerFunc func(ctx context.Context, payload []byte) error

// Loop is one worker's scheduling loop over a named queue.
type Loop struct {
	Queue       queue.Queue
	QueueName   string
	PollTimeout time.Duration
	Handle      HandlerFunc
}

// Run dequeues and processes jobs until the context is cancelled or a
// connectivity error occurs. An empty poll is not an error; the loop
// simply turns again.
func (l *Loop) Run(ctx context.Context) error {
	timeout := l.PollTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		payload, ok, err := l.Queue.Dequeue(ctx, l.QueueName, timeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if !ok {
			continue
		}
		if err := l.Handle(ctx, payload); err != nil {
			if appErr.IsFatal(err) {
				return err
			}
			// Handlers record per-job failures on the owning entity;
			// only connectivity errors stop the loop.
			logger.Error(ctx, "job handler returned non-fatal error",
				zap.String("queue", l.QueueName), zap.Error(err))
		}
	}
}

// Supervisor restarts a loop after connectivity failures with
// exponential backoff, giving up after MaxRestarts consecutive
// failures in a row.
type Supervisor struct {
	MaxRestarts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Run executes the loop under supervision until the context is done
// or the restart budget is exhausted.
func (s Supervisor) Run(ctx context.Context, name string, loop *Loop) error {
	maxRestarts := s.MaxRestarts
	if maxRestarts <= 0 {
		maxRestarts = 5
	}
	delay := s.BaseDelay
	if delay <= 0 {
		delay = time.Second
	}
	maxDelay := s.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	failures := 0
	for {
		start := time.Now()
		err := loop.Run(ctx)
		if err == nil {
			return nil
		}

		// A loop that ran for a while before failing earns a fresh
		// restart budget.
		if time.Since(start) > maxDelay {
			failures = 0
		}
		failures++
		if failures > maxRestarts {
			logger.Error(ctx, "worker loop giving up after repeated connectivity failures",
				zap.String("worker", name), zap.Int("failures", failures), zap.Error(err))
			return err
		}

		wait := delay << (failures - 1)
		if wait > maxDelay {
			wait = maxDelay
		}
		logger.Warn(ctx, "worker loop restarting after connectivity failure",
			zap.String("worker", name), zap.Duration("backoff", wait), zap.Error(err))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}
