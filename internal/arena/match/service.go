package match

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"botarena/internal/arena/model"
	"botarena/internal/arena/repository"
	"botarena/internal/arena/worker"
	"botarena/internal/common/queue"
	appErr "botarena/pkg/errors"
	"botarena/pkg/utils/contextkey"
	"botarena/pkg/utils/logger"
)

// Service processes run-match jobs one at a time through the executor.
type Service struct {
	executor    *Executor
	matches     repository.MatchRepository
	queue       queue.Queue
	pollTimeout time.Duration
}

// NewService creates the match worker service.
func NewService(executor *Executor, matches repository.MatchRepository, q queue.Queue, pollTimeout time.Duration) (*Service, error) {
	if executor == nil {
		return nil, appErr.ValidationError("executor", "required")
	}
	if matches == nil {
		return nil, appErr.ValidationError("matches", "required")
	}
	if q == nil {
		return nil, appErr.ValidationError("queue", "required")
	}
	return &Service{executor: executor, matches: matches, queue: q, pollTimeout: pollTimeout}, nil
}

// Loop binds the service to its queue for a supervised worker run.
func (s *Service) Loop() *worker.Loop {
	return &worker.Loop{
		Queue:       s.queue,
		QueueName:   model.QueueRunMatch,
		PollTimeout: s.pollTimeout,
		Handle:      s.HandleJob,
	}
}

// HandleJob processes one dequeued run-match payload. Execution
// failures end up on the match's run status; only connectivity errors
// come back as fatal.
func (s *Service) HandleJob(ctx context.Context, payload []byte) error {
	var job model.RunMatchJob
	if err := json.Unmarshal(payload, &job); err != nil {
		logger.Warn(ctx, "dropping malformed run-match job", zap.Error(err))
		return nil
	}
	if job.MatchID == "" {
		logger.Warn(ctx, "dropping run-match job without match id")
		return nil
	}

	ctx = context.WithValue(ctx, contextkey.JobID, job.MatchID)

	if err := s.executor.Execute(ctx, job.MatchID); err != nil {
		if appErr.Is(err, appErr.NotFound) {
			logger.Warn(ctx, "dropping run-match job for missing match",
				zap.String("match_id", job.MatchID))
			return nil
		}
		return err
	}

	if job.CallbackChannel == "" {
		return nil
	}
	mtch, err := s.matches.GetByID(ctx, job.MatchID)
	if err != nil {
		return err
	}
	done := model.MatchDone{UserID: mtch.UserID, MatchID: mtch.ID}
	raw, err := json.Marshal(done)
	if err != nil {
		return appErr.InternalError(err)
	}
	return s.queue.Notify(ctx, job.CallbackChannel, raw)
}
