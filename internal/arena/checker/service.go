// Package checker implements the bot checker worker: it compiles a
// submitted bot source through the build cache and records the outcome
// on the bot's submit status.
package checker

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"botarena/internal/arena/build"
	"botarena/internal/arena/model"
	"botarena/internal/arena/repository"
	"botarena/internal/arena/worker"
	"botarena/internal/arena/workspace"
	"botarena/internal/common/queue"
	appErr "botarena/pkg/errors"
	"botarena/pkg/utils/contextkey"
	"botarena/pkg/utils/logger"
)

// botTargetName is the filename of a bot's installed binary inside its
// workspace directory.
const botTargetName = "program"

// Config wires a checker Service.
type Config struct {
	Bots        repository.BotRepository
	Queue       queue.Queue
	Cache       *build.Cache
	Layout      workspace.Layout
	PollTimeout time.Duration
}

// Service processes check-bot jobs one at a time.
type Service struct {
	bots        repository.BotRepository
	queue       queue.Queue
	cache       *build.Cache
	layout      workspace.Layout
	pollTimeout time.Duration
}

// NewService validates the wiring and creates the checker service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Bots == nil {
		return nil, appErr.ValidationError("bots", "required")
	}
	if cfg.Queue == nil {
		return nil, appErr.ValidationError("queue", "required")
	}
	if cfg.Cache == nil {
		return nil, appErr.ValidationError("cache", "required")
	}
	if cfg.Layout.Root == "" {
		return nil, appErr.ValidationError("layout", "required")
	}
	return &Service{
		bots:        cfg.Bots,
		queue:       cfg.Queue,
		cache:       cfg.Cache,
		layout:      cfg.Layout,
		pollTimeout: cfg.PollTimeout,
	}, nil
}

// Loop binds the service to its queue for a supervised worker run.
func (s *Service) Loop() *worker.Loop {
	return &worker.Loop{
		Queue:       s.queue,
		QueueName:   model.QueueCheckBot,
		PollTimeout: s.pollTimeout,
		Handle:      s.HandleJob,
	}
}

// HandleJob processes one dequeued check-bot payload. Build and
// validation failures end up on the bot's submit status, not in the
// return value; only connectivity errors come back as fatal.
func (s *Service) HandleJob(ctx context.Context, payload []byte) error {
	var job model.CheckBotJob
	if err := json.Unmarshal(payload, &job); err != nil {
		logger.Warn(ctx, "dropping malformed check-bot job", zap.Error(err))
		return nil
	}
	if job.BotID == "" {
		logger.Warn(ctx, "dropping check-bot job without bot id")
		return nil
	}

	ctx = context.WithValue(ctx, contextkey.JobID, job.BotID)

	bot, err := s.bots.GetByID(ctx, job.BotID)
	if err != nil {
		if appErr.Is(err, appErr.NotFound) {
			// The bot was deleted between enqueue and dequeue. Nothing
			// to record the outcome on, so the job is dropped.
			logger.Warn(ctx, "dropping check-bot job for missing bot",
				zap.String("bot_id", job.BotID))
			return nil
		}
		return err
	}

	logger.Info(ctx, "checking bot",
		zap.String("bot_id", bot.ID), zap.String("user_id", bot.UserID))

	status := s.check(ctx, bot)
	if err := s.bots.UpdateSubmitStatus(ctx, bot.ID, status); err != nil {
		return err
	}
	logger.Info(ctx, "bot check finished",
		zap.String("bot_id", bot.ID), zap.String("stage", string(status.Stage)))

	if job.CallbackChannel != "" {
		done := model.CheckBotDone{UserID: bot.UserID, BotID: bot.ID}
		raw, err := json.Marshal(done)
		if err != nil {
			return appErr.InternalError(err)
		}
		if err := s.queue.Notify(ctx, job.CallbackChannel, raw); err != nil {
			return err
		}
	}
	return nil
}

// check runs the build and returns the resulting submit status without
// persisting it.
func (s *Service) check(ctx context.Context, bot *model.Bot) model.SubmitStatus {
	status := bot.SubmitStatus

	if bot.Source == nil {
		status.Append(model.SubmitCheckError, "no source uploaded")
		return status
	}

	result, err := s.cache.Prepare(ctx, s.layout.BotBuildDir(bot.ID), build.Source{
		Name:    bot.Source.Name,
		Content: bot.Source.Content,
	}, botTargetName)
	if err != nil {
		status.Append(model.SubmitCheckError, err.Error())
		return status
	}

	if result.BuildLog != "" {
		status.Append(model.SubmitCheckSuccess, result.BuildLog)
	} else {
		status.Append(model.SubmitCheckSuccess, "build ok")
	}
	return status
}
