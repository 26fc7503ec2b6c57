// Package contest runs round-robin tournaments and guards the contest
// status state machine.
package contest

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"botarena/internal/arena/model"
	"botarena/internal/arena/repository"
	appErr "botarena/pkg/errors"
	"botarena/pkg/utils/logger"
)

// MatchExecutor runs one match to a terminal stage.
type MatchExecutor interface {
	Execute(ctx context.Context, matchID string) error
}

// Config wires an Orchestrator.
type Config struct {
	Contests repository.ContestRepository
	Matches  repository.MatchRepository
	Games    repository.GameRepository
	Executor MatchExecutor
	// SystemUserID owns every contest-created match.
	SystemUserID string
}

// Orchestrator executes contests sequentially: one pairing at a time,
// persisting progress after every created match so a crashed run is
// inspectable from the contest's match list.
type Orchestrator struct {
	contests     repository.ContestRepository
	matches      repository.MatchRepository
	games        repository.GameRepository
	executor     MatchExecutor
	systemUserID string
}

// NewOrchestrator validates the wiring and creates an orchestrator.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Contests == nil {
		return nil, appErr.ValidationError("contests", "required")
	}
	if cfg.Matches == nil {
		return nil, appErr.ValidationError("matches", "required")
	}
	if cfg.Games == nil {
		return nil, appErr.ValidationError("games", "required")
	}
	if cfg.Executor == nil {
		return nil, appErr.ValidationError("executor", "required")
	}
	if cfg.SystemUserID == "" {
		return nil, appErr.ValidationError("system_user_id", "required")
	}
	return &Orchestrator{
		contests:     cfg.Contests,
		matches:      cfg.Matches,
		games:        cfg.Games,
		executor:     cfg.Executor,
		systemUserID: cfg.SystemUserID,
	}, nil
}

// RunContest plays every unordered bot pairing of a RUNNING contest in
// registration order. Each pairing awards exactly one point: 1 to the
// higher scorer or 0.5 each on a tie. The first match that does not
// reach RUN_SUCCESS moves the contest to RUN_ERROR and aborts the
// remaining pairings.
func (o *Orchestrator) RunContest(ctx context.Context, contestID string) error {
	contest, err := o.contests.GetByID(ctx, contestID)
	if err != nil {
		return err
	}
	if err := distinctBotIDs(contest); err != nil {
		return o.failContest(ctx, contest, err)
	}

	game, err := o.games.GetByID(ctx, contest.GameID)
	if err != nil {
		return err
	}
	gameMap, err := game.MapForPlayers(2)
	if err != nil {
		return o.failContest(ctx, contest, err)
	}

	logger.Info(ctx, "running contest",
		zap.String("contest_id", contest.ID), zap.Int("bots", len(contest.BotIDs)))

	points := make(map[string]float64, len(contest.BotIDs))
	for _, botID := range contest.BotIDs {
		points[botID] = 0
	}

	for i := 0; i < len(contest.BotIDs); i++ {
		for j := i + 1; j < len(contest.BotIDs); j++ {
			botA, botB := contest.BotIDs[i], contest.BotIDs[j]

			mtch, err := o.playPairing(ctx, contest, game.ID, gameMap.Name, botA, botB)
			if err != nil {
				return err
			}
			if mtch.RunStatus.Stage != model.RunSuccess {
				logger.Warn(ctx, "contest match failed",
					zap.String("contest_id", contest.ID),
					zap.String("match_id", mtch.ID),
					zap.String("stage", string(mtch.RunStatus.Stage)))
				return o.failContest(ctx, contest, nil)
			}

			scores, err := mtch.Scores()
			if err != nil {
				return o.failContest(ctx, contest, err)
			}
			awardPairing(points, scores, botA, botB)
		}
	}

	raw, err := json.Marshal(points)
	if err != nil {
		return appErr.InternalError(err)
	}
	scoreJSON := string(raw)
	contest.Status = model.ContestFinished
	contest.ScoreJSON = &scoreJSON
	if err := o.contests.Update(ctx, contest); err != nil {
		return err
	}
	logger.Info(ctx, "contest finished",
		zap.String("contest_id", contest.ID), zap.Int("matches", len(contest.MatchIDs)))
	return nil
}

// playPairing creates, persists and executes one match between two
// bots. The match id is appended to the contest and persisted before
// execution so partial progress stays visible.
func (o *Orchestrator) playPairing(ctx context.Context, contest *model.Contest,
	gameID, mapName, botA, botB string) (*model.Match, error) {

	mtch := &model.Match{
		ID:      uuid.NewString(),
		UserID:  o.systemUserID,
		GameID:  gameID,
		MapName: mapName,
		BotIDs:  []string{botA, botB},
		RunStatus: model.RunStatus{
			Stage: model.RunRegistered,
		},
	}
	if err := o.matches.Create(ctx, mtch); err != nil {
		return nil, err
	}
	contest.MatchIDs = append(contest.MatchIDs, mtch.ID)
	if err := o.contests.Update(ctx, contest); err != nil {
		return nil, err
	}

	if err := o.executor.Execute(ctx, mtch.ID); err != nil {
		return nil, err
	}
	return o.matches.GetByID(ctx, mtch.ID)
}

// failContest moves the contest to RUN_ERROR. A non-nil cause is
// logged; the cause is not returned because the tournament ending in
// RUN_ERROR is the recorded outcome, not a worker-fatal condition.
func (o *Orchestrator) failContest(ctx context.Context, contest *model.Contest, cause error) error {
	if cause != nil {
		logger.Error(ctx, "contest run failed",
			zap.String("contest_id", contest.ID), zap.Error(cause))
	}
	contest.Status = model.ContestRunError
	return o.contests.Update(ctx, contest)
}

// awardPairing adds one pairing's tournament points: 1 to the strictly
// higher scorer, 0.5 each on a tie. A bot absent from the score
// mapping counts as scoring 0.
func awardPairing(points map[string]float64, scores map[string]float64, botA, botB string) {
	scoreA, scoreB := scores[botA], scores[botB]
	switch {
	case scoreA > scoreB:
		points[botA]++
	case scoreB > scoreA:
		points[botB]++
	default:
		points[botA] += 0.5
		points[botB] += 0.5
	}
}

// distinctBotIDs checks the registration invariant that contest bots
// are pairwise distinct. A violation is a defect in the registration
// path, reported as a consistency error.
func distinctBotIDs(contest *model.Contest) error {
	seen := make(map[string]struct{}, len(contest.BotIDs))
	for _, id := range contest.BotIDs {
		if _, dup := seen[id]; dup {
			return appErr.Newf(appErr.DuplicateContestBots, "contest %s registered bot %s twice", contest.ID, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
