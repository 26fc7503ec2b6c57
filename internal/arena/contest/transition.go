package contest

import (
	"context"

	"go.uber.org/zap"

	"botarena/internal/arena/model"
	appErr "botarena/pkg/errors"
	"botarena/pkg/utils/logger"
)

// TransitionResult reports a requested status change. A refused
// transition is not an error; the caller shows From and To instead.
type TransitionResult struct {
	From    model.ContestStatus
	To      model.ContestStatus
	Applied bool
}

// Transition applies a requested contest status change if the state
// machine allows it.
//
// OPEN and CLOSED swap freely. Reopening from FINISHED or RUN_ERROR
// discards the contest's matches before going back to OPEN. RUNNING is
// entered only from OPEN or CLOSED; leaving RUNNING is reserved for
// the orchestrator itself. Everything else is refused as a no-op.
func (o *Orchestrator) Transition(ctx context.Context, contestID string, to model.ContestStatus) (TransitionResult, error) {
	contest, err := o.contests.GetByID(ctx, contestID)
	if err != nil {
		return TransitionResult{}, err
	}
	result := TransitionResult{From: contest.Status, To: to}

	if !allowed(contest.Status, to) {
		logger.Info(ctx, "contest transition refused",
			zap.String("contest_id", contestID),
			zap.String("from", string(result.From)), zap.String("to", string(to)))
		return result, nil
	}

	if to == model.ContestOpen && terminal(contest.Status) {
		if err := o.discardMatches(ctx, contest); err != nil {
			return result, err
		}
	}

	contest.Status = to
	if err := o.contests.Update(ctx, contest); err != nil {
		return result, err
	}
	result.Applied = true
	return result, nil
}

func allowed(from, to model.ContestStatus) bool {
	switch to {
	case model.ContestOpen:
		return from == model.ContestClosed || terminal(from)
	case model.ContestClosed:
		return from == model.ContestOpen
	case model.ContestRunning:
		return from == model.ContestOpen || from == model.ContestClosed
	}
	return false
}

func terminal(status model.ContestStatus) bool {
	return status == model.ContestFinished || status == model.ContestRunError
}

// discardMatches deletes every match of a finished or failed contest
// and clears its match list and score, preparing a fresh run.
func (o *Orchestrator) discardMatches(ctx context.Context, contest *model.Contest) error {
	for _, matchID := range contest.MatchIDs {
		if err := o.matches.Delete(ctx, matchID); err != nil {
			if appErr.Is(err, appErr.NotFound) {
				continue
			}
			return err
		}
	}
	contest.MatchIDs = nil
	contest.ScoreJSON = nil
	return nil
}
