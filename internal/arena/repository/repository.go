// Package repository provides id-keyed storage access for the arena
// entities. The worker processes are the sole writers of the
// status/log/score fields; creation and registration lists belong to
// the API tier.
package repository

import (
	"context"

	"botarena/internal/arena/model"
)

// BotRepository reads bots and records check outcomes.
type BotRepository interface {
	GetByID(ctx context.Context, id string) (*model.Bot, error)
	UpdateSubmitStatus(ctx context.Context, id string, status model.SubmitStatus) error
}

// MatchRepository manages match records and their run results.
type MatchRepository interface {
	Create(ctx context.Context, match *model.Match) error
	// GetByID excludes the potentially large log transcript.
	GetByID(ctx context.Context, id string) (*model.Match, error)
	GetByIDWithLog(ctx context.Context, id string) (*model.Match, error)
	// UpdateRunStatus persists the run status and discards any stored
	// transcript and score mapping; only SetResult writes those, so a
	// score is present exactly when the latest run reached RUN_SUCCESS.
	UpdateRunStatus(ctx context.Context, id string, status model.RunStatus) error
	// SetResult records the terminal success state: status, transcript
	// and score mapping together.
	SetResult(ctx context.Context, id string, status model.RunStatus, log, scoreJSON string) error
	Delete(ctx context.Context, id string) error
}

// ContestRepository reads contests and persists orchestration progress.
type ContestRepository interface {
	GetByID(ctx context.Context, id string) (*model.Contest, error)
	// Update persists status, score and the match-id list.
	Update(ctx context.Context, contest *model.Contest) error
}

// GameRepository reads game definitions.
type GameRepository interface {
	GetByID(ctx context.Context, id string) (*model.Game, error)
}

// UserRepository reads the account views needed for display names and
// system-user resolution.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
}
