// Package match implements match execution: preparing the game server
// and all participant bots through the build cache, running the game
// server process and recording its outputs on the match.
package match

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"botarena/internal/arena/build"
	"botarena/internal/arena/model"
	"botarena/internal/arena/repository"
	"botarena/internal/arena/runner"
	"botarena/internal/arena/workspace"
	appErr "botarena/pkg/errors"
	"botarena/pkg/utils/logger"
)

const (
	serverTargetName = "server"
	botTargetName    = "program"

	configFileName = "match.json"
	logFileName    = "match.log"
	scoreFileName  = "scores.json"
)

// configBot is one participant entry in the match config file handed
// to the game server.
type configBot struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	RunCommand []string `json:"runCommand"`
}

// configFile is the structured match configuration the game server
// reads: the map path plus the resolved bot run commands.
type configFile struct {
	Map  string      `json:"map"`
	Bots []configBot `json:"bots"`
}

// Config wires an Executor.
type Config struct {
	Matches repository.MatchRepository
	Bots    repository.BotRepository
	Games   repository.GameRepository
	Users   repository.UserRepository
	Cache   *build.Cache
	Runner  *runner.Runner
	Layout  workspace.Layout
	// SystemUserID marks contest-originated matches: those use the bot
	// owner's username as display name instead of the bot's own name.
	SystemUserID string
}

// Executor runs a single match end to end. It is shared between the
// queue-driven worker and the contest orchestrator, which calls it
// synchronously.
type Executor struct {
	matches      repository.MatchRepository
	bots         repository.BotRepository
	games        repository.GameRepository
	users        repository.UserRepository
	cache        *build.Cache
	runner       *runner.Runner
	layout       workspace.Layout
	systemUserID string
}

// NewExecutor validates the wiring and creates a match executor.
func NewExecutor(cfg Config) (*Executor, error) {
	if cfg.Matches == nil {
		return nil, appErr.ValidationError("matches", "required")
	}
	if cfg.Bots == nil {
		return nil, appErr.ValidationError("bots", "required")
	}
	if cfg.Games == nil {
		return nil, appErr.ValidationError("games", "required")
	}
	if cfg.Users == nil {
		return nil, appErr.ValidationError("users", "required")
	}
	if cfg.Cache == nil {
		return nil, appErr.ValidationError("cache", "required")
	}
	if cfg.Runner == nil {
		return nil, appErr.ValidationError("runner", "required")
	}
	if cfg.Layout.Root == "" {
		return nil, appErr.ValidationError("layout", "required")
	}
	if cfg.SystemUserID == "" {
		return nil, appErr.ValidationError("system_user_id", "required")
	}
	return &Executor{
		matches:      cfg.Matches,
		bots:         cfg.Bots,
		games:        cfg.Games,
		users:        cfg.Users,
		cache:        cfg.Cache,
		runner:       cfg.Runner,
		layout:       cfg.Layout,
		systemUserID: cfg.SystemUserID,
	}, nil
}

// participant is one prepared bot with its resolved display name.
type participant struct {
	botID   string
	name    string
	command []string
}

// Execute runs the match through its full pipeline. Build and run
// failures are recorded as terminal error stages on the match and do
// not surface as a returned error; only storage and queue connectivity
// failures (and a missing match) do.
func (e *Executor) Execute(ctx context.Context, matchID string) error {
	mtch, err := e.matches.GetByID(ctx, matchID)
	if err != nil {
		return err
	}
	status := mtch.RunStatus

	logger.Info(ctx, "executing match",
		zap.String("match_id", mtch.ID), zap.String("game_id", mtch.GameID))

	game, serverResult, err := e.prepareGameServer(ctx, mtch)
	if err != nil {
		if appErr.IsFatal(err) {
			return err
		}
		status.Append(model.RunPrepareGameServerErr, err.Error())
		return e.recordTerminal(ctx, mtch.ID, status)
	}
	status.Append(model.RunPrepareGameServerDone, "game server ready")
	e.recordProgress(ctx, mtch.ID, status)

	bots, err := e.prepareBots(ctx, mtch)
	if err != nil {
		if appErr.IsFatal(err) {
			return err
		}
		status.Append(model.RunPrepareBotsErr, err.Error())
		return e.recordTerminal(ctx, mtch.ID, status)
	}
	status.Append(model.RunPrepareBotsDone, fmt.Sprintf("%d bots ready", len(bots)))
	e.recordProgress(ctx, mtch.ID, status)

	transcript, scoreJSON, err := e.run(ctx, mtch, game, serverResult, bots)
	if err != nil {
		status.Append(model.RunError, err.Error())
		return e.recordTerminal(ctx, mtch.ID, status)
	}

	status.Append(model.RunSuccess, "match finished")
	if err := e.matches.SetResult(ctx, mtch.ID, status, transcript, scoreJSON); err != nil {
		return err
	}
	logger.Info(ctx, "match finished", zap.String("match_id", mtch.ID))
	return nil
}

// prepareGameServer builds the game's server program through the cache.
func (e *Executor) prepareGameServer(ctx context.Context, mtch *model.Match) (*model.Game, build.Result, error) {
	game, err := e.games.GetByID(ctx, mtch.GameID)
	if err != nil {
		return nil, build.Result{}, err
	}
	result, err := e.cache.Prepare(ctx, e.layout.GameBuildDir(game.ID), build.Source{
		Name:    game.ServerSource.Name,
		Content: game.ServerSource.Content,
	}, serverTargetName)
	if err != nil {
		return nil, build.Result{}, err
	}
	return game, result, nil
}

// prepareBots builds every participant and resolves display names.
// Contest matches (owned by the system user) show the bot owner's
// username; repeated names and repeated participant ids both get a
// numeric suffix per repetition.
func (e *Executor) prepareBots(ctx context.Context, mtch *model.Match) ([]participant, error) {
	contestMatch := mtch.UserID == e.systemUserID

	participants := make([]participant, 0, len(mtch.BotIDs))
	for _, botID := range mtch.BotIDs {
		bot, err := e.bots.GetByID(ctx, botID)
		if err != nil {
			if appErr.Is(err, appErr.NotFound) {
				return nil, appErr.Newf(appErr.ConsistencyViolation, "participant bot %s does not exist", botID)
			}
			return nil, err
		}
		if bot.Source == nil {
			return nil, appErr.Newf(appErr.SourceMissing, "bot %s has no uploaded source", botID)
		}

		result, err := e.cache.Prepare(ctx, e.layout.BotBuildDir(bot.ID), build.Source{
			Name:    bot.Source.Name,
			Content: bot.Source.Content,
		}, botTargetName)
		if err != nil {
			return nil, appErr.Wrapf(err, appErr.GetCode(err), "prepare bot %s failed: %v", botID, err)
		}
		command, err := build.ExpandRunCommand(result.RunCommand, result.ProgramPath)
		if err != nil {
			return nil, err
		}

		name := bot.Name
		if contestMatch {
			owner, err := e.users.GetByID(ctx, bot.UserID)
			if err != nil {
				return nil, err
			}
			name = owner.Username
		}
		participants = append(participants, participant{botID: botID, name: name, command: command})
	}

	disambiguate(participants)
	return participants, nil
}

// disambiguate suffixes repeated display names and repeated bot ids
// with .1, .2 and so on, in participant order.
func disambiguate(participants []participant) {
	nameCount := make(map[string]int, len(participants))
	idCount := make(map[string]int, len(participants))
	for _, p := range participants {
		nameCount[p.name]++
		idCount[p.botID]++
	}

	nameSeen := make(map[string]int, len(participants))
	idSeen := make(map[string]int, len(participants))
	for i := range participants {
		p := &participants[i]
		if nameCount[p.name] > 1 {
			nameSeen[p.name]++
			p.name = fmt.Sprintf("%s.%d", p.name, nameSeen[p.name])
		}
		if idCount[p.botID] > 1 {
			idSeen[p.botID]++
			p.botID = fmt.Sprintf("%s.%d", p.botID, idSeen[p.botID])
		}
	}
}

// run materializes the match directory, invokes the game server and
// reads back the transcript and score file it produced.
func (e *Executor) run(ctx context.Context, mtch *model.Match, game *model.Game,
	server build.Result, bots []participant) (transcript, scoreJSON string, err error) {

	mapDef, err := game.MapByName(mtch.MapName)
	if err != nil {
		return "", "", err
	}

	matchDir := e.layout.MatchDir(mtch.ID)
	if err := os.RemoveAll(matchDir); err != nil {
		return "", "", appErr.Wrapf(err, appErr.InternalServerError, "clear match dir failed: %v", err)
	}
	if err := os.MkdirAll(matchDir, 0755); err != nil {
		return "", "", appErr.Wrapf(err, appErr.InternalServerError, "create match dir failed: %v", err)
	}

	mapPath := filepath.Join(matchDir, filepath.Base(mapDef.Name))
	if err := os.WriteFile(mapPath, []byte(mapDef.Content), 0644); err != nil {
		return "", "", appErr.Wrapf(err, appErr.InternalServerError, "write map file failed: %v", err)
	}

	cfg := configFile{Map: mapPath, Bots: make([]configBot, 0, len(bots))}
	for _, p := range bots {
		cfg.Bots = append(cfg.Bots, configBot{ID: p.botID, Name: p.name, RunCommand: p.command})
	}
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", "", appErr.InternalError(err)
	}
	configPath := filepath.Join(matchDir, configFileName)
	if err := os.WriteFile(configPath, raw, 0644); err != nil {
		return "", "", appErr.Wrapf(err, appErr.InternalServerError, "write match config failed: %v", err)
	}

	argv, err := build.ExpandRunCommand(server.RunCommand, server.ProgramPath, configPath)
	if err != nil {
		return "", "", err
	}

	started := time.Now()
	out, runErr := e.runner.Run(ctx, matchDir, argv)
	if runErr != nil {
		// The captured output goes into the message so the failure
		// context survives on the match run log.
		return "", "", appErr.Wrapf(runErr, appErr.GetCode(runErr),
			"game server failed: %s", runFailureDetail(out))
	}
	logger.Info(ctx, "game server finished",
		zap.String("match_id", mtch.ID), zap.Duration("elapsed", time.Since(started)))

	logData, err := os.ReadFile(filepath.Join(matchDir, logFileName))
	if err != nil {
		return "", "", appErr.Newf(appErr.OutputFileMissing, "game server wrote no %s", logFileName)
	}
	scoreData, err := os.ReadFile(filepath.Join(matchDir, scoreFileName))
	if err != nil {
		return "", "", appErr.Newf(appErr.OutputFileMissing, "game server wrote no %s", scoreFileName)
	}
	var scores map[string]float64
	if err := json.Unmarshal(scoreData, &scores); err != nil {
		return "", "", appErr.Wrapf(err, appErr.ScoreDecodeFailed, "game server score file is not a score mapping: %v", err)
	}

	return string(logData), string(scoreData), nil
}

func runFailureDetail(out runner.Output) string {
	if out.Stderr != "" {
		return out.Stderr
	}
	if out.Stdout != "" {
		return out.Stdout
	}
	return fmt.Sprintf("exit code %d", out.ExitCode)
}

// recordProgress persists an intermediate stage best-effort.
func (e *Executor) recordProgress(ctx context.Context, matchID string, status model.RunStatus) {
	if err := e.matches.UpdateRunStatus(ctx, matchID, status); err != nil {
		logger.Warn(ctx, "persist match progress failed",
			zap.String("match_id", matchID), zap.String("stage", string(status.Stage)), zap.Error(err))
	}
}

// recordTerminal persists a terminal error stage. Unlike progress
// updates this must succeed before the caller moves on.
func (e *Executor) recordTerminal(ctx context.Context, matchID string, status model.RunStatus) error {
	if err := e.matches.UpdateRunStatus(ctx, matchID, status); err != nil {
		return err
	}
	logger.Info(ctx, "match ended",
		zap.String("match_id", matchID), zap.String("stage", string(status.Stage)))
	return nil
}
