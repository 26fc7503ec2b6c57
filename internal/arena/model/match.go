package model

import (
	"encoding/json"
	"fmt"

	appErr "botarena/pkg/errors"
)

// RunStage is a node in the match execution state machine. Stages
// ending in _ERROR are terminal; _DONE stages continue the pipeline.
type RunStage string

const (
	RunRegistered            RunStage = "REGISTERED"
	RunPrepareGameServerDone RunStage = "PREPARE_GAME_SERVER_DONE"
	RunPrepareGameServerErr  RunStage = "PREPARE_GAME_SERVER_ERROR"
	RunPrepareBotsDone       RunStage = "PREPARE_BOTS_DONE"
	RunPrepareBotsErr        RunStage = "PREPARE_BOTS_ERROR"
	RunSuccess               RunStage = "RUN_SUCCESS"
	RunError                 RunStage = "RUN_ERROR"
)

// Terminal reports whether the stage ends a match execution.
func (s RunStage) Terminal() bool {
	switch s {
	case RunPrepareGameServerErr, RunPrepareBotsErr, RunSuccess, RunError:
		return true
	}
	return false
}

// RunStatus carries the current stage plus the cumulative log text.
type RunStatus struct {
	Stage RunStage `json:"stage"`
	Log   string   `json:"log"`
}

// Append adds a line to the cumulative log and moves to the stage.
func (s *RunStatus) Append(stage RunStage, line string) {
	s.Stage = stage
	if line == "" {
		return
	}
	if s.Log != "" && s.Log[len(s.Log)-1] != '\n' {
		s.Log += "\n"
	}
	s.Log += fmt.Sprintf("[%s] %s", stage, line)
}

// Match is one game run between an ordered list of bots. Duplicate
// bot ids are allowed (a bot may face itself).
//
// ScoreJSON (bot id -> numeric score) is set if and only if the run
// reached RUN_SUCCESS. Log holds the game server's match transcript.
type Match struct {
	ID        string
	UserID    string
	GameID    string
	MapName   string
	BotIDs    []string
	RunStatus RunStatus
	Log       *string
	ScoreJSON *string
}

// Scores decodes the score mapping. Absent or malformed score data is
// a consistency error: RUN_SUCCESS guarantees its presence.
func (m *Match) Scores() (map[string]float64, error) {
	if m.ScoreJSON == nil {
		return nil, appErr.Newf(appErr.ScoreDecodeFailed, "match %s has no score data", m.ID)
	}
	var scores map[string]float64
	if err := json.Unmarshal([]byte(*m.ScoreJSON), &scores); err != nil {
		return nil, appErr.Wrapf(err, appErr.ScoreDecodeFailed, "decode scores of match %s failed: %v", m.ID, err)
	}
	return scores, nil
}
