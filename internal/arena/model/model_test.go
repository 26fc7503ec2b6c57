package model

import (
	"testing"

	appErr "botarena/pkg/errors"
)

func TestSubmitStatusAppend(t *testing.T) {
	var status SubmitStatus
	status.Append(SubmitSourceUploadDone, "source stored")
	status.Append(SubmitCheckSuccess, "build ok")

	if status.Stage != SubmitCheckSuccess {
		t.Fatalf("stage: got %s", status.Stage)
	}
	want := "[SOURCE_UPLOAD_DONE] source stored\n[CHECK_SUCCESS] build ok"
	if status.Log != want {
		t.Fatalf("log: got %q want %q", status.Log, want)
	}
}

func TestRunStatusAppendEmptyLineMovesStageOnly(t *testing.T) {
	var status RunStatus
	status.Append(RunPrepareGameServerDone, "")
	if status.Stage != RunPrepareGameServerDone {
		t.Fatalf("stage: got %s", status.Stage)
	}
	if status.Log != "" {
		t.Fatalf("log: got %q", status.Log)
	}
}

func TestRunStageTerminal(t *testing.T) {
	terminal := []RunStage{RunPrepareGameServerErr, RunPrepareBotsErr, RunSuccess, RunError}
	for _, stage := range terminal {
		if !stage.Terminal() {
			t.Fatalf("%s should be terminal", stage)
		}
	}
	for _, stage := range []RunStage{RunRegistered, RunPrepareGameServerDone, RunPrepareBotsDone} {
		if stage.Terminal() {
			t.Fatalf("%s should not be terminal", stage)
		}
	}
}

func TestMatchScores(t *testing.T) {
	scoreJSON := `{"a":10,"b":5.5}`
	match := Match{ID: "m1", ScoreJSON: &scoreJSON}

	scores, err := match.Scores()
	if err != nil {
		t.Fatalf("scores: %v", err)
	}
	if scores["a"] != 10 || scores["b"] != 5.5 {
		t.Fatalf("scores: got %v", scores)
	}
}

func TestMatchScoresMissing(t *testing.T) {
	match := Match{ID: "m1"}
	if _, err := match.Scores(); !appErr.Is(err, appErr.ScoreDecodeFailed) {
		t.Fatalf("expected ScoreDecodeFailed, got %v", err)
	}
}

func TestMatchScoresMalformed(t *testing.T) {
	scoreJSON := `["not","a","map"]`
	match := Match{ID: "m1", ScoreJSON: &scoreJSON}
	if _, err := match.Scores(); !appErr.Is(err, appErr.ScoreDecodeFailed) {
		t.Fatalf("expected ScoreDecodeFailed, got %v", err)
	}
}

func TestGameMapSelection(t *testing.T) {
	game := Game{
		ID: "g1",
		Maps: []GameMap{
			{Name: "duel", MinPlayers: 2, MaxPlayers: 2},
			{Name: "skirmish", MinPlayers: 2, MaxPlayers: 4},
			{Name: "brawl", MinPlayers: 4, MaxPlayers: 8},
		},
	}

	m, err := game.MapForPlayers(2)
	if err != nil || m.Name != "duel" {
		t.Fatalf("MapForPlayers(2): got %q, %v", m.Name, err)
	}
	m, err = game.MapForPlayers(3)
	if err != nil || m.Name != "skirmish" {
		t.Fatalf("MapForPlayers(3): got %q, %v", m.Name, err)
	}
	if _, err := game.MapForPlayers(9); !appErr.Is(err, appErr.MapNotFound) {
		t.Fatalf("expected MapNotFound, got %v", err)
	}

	m, err = game.MapByName("brawl")
	if err != nil || m.Name != "brawl" {
		t.Fatalf("MapByName: got %q, %v", m.Name, err)
	}
	if _, err := game.MapByName("void"); !appErr.Is(err, appErr.MapNotFound) {
		t.Fatalf("expected MapNotFound, got %v", err)
	}
}
