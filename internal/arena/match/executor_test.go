package match

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"botarena/internal/arena/build"
	"botarena/internal/arena/model"
	"botarena/internal/arena/runner"
	"botarena/internal/arena/workspace"
	appErr "botarena/pkg/errors"
)

const testSystemUserID = "system-user"

type memMatchRepo struct {
	mu      sync.Mutex
	matches map[string]*model.Match
}

func newMemMatchRepo(matches ...*model.Match) *memMatchRepo {
	repo := &memMatchRepo{matches: map[string]*model.Match{}}
	for _, m := range matches {
		copied := *m
		repo.matches[m.ID] = &copied
	}
	return repo
}

func (r *memMatchRepo) Create(_ context.Context, m *model.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *m
	r.matches[m.ID] = &copied
	return nil
}

func (r *memMatchRepo) GetByID(_ context.Context, id string) (*model.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return nil, appErr.NotFoundError("match")
	}
	copied := *m
	copied.Log = nil
	return &copied, nil
}

func (r *memMatchRepo) GetByIDWithLog(_ context.Context, id string) (*model.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return nil, appErr.NotFoundError("match")
	}
	copied := *m
	return &copied, nil
}

func (r *memMatchRepo) UpdateRunStatus(_ context.Context, id string, status model.RunStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return appErr.NotFoundError("match")
	}
	m.RunStatus = status
	m.Log = nil
	m.ScoreJSON = nil
	return nil
}

func (r *memMatchRepo) SetResult(_ context.Context, id string, status model.RunStatus, log, scoreJSON string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return appErr.NotFoundError("match")
	}
	m.RunStatus = status
	m.Log = &log
	m.ScoreJSON = &scoreJSON
	return nil
}

func (r *memMatchRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.matches, id)
	return nil
}

type memBotRepo struct {
	bots map[string]*model.Bot
}

func (r *memBotRepo) GetByID(_ context.Context, id string) (*model.Bot, error) {
	bot, ok := r.bots[id]
	if !ok {
		return nil, appErr.NotFoundError("bot")
	}
	copied := *bot
	return &copied, nil
}

func (r *memBotRepo) UpdateSubmitStatus(context.Context, string, model.SubmitStatus) error {
	return nil
}

type memGameRepo struct {
	games map[string]*model.Game
}

func (r *memGameRepo) GetByID(_ context.Context, id string) (*model.Game, error) {
	game, ok := r.games[id]
	if !ok {
		return nil, appErr.NotFoundError("game")
	}
	copied := *game
	return &copied, nil
}

type memUserRepo struct {
	users map[string]*model.User
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, appErr.NotFoundError("user")
	}
	copied := *user
	return &copied, nil
}

func (r *memUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	for _, user := range r.users {
		if user.Username == username {
			copied := *user
			return &copied, nil
		}
	}
	return nil, appErr.NotFoundError("user")
}

func zipSource(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

// serverSource packages a game server whose run step writes the match
// transcript and score file expected by the executor.
func serverSource(t *testing.T, script string) model.SourceFile {
	t.Helper()
	return model.SourceFile{
		Name: "server.zip",
		Content: zipSource(t, map[string]string{
			build.MarkerFileName: `{"build":"sh -c true","programPath":"server.sh","run":"sh %program"}`,
			"server.sh":          script,
		}),
	}
}

func botSource(t *testing.T) *model.SourceFile {
	t.Helper()
	return &model.SourceFile{
		Name: "bot.zip",
		Content: zipSource(t, map[string]string{
			build.MarkerFileName: `{"build":"sh -c \"printf run > prog\"","programPath":"prog","run":"sh %program"}`,
		}),
	}
}

type fixture struct {
	executor *Executor
	matches  *memMatchRepo
	layout   workspace.Layout
}

func newFixture(t *testing.T, serverScript string, matches ...*model.Match) *fixture {
	t.Helper()
	layout := workspace.NewLayout(t.TempDir())

	bots := &memBotRepo{bots: map[string]*model.Bot{
		"botA": {ID: "botA", UserID: "u1", Name: "Crusher", Source: botSource(t)},
		"botB": {ID: "botB", UserID: "u2", Name: "Muncher", Source: botSource(t)},
	}}
	games := &memGameRepo{games: map[string]*model.Game{
		"g1": {
			ID:   "g1",
			Name: "gridlock",
			Maps: []model.GameMap{
				{Name: "duel", MinPlayers: 2, MaxPlayers: 2, Content: "#####\n#...#\n#####\n"},
			},
			ServerSource: serverSource(t, serverScript),
			MinPlayers:   2,
			MaxPlayers:   2,
		},
	}}
	users := &memUserRepo{users: map[string]*model.User{
		"u1": {ID: "u1", Username: "alice"},
		"u2": {ID: "u2", Username: "bob"},
	}}

	matchRepo := newMemMatchRepo(matches...)
	executor, err := NewExecutor(Config{
		Matches:      matchRepo,
		Bots:         bots,
		Games:        games,
		Users:        users,
		Cache:        build.NewCache(runner.New(30 * time.Second)),
		Runner:       runner.New(30 * time.Second),
		Layout:       layout,
		SystemUserID: testSystemUserID,
	})
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}
	return &fixture{executor: executor, matches: matchRepo, layout: layout}
}

const happyServerScript = `echo match transcript > match.log
printf '{"botA":10,"botB":5}' > scores.json
`

func TestExecuteSuccess(t *testing.T) {
	f := newFixture(t, happyServerScript, &model.Match{
		ID: "m1", UserID: "owner", GameID: "g1", MapName: "duel",
		BotIDs:    []string{"botA", "botB"},
		RunStatus: model.RunStatus{Stage: model.RunRegistered},
	})

	if err := f.executor.Execute(context.Background(), "m1"); err != nil {
		t.Fatalf("execute: %v", err)
	}

	mtch, err := f.matches.GetByIDWithLog(context.Background(), "m1")
	if err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if mtch.RunStatus.Stage != model.RunSuccess {
		t.Fatalf("stage: got %s, log %q", mtch.RunStatus.Stage, mtch.RunStatus.Log)
	}
	if mtch.Log == nil || *mtch.Log != "match transcript\n" {
		t.Fatalf("transcript: got %v", mtch.Log)
	}
	scores, err := mtch.Scores()
	if err != nil {
		t.Fatalf("scores: %v", err)
	}
	if scores["botA"] != 10 || scores["botB"] != 5 {
		t.Fatalf("scores: got %v", scores)
	}
	for _, stage := range []string{
		string(model.RunPrepareGameServerDone),
		string(model.RunPrepareBotsDone),
		string(model.RunSuccess),
	} {
		if !strings.Contains(mtch.RunStatus.Log, stage) {
			t.Fatalf("run log missing %s: %q", stage, mtch.RunStatus.Log)
		}
	}
}

func TestExecuteWritesMatchConfig(t *testing.T) {
	f := newFixture(t, happyServerScript, &model.Match{
		ID: "m1", UserID: "owner", GameID: "g1", MapName: "duel",
		BotIDs: []string{"botA", "botB"},
	})
	if err := f.executor.Execute(context.Background(), "m1"); err != nil {
		t.Fatalf("execute: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(f.layout.MatchDir("m1"), configFileName))
	if err != nil {
		t.Fatalf("read match config: %v", err)
	}
	var cfg configFile
	if err := json.Unmarshal(raw, &cfg); err != nil {
		t.Fatalf("decode match config: %v", err)
	}

	if filepath.Base(cfg.Map) != "duel" {
		t.Fatalf("map path: got %q", cfg.Map)
	}
	mapData, err := os.ReadFile(cfg.Map)
	if err != nil || !strings.Contains(string(mapData), "#####") {
		t.Fatalf("map content: %q, %v", mapData, err)
	}

	if len(cfg.Bots) != 2 {
		t.Fatalf("bots: got %d", len(cfg.Bots))
	}
	if cfg.Bots[0].ID != "botA" || cfg.Bots[0].Name != "Crusher" {
		t.Fatalf("first bot entry: %+v", cfg.Bots[0])
	}
	if cfg.Bots[1].ID != "botB" || cfg.Bots[1].Name != "Muncher" {
		t.Fatalf("second bot entry: %+v", cfg.Bots[1])
	}
	wantCommand := []string{"sh", filepath.Join(f.layout.BotDir("botA"), "program")}
	if len(cfg.Bots[0].RunCommand) != 2 ||
		cfg.Bots[0].RunCommand[0] != wantCommand[0] ||
		cfg.Bots[0].RunCommand[1] != wantCommand[1] {
		t.Fatalf("run command: got %v want %v", cfg.Bots[0].RunCommand, wantCommand)
	}
}

func TestExecuteContestMatchUsesOwnerNames(t *testing.T) {
	f := newFixture(t, happyServerScript, &model.Match{
		ID: "m1", UserID: testSystemUserID, GameID: "g1", MapName: "duel",
		BotIDs: []string{"botA", "botB"},
	})
	if err := f.executor.Execute(context.Background(), "m1"); err != nil {
		t.Fatalf("execute: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(f.layout.MatchDir("m1"), configFileName))
	if err != nil {
		t.Fatalf("read match config: %v", err)
	}
	var cfg configFile
	if err := json.Unmarshal(raw, &cfg); err != nil {
		t.Fatalf("decode match config: %v", err)
	}
	if cfg.Bots[0].Name != "alice" || cfg.Bots[1].Name != "bob" {
		t.Fatalf("contest display names: %q, %q", cfg.Bots[0].Name, cfg.Bots[1].Name)
	}
}

func TestExecuteSelfMatchDisambiguates(t *testing.T) {
	f := newFixture(t, happyServerScript, &model.Match{
		ID: "m1", UserID: testSystemUserID, GameID: "g1", MapName: "duel",
		BotIDs: []string{"botA", "botA"},
	})
	if err := f.executor.Execute(context.Background(), "m1"); err != nil {
		t.Fatalf("execute: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(f.layout.MatchDir("m1"), configFileName))
	if err != nil {
		t.Fatalf("read match config: %v", err)
	}
	var cfg configFile
	if err := json.Unmarshal(raw, &cfg); err != nil {
		t.Fatalf("decode match config: %v", err)
	}
	if cfg.Bots[0].Name != "alice.1" || cfg.Bots[1].Name != "alice.2" {
		t.Fatalf("names not disambiguated: %q, %q", cfg.Bots[0].Name, cfg.Bots[1].Name)
	}
	if cfg.Bots[0].ID != "botA.1" || cfg.Bots[1].ID != "botA.2" {
		t.Fatalf("ids not disambiguated: %q, %q", cfg.Bots[0].ID, cfg.Bots[1].ID)
	}
}

func TestExecuteServerFailure(t *testing.T) {
	f := newFixture(t, "echo exploded >&2\nexit 9\n", &model.Match{
		ID: "m1", UserID: "owner", GameID: "g1", MapName: "duel",
		BotIDs: []string{"botA", "botB"},
	})
	if err := f.executor.Execute(context.Background(), "m1"); err != nil {
		t.Fatalf("per-match failure must not be fatal: %v", err)
	}

	mtch, _ := f.matches.GetByID(context.Background(), "m1")
	if mtch.RunStatus.Stage != model.RunError {
		t.Fatalf("stage: got %s", mtch.RunStatus.Stage)
	}
	if mtch.ScoreJSON != nil {
		t.Fatalf("failed match must not carry scores")
	}
	if !strings.Contains(mtch.RunStatus.Log, "exploded") {
		t.Fatalf("run log should carry the server's stderr: %q", mtch.RunStatus.Log)
	}
}

func TestExecuteRerunFailureDiscardsStaleResult(t *testing.T) {
	f := newFixture(t, happyServerScript, &model.Match{
		ID: "m1", UserID: "owner", GameID: "g1", MapName: "duel",
		BotIDs: []string{"botA", "botB"},
	})
	if err := f.executor.Execute(context.Background(), "m1"); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// Redelivered job whose rerun fails: the cached server binary now
	// exits non-zero. The first run's transcript and scores must not
	// survive next to the RUN_ERROR stage.
	serverPath := filepath.Join(f.layout.GameDir("g1"), "server")
	if err := os.WriteFile(serverPath, []byte("echo broken >&2\nexit 1\n"), 0755); err != nil {
		t.Fatalf("rewrite cached server: %v", err)
	}
	if err := f.executor.Execute(context.Background(), "m1"); err != nil {
		t.Fatalf("second run: %v", err)
	}

	mtch, err := f.matches.GetByIDWithLog(context.Background(), "m1")
	if err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if mtch.RunStatus.Stage != model.RunError {
		t.Fatalf("stage: got %s", mtch.RunStatus.Stage)
	}
	if mtch.ScoreJSON != nil {
		t.Fatalf("stale scores survived the failed rerun: %q", *mtch.ScoreJSON)
	}
	if mtch.Log != nil {
		t.Fatalf("stale transcript survived the failed rerun: %q", *mtch.Log)
	}
}

func TestExecuteMissingScoreFile(t *testing.T) {
	f := newFixture(t, "echo match transcript > match.log\n", &model.Match{
		ID: "m1", UserID: "owner", GameID: "g1", MapName: "duel",
		BotIDs: []string{"botA", "botB"},
	})
	if err := f.executor.Execute(context.Background(), "m1"); err != nil {
		t.Fatalf("execute: %v", err)
	}
	mtch, _ := f.matches.GetByID(context.Background(), "m1")
	if mtch.RunStatus.Stage != model.RunError {
		t.Fatalf("stage: got %s", mtch.RunStatus.Stage)
	}
	if !strings.Contains(mtch.RunStatus.Log, scoreFileName) {
		t.Fatalf("log should name the missing file: %q", mtch.RunStatus.Log)
	}
}

func TestExecuteUnknownBot(t *testing.T) {
	f := newFixture(t, happyServerScript, &model.Match{
		ID: "m1", UserID: "owner", GameID: "g1", MapName: "duel",
		BotIDs: []string{"botA", "ghost"},
	})
	if err := f.executor.Execute(context.Background(), "m1"); err != nil {
		t.Fatalf("execute: %v", err)
	}
	mtch, _ := f.matches.GetByID(context.Background(), "m1")
	if mtch.RunStatus.Stage != model.RunPrepareBotsErr {
		t.Fatalf("stage: got %s", mtch.RunStatus.Stage)
	}
}

func TestExecuteUnknownMap(t *testing.T) {
	f := newFixture(t, happyServerScript, &model.Match{
		ID: "m1", UserID: "owner", GameID: "g1", MapName: "void",
		BotIDs: []string{"botA", "botB"},
	})
	if err := f.executor.Execute(context.Background(), "m1"); err != nil {
		t.Fatalf("execute: %v", err)
	}
	mtch, _ := f.matches.GetByID(context.Background(), "m1")
	if mtch.RunStatus.Stage != model.RunError {
		t.Fatalf("stage: got %s", mtch.RunStatus.Stage)
	}
}

func TestExecuteMissingMatch(t *testing.T) {
	f := newFixture(t, happyServerScript)
	err := f.executor.Execute(context.Background(), "ghost")
	if !appErr.Is(err, appErr.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}
