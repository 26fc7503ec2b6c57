// Package cli implements the operator REPL: enqueue checks and match
// runs, execute matches and contests synchronously, inspect statuses
// and standings.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/shlex"

	"botarena/internal/arena/contest"
	"botarena/internal/arena/model"
	"botarena/internal/arena/repository"
	"botarena/internal/common/queue"
)

// Orchestrator is the subset of the contest orchestrator the REPL
// drives.
type Orchestrator interface {
	RunContest(ctx context.Context, contestID string) error
	Transition(ctx context.Context, contestID string, to model.ContestStatus) (contest.TransitionResult, error)
}

// Session is one interactive operator session.
type Session struct {
	queue        queue.Queue
	bots         repository.BotRepository
	matches      repository.MatchRepository
	contests     repository.ContestRepository
	executor     contest.MatchExecutor
	orchestrator Orchestrator
}

// NewSession creates a REPL session over the given collaborators.
func NewSession(q queue.Queue, bots repository.BotRepository, matches repository.MatchRepository,
	contests repository.ContestRepository, executor contest.MatchExecutor, orchestrator Orchestrator) *Session {
	return &Session{
		queue:        q,
		bots:         bots,
		matches:      matches,
		contests:     contests,
		executor:     executor,
		orchestrator: orchestrator,
	}
}

// Run reads and dispatches commands until EOF or "exit".
func (s *Session) Run(ctx context.Context) error {
	rl, err := readline.New("arena> ")
	if err != nil {
		return fmt.Errorf("init readline failed: %w", err)
	}
	defer func() {
		_ = rl.Close()
	}()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input failed: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			fmt.Println("bye")
			return nil
		}
		if line == "help" {
			printHelp()
			continue
		}
		if err := s.dispatch(ctx, line); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

func (s *Session) dispatch(ctx context.Context, line string) error {
	tokens, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse command failed: %w", err)
	}
	if len(tokens) < 2 {
		return fmt.Errorf("invalid command, use: <entity> <action> [args], see help")
	}
	key := tokens[0] + " " + tokens[1]
	args := tokens[2:]

	switch key {
	case "bot check":
		return s.enqueueCheck(ctx, args)
	case "bot status":
		return s.botStatus(ctx, args)
	case "match enqueue":
		return s.enqueueMatch(ctx, args)
	case "match run":
		return s.runMatch(ctx, args)
	case "match status":
		return s.matchStatus(ctx, args)
	case "contest run":
		return s.runContest(ctx, args)
	case "contest status":
		return s.contestStatus(ctx, args)
	case "contest standings":
		return s.contestStandings(ctx, args)
	case "contest transition":
		return s.contestTransition(ctx, args)
	default:
		return fmt.Errorf("unknown command: %s", key)
	}
}

func (s *Session) enqueueCheck(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: bot check <botId> [callbackChannel]")
	}
	job := model.CheckBotJob{BotID: args[0]}
	if len(args) > 1 {
		job.CallbackChannel = args[1]
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := s.queue.Enqueue(ctx, model.QueueCheckBot, raw); err != nil {
		return err
	}
	fmt.Printf("enqueued check for bot %s\n", job.BotID)
	return nil
}

func (s *Session) botStatus(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: bot status <botId>")
	}
	bot, err := s.bots.GetByID(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("bot %s (%s) v%d: %s\n", bot.ID, bot.Name, bot.VersionNumber, bot.SubmitStatus.Stage)
	if bot.SubmitStatus.Log != "" {
		fmt.Println(bot.SubmitStatus.Log)
	}
	return nil
}

func (s *Session) enqueueMatch(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: match enqueue <matchId> [callbackChannel]")
	}
	job := model.RunMatchJob{MatchID: args[0]}
	if len(args) > 1 {
		job.CallbackChannel = args[1]
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := s.queue.Enqueue(ctx, model.QueueRunMatch, raw); err != nil {
		return err
	}
	fmt.Printf("enqueued run for match %s\n", job.MatchID)
	return nil
}

func (s *Session) runMatch(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: match run <matchId>")
	}
	if err := s.executor.Execute(ctx, args[0]); err != nil {
		return err
	}
	return s.matchStatus(ctx, args)
}

func (s *Session) matchStatus(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: match status <matchId>")
	}
	mtch, err := s.matches.GetByID(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("match %s on %s (%s): %s\n", mtch.ID, mtch.MapName, strings.Join(mtch.BotIDs, " vs "), mtch.RunStatus.Stage)
	if mtch.RunStatus.Log != "" {
		fmt.Println(mtch.RunStatus.Log)
	}
	if mtch.ScoreJSON != nil {
		fmt.Printf("scores: %s\n", *mtch.ScoreJSON)
	}
	return nil
}

func (s *Session) runContest(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: contest run <contestId>")
	}
	result, err := s.orchestrator.Transition(ctx, args[0], model.ContestRunning)
	if err != nil {
		return err
	}
	if !result.Applied {
		return fmt.Errorf("transition refused: %s -> %s", result.From, result.To)
	}
	if err := s.orchestrator.RunContest(ctx, args[0]); err != nil {
		return err
	}
	return s.contestStandings(ctx, args)
}

func (s *Session) contestStatus(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: contest status <contestId>")
	}
	cont, err := s.contests.GetByID(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("contest %s (%s): %s, %d bots, %d matches\n",
		cont.ID, cont.Name, cont.Status, len(cont.BotIDs), len(cont.MatchIDs))
	return nil
}

func (s *Session) contestStandings(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: contest standings <contestId>")
	}
	cont, err := s.contests.GetByID(ctx, args[0])
	if err != nil {
		return err
	}
	if cont.ScoreJSON == nil {
		fmt.Printf("contest %s: %s, no standings yet\n", cont.ID, cont.Status)
		return nil
	}
	var points map[string]float64
	if err := json.Unmarshal([]byte(*cont.ScoreJSON), &points); err != nil {
		return fmt.Errorf("decode standings failed: %w", err)
	}

	type row struct {
		botID  string
		points float64
	}
	rows := make([]row, 0, len(points))
	for botID, pts := range points {
		rows = append(rows, row{botID: botID, points: pts})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].points != rows[j].points {
			return rows[i].points > rows[j].points
		}
		return rows[i].botID < rows[j].botID
	})

	fmt.Printf("contest %s standings (%s):\n", cont.ID, cont.Status)
	for i, r := range rows {
		fmt.Printf("%2d. %s  %.1f\n", i+1, r.botID, r.points)
	}
	return nil
}

func (s *Session) contestTransition(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: contest transition <contestId> <OPEN|CLOSED|RUNNING>")
	}
	result, err := s.orchestrator.Transition(ctx, args[0], model.ContestStatus(strings.ToUpper(args[1])))
	if err != nil {
		return err
	}
	if !result.Applied {
		fmt.Printf("transition refused: %s -> %s\n", result.From, result.To)
		return nil
	}
	fmt.Printf("contest now %s\n", result.To)
	return nil
}

func printHelp() {
	fmt.Println("commands:")
	fmt.Println("  bot check <botId> [callbackChannel]        enqueue a bot check")
	fmt.Println("  bot status <botId>                         show submit stage and log")
	fmt.Println("  match enqueue <matchId> [callbackChannel]  enqueue a match run")
	fmt.Println("  match run <matchId>                        execute a match synchronously")
	fmt.Println("  match status <matchId>                     show run stage, log and scores")
	fmt.Println("  contest run <contestId>                    run a full round-robin contest")
	fmt.Println("  contest status <contestId>                 show contest state")
	fmt.Println("  contest standings <contestId>              show aggregated points")
	fmt.Println("  contest transition <contestId> <status>    request a status change")
	fmt.Println("  help | exit")
}
