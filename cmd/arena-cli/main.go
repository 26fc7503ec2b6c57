package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"botarena/internal/arena/build"
	"botarena/internal/arena/contest"
	"botarena/internal/arena/match"
	"botarena/internal/arena/repository"
	"botarena/internal/arena/runner"
	"botarena/internal/arena/workspace"
	"botarena/internal/cli"
	"botarena/internal/common/db"
	"botarena/internal/common/queue"
	"botarena/pkg/utils/logger"
)

const defaultConfigPath = "configs/arena-cli.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	pool, err := db.Open(appCfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init database failed: %v\n", err)
		return
	}
	defer func() {
		_ = pool.Close()
	}()

	redisQueue, err := queue.NewRedisQueueWithConfig(&appCfg.Redis)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init redis failed: %v\n", err)
		return
	}
	defer func() {
		_ = redisQueue.Close()
	}()

	bots := repository.NewBotRepository(pool)
	matches := repository.NewMatchRepository(pool)
	contests := repository.NewContestRepository(pool)
	games := repository.NewGameRepository(pool)
	users := repository.NewUserRepository(pool)

	systemUser, err := users.GetByUsername(context.Background(), appCfg.Arena.SystemUsername)
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolve system user %q failed: %v\n", appCfg.Arena.SystemUsername, err)
		return
	}

	layout := workspace.NewLayout(appCfg.Arena.WorkRoot)
	buildCache := build.NewCache(runner.New(appCfg.Run.BuildTimeout))

	executor, err := match.NewExecutor(match.Config{
		Matches:      matches,
		Bots:         bots,
		Games:        games,
		Users:        users,
		Cache:        buildCache,
		Runner:       runner.New(appCfg.Run.MatchTimeout),
		Layout:       layout,
		SystemUserID: systemUser.ID,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init match executor failed: %v\n", err)
		return
	}

	orchestrator, err := contest.NewOrchestrator(contest.Config{
		Contests:     contests,
		Matches:      matches,
		Games:        games,
		Executor:     executor,
		SystemUserID: systemUser.ID,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init orchestrator failed: %v\n", err)
		return
	}

	session := cli.NewSession(redisQueue, bots, matches, contests, executor, orchestrator)
	if err := session.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
	}
}
