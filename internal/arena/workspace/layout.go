// Package workspace defines the on-disk layout of build and match areas.
package workspace

import "path/filepath"

// Layout maps entity ids to their directories under one work root:
// a bots area, a games area and a matches area, each entity with a
// build/ subdirectory and a sibling compiled binary plus marker config.
type Layout struct {
	Root string
}

// NewLayout creates a layout rooted at root.
func NewLayout(root string) Layout {
	return Layout{Root: root}
}

// BotDir is where a bot's marker config and compiled binary live.
func (l Layout) BotDir(botID string) string {
	return filepath.Join(l.Root, "bots", botID)
}

// BotBuildDir is the scratch build directory for a bot.
func (l Layout) BotBuildDir(botID string) string {
	return filepath.Join(l.BotDir(botID), "build")
}

// GameDir is where a game server's marker config and binary live.
func (l Layout) GameDir(gameID string) string {
	return filepath.Join(l.Root, "games", gameID)
}

// GameBuildDir is the scratch build directory for a game server.
func (l Layout) GameBuildDir(gameID string) string {
	return filepath.Join(l.GameDir(gameID), "build")
}

// MatchDir is the working directory for one match run: map file,
// match config, and the game server's log and score output.
func (l Layout) MatchDir(matchID string) string {
	return filepath.Join(l.Root, "matches", matchID)
}
