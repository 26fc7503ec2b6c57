package model

import appErr "botarena/pkg/errors"

// GameMap is one playable map with its allowed player-count range.
type GameMap struct {
	Name       string `json:"name"`
	MinPlayers int    `json:"minPlayers"`
	MaxPlayers int    `json:"maxPlayers"`
	Content    string `json:"content"`
}

// Game defines a game type: its maps, the game server program source
// and the player-count bounds. Assumed stable once any contest
// referencing it starts.
type Game struct {
	ID           string
	Name         string
	Maps         []GameMap
	ServerSource SourceFile
	MinPlayers   int
	MaxPlayers   int
}

// MapByName returns the named map definition.
func (g *Game) MapByName(name string) (GameMap, error) {
	for _, m := range g.Maps {
		if m.Name == name {
			return m, nil
		}
	}
	return GameMap{}, appErr.Newf(appErr.MapNotFound, "game %s has no map %q", g.ID, name)
}

// MapForPlayers returns the first map definition that allows the
// given player count, in definition order.
func (g *Game) MapForPlayers(players int) (GameMap, error) {
	for _, m := range g.Maps {
		if players >= m.MinPlayers && players <= m.MaxPlayers {
			return m, nil
		}
	}
	return GameMap{}, appErr.Newf(appErr.MapNotFound, "game %s has no map for %d players", g.ID, players)
}

// User is the read-only view of an account needed by the execution
// core: display-name resolution for contest matches and completion
// notification routing.
type User struct {
	ID       string
	Username string
}
