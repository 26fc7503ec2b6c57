package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"botarena/internal/arena/model"
	appErr "botarena/pkg/errors"
)

// MySQLGameRepository is the MySQL-backed GameRepository.
type MySQLGameRepository struct {
	pool *sql.DB
}

// NewGameRepository creates a game repository over the connection pool.
func NewGameRepository(pool *sql.DB) *MySQLGameRepository {
	return &MySQLGameRepository{pool: pool}
}

const gameColumns = "id, name, maps, server_source_name, server_source_content, min_players, max_players"

func (r *MySQLGameRepository) GetByID(ctx context.Context, id string) (*model.Game, error) {
	query := "SELECT " + gameColumns + " FROM games WHERE id = ?"
	row := r.pool.QueryRowContext(ctx, query, id)

	var game model.Game
	var maps string
	err := row.Scan(&game.ID, &game.Name, &maps,
		&game.ServerSource.Name, &game.ServerSource.Content,
		&game.MinPlayers, &game.MaxPlayers)
	if err != nil {
		return nil, scanResult(err, "game", "get game")
	}
	if maps != "" {
		if err := json.Unmarshal([]byte(maps), &game.Maps); err != nil {
			return nil, appErr.Wrapf(err, appErr.InternalServerError, "decode game maps failed: %v", err)
		}
	}
	return &game, nil
}

var _ GameRepository = (*MySQLGameRepository)(nil)
