package repository

import (
	"context"
	"database/sql"

	"botarena/internal/arena/model"
)

// MySQLBotRepository is the MySQL-backed BotRepository.
type MySQLBotRepository struct {
	pool *sql.DB
}

// NewBotRepository creates a bot repository over the connection pool.
func NewBotRepository(pool *sql.DB) *MySQLBotRepository {
	return &MySQLBotRepository{pool: pool}
}

const botColumns = "id, user_id, game_id, name, submit_stage, submit_log, version_number, source_name, source_content"

func (r *MySQLBotRepository) GetByID(ctx context.Context, id string) (*model.Bot, error) {
	query := "SELECT " + botColumns + " FROM bots WHERE id = ?"
	row := r.pool.QueryRowContext(ctx, query, id)

	var bot model.Bot
	var sourceName sql.NullString
	var sourceContent []byte
	err := row.Scan(&bot.ID, &bot.UserID, &bot.GameID, &bot.Name,
		&bot.SubmitStatus.Stage, &bot.SubmitStatus.Log, &bot.VersionNumber,
		&sourceName, &sourceContent)
	if err != nil {
		return nil, scanResult(err, "bot", "get bot")
	}
	if sourceName.Valid {
		bot.Source = &model.SourceFile{Name: sourceName.String, Content: sourceContent}
	}
	return &bot, nil
}

func (r *MySQLBotRepository) UpdateSubmitStatus(ctx context.Context, id string, status model.SubmitStatus) error {
	query := "UPDATE bots SET submit_stage = ?, submit_log = ? WHERE id = ?"
	if _, err := r.pool.ExecContext(ctx, query, status.Stage, status.Log, id); err != nil {
		return storageErr(err, "update bot submit status")
	}
	return nil
}

var _ BotRepository = (*MySQLBotRepository)(nil)
