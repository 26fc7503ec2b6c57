package repository

import (
	"context"
	"database/sql"

	"botarena/internal/arena/model"
)

// MySQLMatchRepository is the MySQL-backed MatchRepository.
type MySQLMatchRepository struct {
	pool *sql.DB
}

// NewMatchRepository creates a match repository over the connection pool.
func NewMatchRepository(pool *sql.DB) *MySQLMatchRepository {
	return &MySQLMatchRepository{pool: pool}
}

const matchColumns = "id, user_id, game_id, map_name, bot_ids, run_stage, run_log, score_json"

func (r *MySQLMatchRepository) Create(ctx context.Context, match *model.Match) error {
	botIDs, err := encodeStrings(match.BotIDs)
	if err != nil {
		return err
	}
	query := "INSERT INTO matches (id, user_id, game_id, map_name, bot_ids, run_stage, run_log) VALUES (?, ?, ?, ?, ?, ?, ?)"
	_, err = r.pool.ExecContext(ctx, query, match.ID, match.UserID, match.GameID,
		match.MapName, botIDs, match.RunStatus.Stage, match.RunStatus.Log)
	if err != nil {
		return storageErr(err, "create match")
	}
	return nil
}

func (r *MySQLMatchRepository) GetByID(ctx context.Context, id string) (*model.Match, error) {
	query := "SELECT " + matchColumns + " FROM matches WHERE id = ?"
	return r.scanMatch(r.pool.QueryRowContext(ctx, query, id), false)
}

func (r *MySQLMatchRepository) GetByIDWithLog(ctx context.Context, id string) (*model.Match, error) {
	query := "SELECT " + matchColumns + ", log FROM matches WHERE id = ?"
	return r.scanMatch(r.pool.QueryRowContext(ctx, query, id), true)
}

func (r *MySQLMatchRepository) scanMatch(row *sql.Row, withLog bool) (*model.Match, error) {
	var match model.Match
	var botIDs string
	var scoreJSON, log sql.NullString

	dest := []interface{}{&match.ID, &match.UserID, &match.GameID, &match.MapName,
		&botIDs, &match.RunStatus.Stage, &match.RunStatus.Log, &scoreJSON}
	if withLog {
		dest = append(dest, &log)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, scanResult(err, "match", "get match")
	}

	ids, err := decodeStrings(botIDs)
	if err != nil {
		return nil, err
	}
	match.BotIDs = ids
	if scoreJSON.Valid {
		match.ScoreJSON = &scoreJSON.String
	}
	if log.Valid {
		match.Log = &log.String
	}
	return &match, nil
}

func (r *MySQLMatchRepository) UpdateRunStatus(ctx context.Context, id string, status model.RunStatus) error {
	// Transcript and scores belong to a run that reached RUN_SUCCESS;
	// any other status write invalidates them. Keeps a redelivered job
	// whose rerun fails from leaving a stale score next to RUN_ERROR.
	query := "UPDATE matches SET run_stage = ?, run_log = ?, log = NULL, score_json = NULL WHERE id = ?"
	if _, err := r.pool.ExecContext(ctx, query, status.Stage, status.Log, id); err != nil {
		return storageErr(err, "update match run status")
	}
	return nil
}

func (r *MySQLMatchRepository) SetResult(ctx context.Context, id string, status model.RunStatus, log, scoreJSON string) error {
	query := "UPDATE matches SET run_stage = ?, run_log = ?, log = ?, score_json = ? WHERE id = ?"
	if _, err := r.pool.ExecContext(ctx, query, status.Stage, status.Log, log, scoreJSON, id); err != nil {
		return storageErr(err, "set match result")
	}
	return nil
}

func (r *MySQLMatchRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.ExecContext(ctx, "DELETE FROM matches WHERE id = ?", id); err != nil {
		return storageErr(err, "delete match")
	}
	return nil
}

var _ MatchRepository = (*MySQLMatchRepository)(nil)
