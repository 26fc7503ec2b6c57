package repository

import (
	"context"
	"database/sql"

	"botarena/internal/arena/model"
)

// MySQLContestRepository is the MySQL-backed ContestRepository.
type MySQLContestRepository struct {
	pool *sql.DB
}

// NewContestRepository creates a contest repository over the connection pool.
func NewContestRepository(pool *sql.DB) *MySQLContestRepository {
	return &MySQLContestRepository{pool: pool}
}

const contestColumns = "id, game_id, owner_id, name, date, bot_ids, match_ids, status, score_json"

func (r *MySQLContestRepository) GetByID(ctx context.Context, id string) (*model.Contest, error) {
	query := "SELECT " + contestColumns + " FROM contests WHERE id = ?"
	row := r.pool.QueryRowContext(ctx, query, id)

	var contest model.Contest
	var botIDs, matchIDs string
	var scoreJSON sql.NullString
	err := row.Scan(&contest.ID, &contest.GameID, &contest.OwnerID, &contest.Name,
		&contest.Date, &botIDs, &matchIDs, &contest.Status, &scoreJSON)
	if err != nil {
		return nil, scanResult(err, "contest", "get contest")
	}

	if contest.BotIDs, err = decodeStrings(botIDs); err != nil {
		return nil, err
	}
	if contest.MatchIDs, err = decodeStrings(matchIDs); err != nil {
		return nil, err
	}
	if scoreJSON.Valid {
		contest.ScoreJSON = &scoreJSON.String
	}
	return &contest, nil
}

func (r *MySQLContestRepository) Update(ctx context.Context, contest *model.Contest) error {
	matchIDs, err := encodeStrings(contest.MatchIDs)
	if err != nil {
		return err
	}
	scoreJSON := sql.NullString{}
	if contest.ScoreJSON != nil {
		scoreJSON = sql.NullString{String: *contest.ScoreJSON, Valid: true}
	}
	query := "UPDATE contests SET match_ids = ?, status = ?, score_json = ? WHERE id = ?"
	if _, err := r.pool.ExecContext(ctx, query, matchIDs, contest.Status, scoreJSON, contest.ID); err != nil {
		return storageErr(err, "update contest")
	}
	return nil
}

var _ ContestRepository = (*MySQLContestRepository)(nil)
