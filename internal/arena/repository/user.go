package repository

import (
	"context"
	"database/sql"

	"botarena/internal/arena/model"
)

// MySQLUserRepository is the MySQL-backed UserRepository.
type MySQLUserRepository struct {
	pool *sql.DB
}

// NewUserRepository creates a user repository over the connection pool.
func NewUserRepository(pool *sql.DB) *MySQLUserRepository {
	return &MySQLUserRepository{pool: pool}
}

func (r *MySQLUserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := r.pool.QueryRowContext(ctx, "SELECT id, username FROM users WHERE id = ?", id)
	var user model.User
	if err := row.Scan(&user.ID, &user.Username); err != nil {
		return nil, scanResult(err, "user", "get user")
	}
	return &user, nil
}

func (r *MySQLUserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	row := r.pool.QueryRowContext(ctx, "SELECT id, username FROM users WHERE username = ?", username)
	var user model.User
	if err := row.Scan(&user.ID, &user.Username); err != nil {
		return nil, scanResult(err, "user", "get user by username")
	}
	return &user, nil
}

var _ UserRepository = (*MySQLUserRepository)(nil)
