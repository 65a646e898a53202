package auth

import (
	"context"
	"database/sql"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) GetPATByHash(ctx context.Context, hash string) (*PersonalAccessToken, error) {
	pat := &PersonalAccessToken{}
	query := `SELECT user_id, expired_at FROM personal_access_tokens WHERE token_hash = $1`
	err := r.db.QueryRowContext(ctx, query, hash).Scan(&pat.UserID, &pat.Expired)
	if err != nil {
		return nil, err
	}
	return pat, nil
}

func (r *PostgresRepo) GetUserIDByUsername(ctx context.Context, username string) (int64, error) {
	var id int64
	query := `SELECT id FROM users WHERE username = $1`
	err := r.db.QueryRowContext(ctx, query, username).Scan(&id)
	return id, err
}
