package note

import (
	"context"
	"database/sql"
	"time"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// ListUpdatedSince returns all NOTE documents whose updated_at is strictly
// after the given watermark, oldest first.
func (r *PostgresRepo) ListUpdatedSince(ctx context.Context, since time.Time) ([]Document, error) {
	query := `SELECT id, owner_id, title, body, updated_at, kind, hidden, external
		FROM content WHERE updated_at > $1 AND kind = $2 ORDER BY updated_at ASC`
	rows, err := r.db.QueryContext(ctx, query, since, KindNote)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.OwnerID, &d.Title, &d.Body, &d.UpdatedAt, &d.Kind, &d.Hidden, &d.External); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *PostgresRepo) Get(ctx context.Context, id int64) (*Document, error) {
	d := &Document{}
	query := `SELECT id, owner_id, title, body, updated_at, kind, hidden, external
		FROM content WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&d.ID, &d.OwnerID, &d.Title, &d.Body, &d.UpdatedAt, &d.Kind, &d.Hidden, &d.External)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ListByTitle returns the owner's NOTE documents whose title contains the
// given substring, case-insensitive. This is the exact-match retrieval path
// of the query engine.
func (r *PostgresRepo) ListByTitle(ctx context.Context, ownerID int64, needle string, limit, offset int) ([]Document, error) {
	query := `SELECT id, owner_id, title, body, updated_at, kind, hidden, external
		FROM content WHERE owner_id = $1 AND kind = $2 AND title ILIKE '%' || $3 || '%'
		ORDER BY updated_at DESC LIMIT $4 OFFSET $5`
	rows, err := r.db.QueryContext(ctx, query, ownerID, KindNote, needle, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.OwnerID, &d.Title, &d.Body, &d.UpdatedAt, &d.Kind, &d.Hidden, &d.External); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *PostgresRepo) CountNotes(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM content WHERE kind = $1`, KindNote).Scan(&count)
	return count, err
}
