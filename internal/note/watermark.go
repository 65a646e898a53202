package note

import (
	"context"
	"database/sql"
	"time"
)

// WatermarkRepo persists the sync watermark: the updated_at of the latest
// fully committed source revision. The orchestrator is the only writer; the
// row survives process restarts so a crash mid-cycle reprocesses the affected
// documents on the next run.
type WatermarkRepo struct {
	db *sql.DB
}

func NewWatermarkRepo(db *sql.DB) *WatermarkRepo {
	return &WatermarkRepo{db: db}
}

func (r *WatermarkRepo) Get(ctx context.Context) (time.Time, error) {
	var ts time.Time
	err := r.db.QueryRowContext(ctx, `SELECT last_synced_at FROM sync_state WHERE id = 1`).Scan(&ts)
	if err == sql.ErrNoRows {
		// No run recorded yet: index everything.
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return ts, nil
}

// Set commits the watermark in a single atomic write.
func (r *WatermarkRepo) Set(ctx context.Context, ts time.Time) error {
	query := `INSERT INTO sync_state (id, last_synced_at) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET last_synced_at = EXCLUDED.last_synced_at`
	_, err := r.db.ExecContext(ctx, query, ts)
	return err
}
