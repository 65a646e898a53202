package note_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/blacktokki/notesearcher/internal/note"
)

var docColumns = []string{"id", "owner_id", "title", "body", "updated_at", "kind", "hidden", "external"}

func TestPostgresRepo_ListUpdatedSince(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := note.NewPostgresRepo(db)
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("Success", func(t *testing.T) {
		rows := sqlmock.NewRows(docColumns).
			AddRow(int64(1), int64(9), "Ideas", "<h1>A</h1>", since.Add(time.Hour), note.KindNote, false, false).
			AddRow(int64(2), int64(9), "Todo", "<p>x</p>", since.Add(2*time.Hour), note.KindNote, true, false)

		mock.ExpectQuery("SELECT id, owner_id, title, body, updated_at, kind, hidden, external").
			WithArgs(since, note.KindNote).
			WillReturnRows(rows)

		docs, err := repo.ListUpdatedSince(context.Background(), since)
		assert.NoError(t, err)
		assert.Len(t, docs, 2)
		assert.Equal(t, "Ideas", docs[0].Title)
		assert.True(t, docs[1].Hidden)
	})

	t.Run("Empty", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, owner_id, title, body, updated_at, kind, hidden, external").
			WithArgs(since, note.KindNote).
			WillReturnRows(sqlmock.NewRows(docColumns))

		docs, err := repo.ListUpdatedSince(context.Background(), since)
		assert.NoError(t, err)
		assert.Empty(t, docs)
	})
}

func TestPostgresRepo_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := note.NewPostgresRepo(db)

	rows := sqlmock.NewRows(docColumns).
		AddRow(int64(7), int64(9), "Ideas", "<h1>A</h1>", time.Now(), note.KindNote, false, false)

	mock.ExpectQuery("SELECT id, owner_id, title, body, updated_at, kind, hidden, external").
		WithArgs(int64(7)).
		WillReturnRows(rows)

	doc, err := repo.Get(context.Background(), 7)
	assert.NoError(t, err)
	assert.Equal(t, int64(7), doc.ID)
	assert.Equal(t, "Ideas", doc.Title)
}

func TestPostgresRepo_ListByTitle(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := note.NewPostgresRepo(db)

	rows := sqlmock.NewRows(docColumns).
		AddRow(int64(3), int64(9), "Project Ideas", "<p>x</p>", time.Now(), note.KindNote, false, false)

	mock.ExpectQuery("title ILIKE").
		WithArgs(int64(9), note.KindNote, "idea", 20, 0).
		WillReturnRows(rows)

	docs, err := repo.ListByTitle(context.Background(), 9, "idea", 20, 0)
	assert.NoError(t, err)
	assert.Len(t, docs, 1)
	assert.Equal(t, "Project Ideas", docs[0].Title)
}

func TestWatermarkRepo(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := note.NewWatermarkRepo(db)

	t.Run("Get returns stored timestamp", func(t *testing.T) {
		ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT last_synced_at FROM sync_state WHERE id = 1")).
			WillReturnRows(sqlmock.NewRows([]string{"last_synced_at"}).AddRow(ts))

		got, err := repo.Get(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, ts, got)
	})

	t.Run("Get with no row falls back to zero time", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT last_synced_at FROM sync_state WHERE id = 1")).
			WillReturnRows(sqlmock.NewRows([]string{"last_synced_at"}))

		got, err := repo.Get(context.Background())
		assert.NoError(t, err)
		assert.True(t, got.IsZero())
	})

	t.Run("Set upserts the single row", func(t *testing.T) {
		ts := time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC)
		mock.ExpectExec("INSERT INTO sync_state").
			WithArgs(ts).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Set(context.Background(), ts))
	})
}
