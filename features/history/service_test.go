package history_test

import (
	"context"
	"testing"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/blacktokki/notesearcher/features/history"
	"github.com/blacktokki/notesearcher/internal/apperr"
	"github.com/blacktokki/notesearcher/internal/markdown"
	"github.com/blacktokki/notesearcher/internal/notebook"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetNoteByTitle(ctx context.Context, title string) (*notebook.Content, error) {
	args := m.Called(ctx, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notebook.Content), args.Error(1)
}

func (m *MockStore) FetchContents(ctx context.Context, types []string, withHidden bool, parentID *int64, page int) ([]notebook.Content, error) {
	args := m.Called(ctx, types, withHidden, parentID, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]notebook.Content), args.Error(1)
}

func deltaOf(t *testing.T, base, updated string) string {
	t.Helper()
	dmp := diffmatchpatch.New()
	return dmp.DiffToDelta(dmp.DiffMain(base, updated, false))
}

func isSnapshots(types []string) bool {
	return len(types) == 1 && types[0] == "SNAPSHOT"
}

func isArchives(types []string) bool {
	return len(types) == 2
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	svc := history.NewService(markdown.NewConverter())
	parent := &notebook.Content{ID: 10, Title: "Journal"}

	t.Run("snapshot and delta restored", func(t *testing.T) {
		store := new(MockStore)
		snapshot := notebook.Content{ID: 100, Type: "SNAPSHOT", Description: "<p>Hello</p>", Updated: "2025-03-01T09:00:00"}
		delta := notebook.Content{
			ID: 101, Type: "DELTA", SnapshotID: 100,
			Diff:    deltaOf(t, "<p>Hello</p>", "<p>Hello world</p>"),
			Updated: "2025-03-02T09:00:00",
		}

		store.On("GetNoteByTitle", ctx, "Journal").Return(parent, nil)
		store.On("FetchContents", ctx, mock.MatchedBy(isArchives), true, &parent.ID, 0).
			Return([]notebook.Content{delta, snapshot}, nil)
		store.On("FetchContents", ctx, mock.MatchedBy(isSnapshots), true, &parent.ID, 0).
			Return([]notebook.Content{snapshot}, nil)

		resp, err := svc.Resolve(ctx, store, "Journal", 0)
		require.NoError(t, err)
		require.Len(t, resp.Revisions, 2)
		assert.Empty(t, resp.Omitted)

		assert.Equal(t, "DELTA", resp.Revisions[0].Kind)
		assert.Equal(t, "Hello world", resp.Revisions[0].Content)
		assert.Equal(t, "SNAPSHOT", resp.Revisions[1].Kind)
		assert.Equal(t, "Hello", resp.Revisions[1].Content)
	})

	t.Run("missing base is omitted, others still resolve", func(t *testing.T) {
		store := new(MockStore)
		snapshot := notebook.Content{ID: 100, Type: "SNAPSHOT", Description: "<p>Hello</p>"}
		orphan := notebook.Content{ID: 102, Type: "DELTA", SnapshotID: 999, Diff: "=5"}

		store.On("GetNoteByTitle", ctx, "Journal").Return(parent, nil)
		store.On("FetchContents", ctx, mock.MatchedBy(isArchives), true, &parent.ID, 0).
			Return([]notebook.Content{orphan, snapshot}, nil)
		store.On("FetchContents", ctx, mock.MatchedBy(isSnapshots), true, &parent.ID, 0).
			Return([]notebook.Content{snapshot}, nil)

		resp, err := svc.Resolve(ctx, store, "Journal", 0)
		require.NoError(t, err)
		require.Len(t, resp.Revisions, 1)
		require.Len(t, resp.Omitted, 1)
		assert.Equal(t, int64(102), resp.Omitted[0].ID)
		assert.Equal(t, int64(999), resp.Omitted[0].SnapshotRef)
		assert.Contains(t, resp.Omitted[0].Reason, "not found")
	})

	t.Run("undecodable delta is omitted", func(t *testing.T) {
		store := new(MockStore)
		snapshot := notebook.Content{ID: 100, Type: "SNAPSHOT", Description: "<p>Hello</p>"}
		broken := notebook.Content{ID: 103, Type: "DELTA", SnapshotID: 100, Diff: "=99999"}

		store.On("GetNoteByTitle", ctx, "Journal").Return(parent, nil)
		store.On("FetchContents", ctx, mock.MatchedBy(isArchives), true, &parent.ID, 0).
			Return([]notebook.Content{broken}, nil)
		store.On("FetchContents", ctx, mock.MatchedBy(isSnapshots), true, &parent.ID, 0).
			Return([]notebook.Content{snapshot}, nil)

		resp, err := svc.Resolve(ctx, store, "Journal", 0)
		require.NoError(t, err)
		assert.Empty(t, resp.Revisions)
		require.Len(t, resp.Omitted, 1)
		assert.Contains(t, resp.Omitted[0].Reason, "does not apply")
	})

	t.Run("base found outside requested page", func(t *testing.T) {
		store := new(MockStore)
		snapshot := notebook.Content{ID: 100, Type: "SNAPSHOT", Description: "<p>Hello</p>"}
		delta := notebook.Content{
			ID: 104, Type: "DELTA", SnapshotID: 100,
			Diff: deltaOf(t, "<p>Hello</p>", "<p>Hello again</p>"),
		}

		store.On("GetNoteByTitle", ctx, "Journal").Return(parent, nil)
		// Page 1 holds only the delta; its base lives on an earlier page.
		store.On("FetchContents", ctx, mock.MatchedBy(isArchives), true, &parent.ID, 1).
			Return([]notebook.Content{delta}, nil)
		store.On("FetchContents", ctx, mock.MatchedBy(isSnapshots), true, &parent.ID, 0).
			Return([]notebook.Content{snapshot}, nil)

		resp, err := svc.Resolve(ctx, store, "Journal", 1)
		require.NoError(t, err)
		require.Len(t, resp.Revisions, 1)
		assert.Equal(t, "Hello again", resp.Revisions[0].Content)
	})

	t.Run("unknown note", func(t *testing.T) {
		store := new(MockStore)
		store.On("GetNoteByTitle", ctx, "Ghost").Return(nil, nil)

		_, err := svc.Resolve(ctx, store, "Ghost", 0)
		var nf *apperr.NotFoundError
		assert.ErrorAs(t, err, &nf)
	})

	t.Run("rejects bad input before any call", func(t *testing.T) {
		store := new(MockStore)

		_, err := svc.Resolve(ctx, store, "", 0)
		var ve *apperr.ValidationError
		assert.ErrorAs(t, err, &ve)

		_, err = svc.Resolve(ctx, store, "Journal", -1)
		assert.ErrorAs(t, err, &ve)

		store.AssertNotCalled(t, "GetNoteByTitle", mock.Anything, mock.Anything)
	})
}
