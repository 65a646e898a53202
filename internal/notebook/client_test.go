package notebook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blacktokki/notesearcher/internal/apperr"
)

func TestFetchContents(t *testing.T) {
	var gotQuery string
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"value": []Content{
				{ID: 2, Title: "B", Type: "NOTE"},
				{ID: 1, Title: "A", Type: "NOTE"},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL).WithAuthorization("PAT token-abc")
	contents, err := client.FetchContents(context.Background(), []string{"SNAPSHOT", "DELTA"}, true, nil, 0)
	require.NoError(t, err)
	assert.Len(t, contents, 2)
	assert.Contains(t, gotQuery, "types=SNAPSHOT%2CDELTA")
	assert.Contains(t, gotQuery, "size=256")
	assert.Contains(t, gotQuery, "withHidden=true")
	assert.Equal(t, "PAT token-abc", gotAuth)
}

func TestFetchContents_ParentFilter(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(map[string]interface{}{"value": []Content{}})
	}))
	defer server.Close()

	parent := int64(7)
	client := NewClient(server.URL)
	_, err := client.FetchContents(context.Background(), []string{"SNAPSHOT"}, false, &parent, 2)
	require.NoError(t, err)
	assert.Contains(t, gotQuery, "parentId=7")
	assert.Contains(t, gotQuery, "page=2")
}

func TestGetNoteByTitle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"value": []Content{
				{ID: 1, Title: "Inbox", Type: "NOTE"},
				{ID: 2, Title: "Projects/Go", Type: "NOTE"},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	found, err := client.GetNoteByTitle(context.Background(), "Projects/Go")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, int64(2), found.ID)

	missing, err := client.GetNoteByTitle(context.Background(), "Nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCreateNote_SnapshotsInitialState(t *testing.T) {
	var posts []Content
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var c Content
		require.NoError(t, json.NewDecoder(r.Body).Decode(&c))
		posts = append(posts, c)
		json.NewEncoder(w).Encode(map[string]int64{"id": 10})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	id, err := client.CreateNote(context.Background(), "New Note", "<p>hello</p>")
	require.NoError(t, err)
	assert.Equal(t, int64(10), id)

	require.Len(t, posts, 2)
	assert.Equal(t, "NOTE", posts[0].Type)
	assert.Equal(t, "SNAPSHOT", posts[1].Type)
	assert.Equal(t, int64(10), posts[1].ParentID)
	assert.Equal(t, "<p>hello</p>", posts[1].Description)
}

func TestUpdateNoteContent_PatchThenSnapshot(t *testing.T) {
	var methods []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		w.Write([]byte("{}"))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	err := client.UpdateNoteContent(context.Background(), Content{ID: 5, Title: "T"}, "<p>new</p>")
	require.NoError(t, err)
	assert.Equal(t, []string{http.MethodPatch, http.MethodPost}, methods)
}

func TestClient_UpstreamErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.FetchContents(context.Background(), []string{"NOTE"}, true, nil, 0)
	require.Error(t, err)

	var te *apperr.TransientError
	assert.ErrorAs(t, err, &te)
}
