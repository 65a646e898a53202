package weaviate_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	adapter "github.com/blacktokki/notesearcher/internal/adapter/weaviate"
	"github.com/blacktokki/notesearcher/features/search"
	"github.com/blacktokki/notesearcher/internal/chunk"
)

func mockWeaviate(t *testing.T, handler http.HandlerFunc) (*weaviate.Client, *httptest.Server) {
	ts := httptest.NewServer(handler)
	cfg := weaviate.Config{Host: ts.Listener.Addr().String(), Scheme: "http"}
	client, err := weaviate.NewClient(cfg)
	require.NoError(t, err)
	return client, ts
}

func meta(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"version": "1.33.0"}`))
}

func testChunk(id string) chunk.Chunk {
	return chunk.Chunk{
		ID:   id,
		Text: "daily standup notes",
		Metadata: chunk.Metadata{
			OriginalID: 42,
			OwnerID:    7,
			Title:      "Standup",
			CreatedAt:  time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
			HeaderPath: []chunk.HeaderRef{{Level: 1, Text: "Standup"}},
			Links:      []chunk.Link{{Text: "agenda", URL: "https://example.com/agenda"}},
		},
	}
}

func TestStore_UpsertBatch(t *testing.T) {
	var gotObjects []map[string]interface{}
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			meta(w)
			return
		}
		assert.Equal(t, "/v1/batch/objects", r.URL.Path)
		assert.Equal(t, "POST", r.Method)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		for _, o := range body["objects"].([]interface{}) {
			gotObjects = append(gotObjects, o.(map[string]interface{}))
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode([]map[string]interface{}{})
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	err := store.UpsertBatch(context.Background(),
		[]chunk.Chunk{testChunk("42_0"), testChunk("42_1")},
		[][]float32{{0.1, 0.2}, {0.3, 0.4}},
	)
	assert.NoError(t, err)

	require.Len(t, gotObjects, 2)
	first := gotObjects[0]
	assert.Equal(t, "NoteChunk", first["class"])
	assert.NotEmpty(t, first["id"])

	props := first["properties"].(map[string]interface{})
	assert.Equal(t, "42_0", props["chunkId"])
	assert.Equal(t, 42.0, props["originalId"])
	assert.Equal(t, 7.0, props["ownerId"])
	assert.Equal(t, "daily standup notes", props["content"])
	assert.Equal(t, "2025-03-01T09:00:00Z", props["createdAt"])

	var path []chunk.HeaderRef
	require.NoError(t, json.Unmarshal([]byte(props["headerPath"].(string)), &path))
	assert.Equal(t, []chunk.HeaderRef{{Level: 1, Text: "Standup"}}, path)
}

func TestStore_UpsertBatch_DeterministicIDs(t *testing.T) {
	var ids []string
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			meta(w)
			return
		}
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		for _, o := range body["objects"].([]interface{}) {
			ids = append(ids, o.(map[string]interface{})["id"].(string))
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode([]map[string]interface{}{})
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	for i := 0; i < 2; i++ {
		err := store.UpsertBatch(context.Background(),
			[]chunk.Chunk{testChunk("42_0")}, [][]float32{{0.1}})
		require.NoError(t, err)
	}

	require.Len(t, ids, 2)
	assert.Equal(t, ids[0], ids[1])
}

func TestStore_UpsertBatch_CountMismatch(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) { meta(w) })
	defer ts.Close()

	store := adapter.NewStore(client)
	err := store.UpsertBatch(context.Background(),
		[]chunk.Chunk{testChunk("42_0")}, nil)
	assert.Error(t, err)
}

func TestStore_DeleteByOriginalID(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			meta(w)
			return
		}
		assert.Equal(t, "/v1/batch/objects", r.URL.Path)
		assert.Equal(t, "DELETE", r.Method)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		match := body["match"].(map[string]interface{})
		assert.Equal(t, "NoteChunk", match["class"])

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{})
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	err := store.DeleteByOriginalID(context.Background(), 42)
	assert.NoError(t, err)
}

func TestStore_Query(t *testing.T) {
	var gql string
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			meta(w)
			return
		}
		assert.Equal(t, "/v1/graphql", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gql = body["query"].(string)

		w.WriteHeader(http.StatusOK)
		resp := map[string]interface{}{
			"data": map[string]interface{}{
				"Get": map[string]interface{}{
					"NoteChunk": []interface{}{
						map[string]interface{}{
							"content":    "found content",
							"chunkId":    "42_0",
							"originalId": 42.0,
							"title":      "Standup",
							"createdAt":  "2025-03-01T09:00:00Z",
							"headerPath": `[{"level":1,"text":"Standup"}]`,
							"links":      `[{"text":"agenda","url":"https://example.com/agenda"}]`,
							"_additional": map[string]interface{}{
								"distance": 0.12,
							},
						},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	results, err := store.Query(context.Background(), []float32{0.1, 0.2}, search.IndexFilter{
		OwnerID: 7,
		Limit:   20,
		Offset:  40,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "42_0", r.ChunkID)
	assert.Equal(t, int64(42), r.OriginalID)
	assert.Equal(t, "found content", r.Content)
	assert.Equal(t, float32(0.12), r.Distance)
	assert.Equal(t, []chunk.HeaderRef{{Level: 1, Text: "Standup"}}, r.HeaderPath)
	assert.Equal(t, []chunk.Link{{Text: "agenda", URL: "https://example.com/agenda"}}, r.Links)

	// Owner scope and visibility defaults travel in the where clause.
	assert.Contains(t, gql, "ownerId")
	assert.Contains(t, gql, "hidden")
	assert.Contains(t, gql, "external")
	assert.Contains(t, gql, "offset")
}

func TestStore_Query_IncludeHidden(t *testing.T) {
	var gql string
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			meta(w)
			return
		}
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		gql = body["query"].(string)
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"Get": map[string]interface{}{"NoteChunk": []interface{}{}}},
		})
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	_, err := store.Query(context.Background(), []float32{0.1}, search.IndexFilter{
		OwnerID:         7,
		IncludeHidden:   true,
		IncludeExternal: true,
		Limit:           20,
	})
	require.NoError(t, err)
	assert.NotContains(t, gql, "hidden")
	assert.NotContains(t, gql, "external")
}

func TestStore_CountChunks(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			meta(w)
			return
		}
		assert.Equal(t, "/v1/graphql", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		resp := map[string]interface{}{
			"data": map[string]interface{}{
				"Aggregate": map[string]interface{}{
					"NoteChunk": []interface{}{
						map[string]interface{}{
							"meta": map[string]interface{}{"count": 42.0},
						},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	count, err := store.CountChunks(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 42, count)
}
