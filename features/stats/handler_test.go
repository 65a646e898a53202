package stats_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/blacktokki/notesearcher/features/stats"
)

type MockNoteCounter struct {
	mock.Mock
}

func (m *MockNoteCounter) CountNotes(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockChunkCounter struct {
	mock.Mock
}

func (m *MockChunkCounter) CountChunks(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockWatermark struct {
	mock.Mock
}

func (m *MockWatermark) Get(ctx context.Context) (time.Time, error) {
	args := m.Called(ctx)
	return args.Get(0).(time.Time), args.Error(1)
}

func TestGetStats(t *testing.T) {
	notes := new(MockNoteCounter)
	chunks := new(MockChunkCounter)
	wm := new(MockWatermark)
	h := stats.NewHandler(notes, chunks, wm)

	mark := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	notes.On("CountNotes", mock.Anything).Return(12, nil)
	chunks.On("CountChunks", mock.Anything).Return(240, nil)
	wm.On("Get", mock.Anything).Return(mark, nil)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	h.GetStats(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data stats.StatsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 12, body.Data.Notes)
	assert.Equal(t, 240, body.Data.Chunks)
	assert.Equal(t, "2025-03-01T12:00:00Z", body.Data.Watermark)
}

func TestGetStats_NoWatermarkYet(t *testing.T) {
	notes := new(MockNoteCounter)
	chunks := new(MockChunkCounter)
	wm := new(MockWatermark)
	h := stats.NewHandler(notes, chunks, wm)

	notes.On("CountNotes", mock.Anything).Return(0, nil)
	chunks.On("CountChunks", mock.Anything).Return(0, nil)
	wm.On("Get", mock.Anything).Return(time.Time{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	h.GetStats(rec, req)

	var body struct {
		Data stats.StatsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.Data.Watermark)
}

func TestGetStats_CountFailure(t *testing.T) {
	notes := new(MockNoteCounter)
	h := stats.NewHandler(notes, new(MockChunkCounter), new(MockWatermark))

	notes.On("CountNotes", mock.Anything).Return(0, assert.AnError)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	h.GetStats(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}
