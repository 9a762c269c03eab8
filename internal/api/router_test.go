package api

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/telegrind/internal/jobs"
	"github.com/dvloznov/telegrind/internal/jobs/inmemory"
	"github.com/dvloznov/telegrind/internal/journal"
	"github.com/dvloznov/telegrind/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockHistoryReader is a mock implementation of handlers.HistoryReader for testing.
type MockHistoryReader struct {
	RecentFunc func(ctx context.Context, chatID int64, limit int) ([]*journal.EventRow, error)
}

func (m *MockHistoryReader) Recent(ctx context.Context, chatID int64, limit int) ([]*journal.EventRow, error) {
	return m.RecentFunc(ctx, chatID, limit)
}

func serve(h http.Handler, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Health(t *testing.T) {
	h := NewRouter(Options{Log: zerolog.Nop()})

	rec := serve(h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])

	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/api/jobs", "").Code)
}

func TestRouter_Jobs(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewStore(0)
	created := time.Date(2024, 1, 10, 6, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveJob(ctx, &jobs.Job{ID: "a", Key: 42, Kind: "text", Status: jobs.JobStatusCompleted, CreatedAt: created}))
	require.NoError(t, store.SaveJob(ctx, &jobs.Job{ID: "b", Key: 7, Kind: "photo", Status: jobs.JobStatusFailed, CreatedAt: created.Add(time.Minute)}))

	h := NewRouter(Options{Jobs: store, Token: "secret", Log: zerolog.Nop()})

	assert.Equal(t, http.StatusUnauthorized, serve(h, http.MethodGet, "/api/jobs", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(h, http.MethodGet, "/api/jobs", "wrong").Code)

	rec := serve(h, http.MethodGet, "/api/jobs?chat_id=42", "secret")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Jobs  []jobs.Job `json:"jobs"`
		Count int        `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, "a", list.Jobs[0].ID)

	assert.Equal(t, http.StatusBadRequest, serve(h, http.MethodGet, "/api/jobs?chat_id=x", "secret").Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/api/jobs/b", "secret").Code)
	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/api/jobs/zzz", "secret").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(h, http.MethodPost, "/api/jobs", "secret").Code)
}

func TestRouter_History(t *testing.T) {
	reader := &MockHistoryReader{
		RecentFunc: func(ctx context.Context, chatID int64, limit int) ([]*journal.EventRow, error) {
			if chatID != 42 {
				return nil, errors.New("query failed")
			}
			assert.Equal(t, 5, limit)
			return []*journal.EventRow{{
				EventID: "e1", ChatID: 42, MessageID: 10, Action: "recorded", Kind: "expense",
				Amount: big.NewRat(1001, 2), Currency: "KZT",
				OccurredTS:  bigquery.NullTimestamp{Timestamp: time.Date(2024, 1, 10, 6, 0, 0, 0, time.UTC), Valid: true},
				Description: bigquery.NullString{StringVal: "кофе", Valid: true},
			}}, nil
		},
	}
	h := NewRouter(Options{History: reader, Log: zerolog.Nop()})

	rec := serve(h, http.MethodGet, "/api/history?chat_id=42&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Events []map[string]interface{} `json:"events"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Events, 1)
	assert.Equal(t, "500.5", body.Events[0]["amount"])
	assert.Equal(t, `500,5 kzt 10.01.24 06:00 "кофе"`, body.Events[0]["display"])

	assert.Equal(t, http.StatusBadRequest, serve(h, http.MethodGet, "/api/history", "").Code)
	assert.Equal(t, http.StatusInternalServerError, serve(h, http.MethodGet, "/api/history?chat_id=1&limit=5", "").Code)
}

func TestRouter_Metrics(t *testing.T) {
	m := metrics.New()
	m.Event("text")
	h := NewRouter(Options{Metrics: m, Log: zerolog.Nop()})

	rec := serve(h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `telegrind_events_total{kind="text"} 1`)
}

func TestRouter_RecoversPanics(t *testing.T) {
	reader := &MockHistoryReader{
		RecentFunc: func(ctx context.Context, chatID int64, limit int) ([]*journal.EventRow, error) {
			panic("boom")
		},
	}
	h := NewRouter(Options{History: reader, Log: zerolog.Nop()})
	assert.Equal(t, http.StatusInternalServerError, serve(h, http.MethodGet, "/api/history?chat_id=1", "").Code)
}
