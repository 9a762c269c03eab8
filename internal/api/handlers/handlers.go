package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/dvloznov/telegrind/internal/api/middleware"
	"github.com/dvloznov/telegrind/internal/domain"
	"github.com/dvloznov/telegrind/internal/jobs"
	"github.com/dvloznov/telegrind/internal/journal"
	"github.com/rs/zerolog"
)

// HealthHandler reports liveness.
type HealthHandler struct {
	started time.Time
	now     func() time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{started: time.Now(), now: time.Now}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   now.Format(time.RFC3339),
		"uptime": now.Sub(h.started).Truncate(time.Second).String(),
	})
}

// JobsHandler exposes handled chat events.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		h.log.Debug().Err(err).Str("job_id", jobID).Msg("Job lookup failed")
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs?chat_id=&status=&limit=&offset=
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	filter := jobs.JobFilter{
		Status: jobs.JobStatus(query.Get("status")),
	}

	if chatStr := query.Get("chat_id"); chatStr != "" {
		chatID, err := strconv.ParseInt(chatStr, 10, 64)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid chat_id")
			return
		}
		filter.Key = chatID
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

// HistoryReader reads journal rows of one chat, newest first.
type HistoryReader interface {
	Recent(ctx context.Context, chatID int64, limit int) ([]*journal.EventRow, error)
}

// HistoryHandler exposes the record journal.
type HistoryHandler struct {
	reader HistoryReader
	log    zerolog.Logger
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(reader HistoryReader, log zerolog.Logger) *HistoryHandler {
	return &HistoryHandler{
		reader: reader,
		log:    log,
	}
}

// historyItem is one journal row as served over HTTP.
type historyItem struct {
	EventID    string    `json:"event_id"`
	Action     string    `json:"action"`
	DocumentID string    `json:"document_id"`
	Kind       string    `json:"kind"`
	MessageID  int64     `json:"message_id"`
	Amount     string    `json:"amount"`
	Currency   string    `json:"currency,omitempty"`
	Display    string    `json:"display"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListHistory handles GET /api/history?chat_id=&limit=
func (h *HistoryHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	chatID, err := strconv.ParseInt(query.Get("chat_id"), 10, 64)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "chat_id is required")
		return
	}

	limit := 50
	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
	}

	rows, err := h.reader.Recent(ctx, chatID, limit)
	if err != nil {
		h.log.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to read history")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to read history")
		return
	}

	items := make([]historyItem, 0, len(rows))
	for _, row := range rows {
		rec := journal.RecordOf(row)
		items = append(items, historyItem{
			EventID:    row.EventID,
			Action:     row.Action,
			DocumentID: row.DocumentID,
			Kind:       row.Kind,
			MessageID:  row.MessageID,
			Amount:     rec.Amount.String(),
			Currency:   rec.Currency,
			Display:    domain.Display(rec, time.UTC),
			CreatedAt:  row.CreatedTS,
		})
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"events": items,
		"count":  len(items),
	})
}
