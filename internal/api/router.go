// Package api is the bot's operational HTTP surface: health, Prometheus
// metrics, recently handled events and the record journal.
package api

import (
	"net/http"
	"strings"

	"github.com/dvloznov/telegrind/internal/api/handlers"
	"github.com/dvloznov/telegrind/internal/api/middleware"
	"github.com/dvloznov/telegrind/internal/jobs"
	"github.com/dvloznov/telegrind/internal/metrics"
	"github.com/rs/zerolog"
)

// Options selects what the router serves. Nil fields leave their
// endpoints out.
type Options struct {
	Jobs    jobs.JobStore
	History handlers.HistoryReader
	Metrics *metrics.Metrics
	// Token protects /api/ endpoints when set.
	Token string
	Log   zerolog.Logger
}

// NewRouter builds the HTTP handler with the standard middleware chain.
func NewRouter(opts Options) http.Handler {
	log := opts.Log
	mux := http.NewServeMux()
	auth := middleware.Auth(opts.Token)

	health := handlers.NewHealthHandler()
	mux.HandleFunc("/health", health.Health)

	if opts.Metrics != nil {
		mux.Handle("/metrics", opts.Metrics.Handler())
	}

	if opts.Jobs != nil {
		jobsHandler := handlers.NewJobsHandler(opts.Jobs, log)
		mux.Handle("/api/jobs", auth(getOnly(jobsHandler.ListJobs)))
		mux.Handle("/api/jobs/", auth(getOnly(func(w http.ResponseWriter, r *http.Request) {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		})))
	}

	if opts.History != nil {
		historyHandler := handlers.NewHistoryHandler(opts.History, log)
		mux.Handle("/api/history", auth(getOnly(historyHandler.ListHistory)))
	}

	return middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(mux),
		),
	)
}

func getOnly(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h(w, r)
	})
}
