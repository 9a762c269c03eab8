package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dvloznov/telegrind/internal/api"
	"github.com/dvloznov/telegrind/internal/binding"
	"github.com/dvloznov/telegrind/internal/bot"
	"github.com/dvloznov/telegrind/internal/config"
	"github.com/dvloznov/telegrind/internal/jobs/inmemory"
	"github.com/dvloznov/telegrind/internal/journal"
	"github.com/dvloznov/telegrind/internal/llm"
	"github.com/dvloznov/telegrind/internal/logger"
	"github.com/dvloznov/telegrind/internal/metrics"
	"github.com/dvloznov/telegrind/internal/nlp"
	"github.com/dvloznov/telegrind/internal/parser"
	"github.com/dvloznov/telegrind/internal/receipt"
	"github.com/dvloznov/telegrind/internal/sheets"
	"github.com/dvloznov/telegrind/internal/telegram"
)

func main() {
	var (
		port     = flag.Int("port", 0, "HTTP server port (overrides HTTP_PORT)")
		logLevel = flag.String("log-level", "", "Log level (overrides LOG_LEVEL)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		l := logger.New()
		l.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	log := logger.NewWithLevel(cfg.LogLevel)
	ctx := logger.WithContext(context.Background(), log)

	// Spreadsheets
	sheetsAPI, err := sheets.NewGoogleAPIFromFile(ctx, cfg.Google.CredentialsFile, cfg.Google.SheetsRequestsPerMin)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Sheets client")
	}
	serviceAccount := cfg.Google.ServiceAccountDisplay
	if serviceAccount == "" {
		serviceAccount = sheetsAPI.ServiceAccountEmail()
	}

	// Chat bindings
	var bindings binding.Store
	if cfg.Database.URL != "" {
		pool, err := binding.Connect(ctx, cfg.Database.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer pool.Close()
		if err := binding.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("Failed to migrate database")
		}
		bindings = binding.NewPostgres(pool)
	} else {
		log.Warn().Msg("No DATABASE_URL configured - chat bindings are kept in memory")
		bindings = binding.NewMemory()
	}

	// Optional collaborators
	var assistant llm.Assistant
	if cfg.Gemini.APIKey != "" {
		g, err := llm.NewGemini(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Gemini client")
		}
		assistant = g
	} else {
		log.Warn().Msg("No GEMINI_API_KEY configured - free-form messages use rules only")
	}

	var archive receipt.Archive
	if cfg.Receipts.Bucket != "" {
		a, err := receipt.NewGCSArchive(ctx, cfg.Receipts.Bucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create receipt archive")
		}
		defer a.Close()
		archive = a
	}

	var (
		recordJournal journal.Journal = journal.Nop{}
		history       *journal.BigQuery
	)
	if cfg.Journal.Project != "" {
		bq, err := journal.NewBigQuery(ctx, cfg.Journal.Project, cfg.Journal.Dataset, cfg.Journal.Table)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create journal")
		}
		defer bq.Close()
		recordJournal = bq
		history = bq
	}

	var m *metrics.Metrics
	if cfg.Server.MetricsEnabled {
		m = metrics.New()
	}

	// Per-chat ordered queue
	jobStore := inmemory.NewStore(inmemory.DefaultCapacity)
	queue := inmemory.NewQueue(cfg.Telegram.Workers, cfg.Telegram.QueueSize, jobStore)
	queue.SetPublishTimeout(cfg.Telegram.PublishTimeout)

	tg, err := telegram.Connect(cfg.Telegram.Token, cfg.Telegram.Debug)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Telegram")
	}
	log.Info().Str("username", tg.Self.UserName).Msg("Authorized on Telegram")
	transport := telegram.New(tg, queue, cfg.Telegram.EventTimeout, log)

	deps := bot.Deps{
		Sheets:         sheetsAPI,
		Bindings:       bindings,
		Parsers:        parser.NewSet(nlp.NewExtractor()),
		Assistant:      assistant,
		Receipts:       receipt.NewClient(&http.Client{Timeout: 30 * time.Second}, cfg.Receipts.LookupURL),
		Archive:        archive,
		Files:          transport,
		Journal:        recordJournal,
		Metrics:        m,
		ServiceAccount: serviceAccount,
	}
	dispatcher := bot.NewDispatcher(deps, bot.NewHandlers(deps).Routes())

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()
	if err := queue.Start(workerCtx, transport.Handler(dispatcher)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start workers")
	}

	// HTTP surface
	opts := api.Options{Jobs: jobStore, Metrics: m, Token: cfg.Server.AdminToken, Log: log}
	if history != nil {
		opts.History = history
	}
	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      api.NewRouter(opts),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	pollCtx, stopPolling := context.WithCancel(ctx)
	pollDone := make(chan struct{})
	go func() {
		defer close(pollDone)
		if err := transport.Run(pollCtx, cfg.Telegram.PollTimeout); err != nil {
			log.Error().Err(err).Msg("Polling stopped with error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	stopPolling()
	<-pollDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Let workers finish the events already queued
	if err := queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	if err := queue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Bot exited")
}
