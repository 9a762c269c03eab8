package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/telegrind/internal/binding"
	"github.com/dvloznov/telegrind/internal/domain"
	"github.com/dvloznov/telegrind/internal/export"
	"github.com/dvloznov/telegrind/internal/journal"
	"github.com/dvloznov/telegrind/internal/logger"
	"github.com/dvloznov/telegrind/internal/nlp"
	"github.com/dvloznov/telegrind/internal/parser"
	"github.com/dvloznov/telegrind/internal/receipt"
	"github.com/dvloznov/telegrind/internal/sheets"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	_ = godotenv.Load()
	log := logger.NewWithLevel(os.Getenv("LOG_LEVEL"))

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "parse":
		runParse(log)
	case "bind":
		runBind(log)
	case "migrate":
		runMigrate(log)
	case "init-sheet":
		runInitSheet(log)
	case "receipt":
		runReceipt(log)
	case "journal":
		runJournal(log)
	case "export":
		runExport(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Telegrind CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  parse       Classify a message the way the bot would")
	fmt.Println("  bind        Bind a chat to a spreadsheet")
	fmt.Println("  migrate     Apply database migrations and create the journal table")
	fmt.Println("  init-sheet  Create the settings and record worksheets in a spreadsheet")
	fmt.Println("  receipt     Fetch a fiscal receipt and print its records")
	fmt.Println("  journal     Show the latest journal events of a chat")
	fmt.Println("  export      Export spreadsheet records to CSV or XLSX")
	fmt.Println("  help        Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func runParse(log zerolog.Logger) {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	text := fs.String("text", "", "Message text")
	tz := fs.Int("tz", domain.DefaultUTCOffsetHours, "Document UTC offset in hours")
	currency := fs.String("currency", domain.DefaultCurrency, "Default currency")
	freeform := fs.Bool("freeform", false, "Fall back to the free-form extractor")
	fs.Parse(os.Args[2:])

	if *text == "" {
		log.Fatal().Msg("Error: --text is required")
	}

	cfg := domain.DocumentConfig{UTCOffsetHours: *tz, DefaultCurrency: strings.ToUpper(*currency)}
	set := parser.NewSet(nlp.NewExtractor())
	now := cfg.Now()

	res := set.Parse(*text, cfg, now)
	if !res.OK && *freeform {
		if !parser.LooksLikeExpense(*text) {
			log.Warn().Msg("Text does not look like an expense")
		}
		res = set.ParseFreeform(*text, cfg, now)
	}
	if !res.OK {
		fmt.Println("No match.")
		os.Exit(2)
	}

	row, err := domain.ToRow(res.Record, cfg.Location())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build row")
	}
	fmt.Printf("Kind:    %s\n", res.Record.Kind)
	fmt.Printf("Display: %s\n", domain.Display(res.Record, cfg.Location()))
	fmt.Printf("Sheet:   %s\n", domain.MustSpec(res.Record.Kind).Name)
	fmt.Printf("Row:     %v\n", row)
}

func runBind(log zerolog.Logger) {
	fs := flag.NewFlagSet("bind", flag.ExitOnError)
	chatID := fs.Int64("chat", 0, "Telegram chat ID")
	docURL := fs.String("url", "", "Spreadsheet link")
	dbURL := fs.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	creds := fs.String("credentials", os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"), "Service account JSON file")
	fs.Parse(os.Args[2:])

	if *chatID == 0 || *docURL == "" {
		log.Fatal().Msg("Error: --chat and --url are required")
	}
	if *dbURL == "" {
		log.Fatal().Msg("Error: --database-url (or DATABASE_URL) is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	s := openSpreadsheet(ctx, log, *creds, *docURL)
	if _, err := s.Config(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize settings worksheet")
	}

	pool, err := binding.Connect(ctx, *dbURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	store := binding.NewPostgres(pool)
	if _, err := store.Ensure(ctx, *chatID); err != nil {
		log.Fatal().Err(err).Msg("Failed to create chat")
	}
	if err := store.Bind(ctx, *chatID, strings.TrimSpace(*docURL)); err != nil {
		log.Fatal().Err(err).Msg("Failed to bind chat")
	}

	fmt.Printf("Chat %d now writes to %q (%s).\n", *chatID, s.Title(), s.DocumentID())
}

func runMigrate(log zerolog.Logger) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	dbURL := fs.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	project := fs.String("bq-project", os.Getenv("BQ_PROJECT"), "BigQuery project of the journal (optional)")
	dataset := fs.String("bq-dataset", envOr("BQ_DATASET", "telegrind"), "BigQuery dataset of the journal")
	table := fs.String("bq-table", envOr("BQ_TABLE", "record_events"), "BigQuery table of the journal")
	fs.Parse(os.Args[2:])

	if *dbURL == "" && *project == "" {
		log.Fatal().Msg("Error: nothing to migrate, set --database-url or --bq-project")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	if *dbURL != "" {
		pool, err := binding.Connect(ctx, *dbURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer pool.Close()
		if err := binding.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("Database migration failed")
		}
		log.Info().Msg("Database is up to date")
	}

	if *project != "" {
		j, err := journal.NewBigQuery(ctx, *project, *dataset, *table)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery client")
		}
		defer j.Close()
		if err := j.EnsureTable(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to create journal table")
		}
		log.Info().Str("table", *project+"."+*dataset+"."+*table).Msg("Journal table is ready")
	}

	fmt.Println("Migration completed successfully.")
}

func runInitSheet(log zerolog.Logger) {
	fs := flag.NewFlagSet("init-sheet", flag.ExitOnError)
	docURL := fs.String("url", "", "Spreadsheet link")
	creds := fs.String("credentials", os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"), "Service account JSON file")
	fs.Parse(os.Args[2:])

	if *docURL == "" {
		log.Fatal().Msg("Error: --url is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	s := openSpreadsheet(ctx, log, *creds, *docURL)
	cfg, err := s.Config(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize settings worksheet")
	}
	fmt.Printf("Settings: UTC%+d, %s\n", cfg.UTCOffsetHours, cfg.DefaultCurrency)

	for _, kind := range domain.SearchOrder {
		_, created, err := s.Worksheet(ctx, domain.MustSpec(kind))
		if err != nil {
			log.Fatal().Err(err).Str("kind", string(kind)).Msg("Failed to create worksheet")
		}
		state := "exists"
		if created {
			state = "created"
		}
		fmt.Printf("  %-12s %s\n", domain.MustSpec(kind).Name, state)
	}
}

func runReceipt(log zerolog.Logger) {
	fs := flag.NewFlagSet("receipt", flag.ExitOnError)
	ticketURL := fs.String("url", "", "Fiscal receipt link")
	tz := fs.Int("tz", domain.DefaultUTCOffsetHours, "UTC offset for receipt dates without one")
	lookup := fs.String("lookup-url", envOr("RECEIPT_LOOKUP_URL", "https://consumer.oofd.kz/api/tickets/get-by-url"), "Receipt lookup endpoint")
	fs.Parse(os.Args[2:])

	link, ok := receipt.FindTicketURL(*ticketURL)
	if !ok {
		log.Fatal().Msg("Error: --url must be a fiscal receipt link")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	cfg := domain.DocumentConfig{UTCOffsetHours: *tz, DefaultCurrency: receipt.Currency}
	client := receipt.NewClient(&http.Client{Timeout: 30 * time.Second}, *lookup)
	ticket, err := client.Fetch(ctx, link, cfg.Location())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to fetch receipt")
	}

	expense, lines := ticket.Records(0)
	fmt.Printf("Organization: %s\n", ticket.Organization)
	fmt.Printf("Expense:      %s\n", domain.Display(expense, cfg.Location()))
	fmt.Printf("Items:        %d\n", len(lines))
	for i, line := range lines {
		fmt.Printf("  %d. %s\n", i+1, domain.Display(line, cfg.Location()))
	}
}

func runJournal(log zerolog.Logger) {
	fs := flag.NewFlagSet("journal", flag.ExitOnError)
	chatID := fs.Int64("chat", 0, "Telegram chat ID")
	limit := fs.Int("limit", 20, "Number of events to show")
	project := fs.String("bq-project", os.Getenv("BQ_PROJECT"), "BigQuery project of the journal")
	dataset := fs.String("bq-dataset", envOr("BQ_DATASET", "telegrind"), "BigQuery dataset of the journal")
	table := fs.String("bq-table", envOr("BQ_TABLE", "record_events"), "BigQuery table of the journal")
	fs.Parse(os.Args[2:])

	if *chatID == 0 || *project == "" {
		log.Fatal().Msg("Error: --chat and --bq-project are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	j, err := journal.NewBigQuery(ctx, *project, *dataset, *table)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer j.Close()

	rows, err := j.Recent(ctx, *chatID, *limit)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read journal")
	}
	if len(rows) == 0 {
		fmt.Println("No events.")
		return
	}

	fmt.Printf("%-20s %-10s %-10s %-8s %s\n", "CREATED", "ACTION", "KIND", "MESSAGE", "RECORD")
	for _, row := range rows {
		fmt.Printf("%-20s %-10s %-10s %-8s %s\n",
			row.CreatedTS.UTC().Format("2006-01-02 15:04:05"),
			row.Action,
			row.Kind,
			strconv.FormatInt(row.MessageID, 10),
			domain.Display(journal.RecordOf(row), time.UTC),
		)
	}
}

func runExport(log zerolog.Logger) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	docURL := fs.String("url", "", "Spreadsheet link")
	creds := fs.String("credentials", os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"), "Service account JSON file")
	kinds := fs.String("kinds", "expense,loan,wish,commodity", "Comma-separated record kinds")
	format := fs.String("format", "csv", "Output format: csv or xlsx")
	out := fs.String("out", "", "Output file (default stdout)")
	fs.Parse(os.Args[2:])

	// stdout may carry the export itself
	log = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if *docURL == "" {
		log.Fatal().Msg("Error: --url is required")
	}
	if *format != "csv" && *format != "xlsx" {
		log.Fatal().Str("format", *format).Msg("Error: --format must be csv or xlsx")
	}

	var selected []domain.Kind
	for _, k := range strings.Split(*kinds, ",") {
		kind := domain.Kind(strings.TrimSpace(k))
		if _, err := domain.Spec(kind); err != nil {
			log.Fatal().Err(err).Msg("Invalid --kinds")
		}
		selected = append(selected, kind)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	s := openSpreadsheet(ctx, log, *creds, *docURL)
	rows, err := export.Collect(ctx, s, selected)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read records")
	}

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create output file")
		}
		defer f.Close()
		w = f
	}

	if *format == "xlsx" {
		err = export.WriteXLSX(w, rows)
	} else {
		err = export.WriteCSV(w, rows)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}
	log.Info().Int("records", len(rows)).Str("format", *format).Msg("Export completed")
}

func openSpreadsheet(ctx context.Context, log zerolog.Logger, credentials, docURL string) *sheets.Session {
	if credentials == "" {
		log.Fatal().Msg("Error: --credentials (or GOOGLE_SERVICE_ACCOUNT_FILE) is required")
	}
	api, err := sheets.NewGoogleAPIFromFile(ctx, credentials, 60)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Sheets client")
	}
	s, err := sheets.Open(ctx, api, strings.TrimSpace(docURL))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open spreadsheet")
	}
	return s
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
