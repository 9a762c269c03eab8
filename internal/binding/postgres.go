package binding

import (
	"context"
	"embed"
	"fmt"

	"github.com/dvloznov/telegrind/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// DB is the part of *pgxpool.Pool the store uses.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres keeps bindings in the chats table.
type Postgres struct {
	db DB
}

// NewPostgres creates a store over an open pool.
func NewPostgres(db DB) *Postgres {
	return &Postgres{db: db}
}

// Connect opens a pool and verifies connectivity.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("Connect: creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("Connect: ping: %w", err)
	}
	return pool, nil
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("Migrate: setting dialect: %w", err)
	}
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("Migrate: applying migrations: %w", err)
	}
	return nil
}

func (s *Postgres) Ensure(ctx context.Context, chatID int64) (*domain.ChatBinding, error) {
	query := `
		INSERT INTO chats (chat_id) VALUES ($1)
		ON CONFLICT (chat_id) DO UPDATE SET updated_at = now()
		RETURNING chat_id, COALESCE(sheet_url, ''), awaiting_document
	`
	var b domain.ChatBinding
	if err := s.db.QueryRow(ctx, query, chatID).Scan(&b.ChatID, &b.DocumentURL, &b.AwaitingDocument); err != nil {
		return nil, fmt.Errorf("Ensure: chat %d: %w", chatID, err)
	}
	return &b, nil
}

func (s *Postgres) SetAwaiting(ctx context.Context, chatID int64, awaiting bool) error {
	query := `UPDATE chats SET awaiting_document = $2, updated_at = now() WHERE chat_id = $1`
	tag, err := s.db.Exec(ctx, query, chatID, awaiting)
	if err != nil {
		return fmt.Errorf("SetAwaiting: chat %d: %w", chatID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("SetAwaiting: chat %d: %w", chatID, pgx.ErrNoRows)
	}
	return nil
}

func (s *Postgres) Bind(ctx context.Context, chatID int64, documentURL string) error {
	query := `
		INSERT INTO chats (chat_id, sheet_url, awaiting_document) VALUES ($1, $2, FALSE)
		ON CONFLICT (chat_id) DO UPDATE
		SET sheet_url = EXCLUDED.sheet_url, awaiting_document = FALSE, updated_at = now()
	`
	if _, err := s.db.Exec(ctx, query, chatID, documentURL); err != nil {
		return fmt.Errorf("Bind: chat %d: %w", chatID, err)
	}
	return nil
}

var _ Store = (*Postgres)(nil)
