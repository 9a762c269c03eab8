package journal

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/telegrind/internal/domain"
	"github.com/shopspring/decimal"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// EventRow is the BigQuery layout of an Event.
type EventRow struct {
	EventID    string `bigquery:"event_id"`    // REQUIRED
	ChatID     int64  `bigquery:"chat_id"`     // REQUIRED
	MessageID  int64  `bigquery:"message_id"`  // REQUIRED
	DocumentID string `bigquery:"document_id"` // REQUIRED
	Action     string `bigquery:"action"`      // REQUIRED
	Kind       string `bigquery:"kind"`        // REQUIRED

	Amount   *big.Rat `bigquery:"amount"`   // NULLABLE NUMERIC
	Currency string   `bigquery:"currency"` // NULLABLE

	OccurredDate civil.Date             `bigquery:"occurred_date"`
	OccurredTS   bigquery.NullTimestamp `bigquery:"occurred_ts"`

	Description  bigquery.NullString `bigquery:"description"`
	Counterparty bigquery.NullString `bigquery:"counterparty"`
	Organization bigquery.NullString `bigquery:"organization"`

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

// ToRow converts an event into its BigQuery row.
func ToRow(ev Event) *EventRow {
	rec := ev.Record
	row := &EventRow{
		EventID:      ev.EventID,
		ChatID:       ev.ChatID,
		MessageID:    rec.SourceMessageID,
		DocumentID:   ev.DocumentID,
		Action:       string(ev.Action),
		Kind:         string(rec.Kind),
		Amount:       rec.Amount.Rat(),
		Currency:     rec.Currency,
		Description:  nullString(rec.Description),
		Counterparty: nullString(rec.Counterparty),
		Organization: nullString(rec.Organization),
		CreatedTS:    ev.CreatedAt,
	}
	if !rec.OccurredAt.IsZero() {
		row.OccurredDate = civil.DateOf(rec.OccurredAt)
		row.OccurredTS = bigquery.NullTimestamp{Timestamp: rec.OccurredAt, Valid: true}
	}
	return row
}

// BigQuery appends events to a table with the streaming inserter.
type BigQuery struct {
	client  *bigquery.Client
	project string
	dataset string
	table   string
}

// NewBigQuery creates a journal writing to project.dataset.table.
func NewBigQuery(ctx context.Context, project, dataset, table string) (*BigQuery, error) {
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("NewBigQuery: bigquery client: %w", err)
	}
	return &BigQuery{client: client, project: project, dataset: dataset, table: table}, nil
}

// Close closes the BigQuery client connection.
func (j *BigQuery) Close() error {
	if j.client != nil {
		return j.client.Close()
	}
	return nil
}

func (j *BigQuery) tableRef() *bigquery.Table {
	return j.client.DatasetInProject(j.project, j.dataset).Table(j.table)
}

func (j *BigQuery) Log(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([]*EventRow, 0, len(events))
	for _, ev := range events {
		rows = append(rows, ToRow(ev))
	}
	if err := j.tableRef().Inserter().Put(ctx, rows); err != nil {
		return fmt.Errorf("Log: inserting %d rows: %w", len(rows), err)
	}
	return nil
}

// EnsureTable creates the journal table when it does not exist.
func (j *BigQuery) EnsureTable(ctx context.Context) error {
	schema, err := bigquery.InferSchema(EventRow{})
	if err != nil {
		return fmt.Errorf("EnsureTable: inferring schema: %w", err)
	}
	meta := &bigquery.TableMetadata{
		Schema:           schema,
		TimePartitioning: &bigquery.TimePartitioning{Field: "created_ts"},
	}
	if err := j.tableRef().Create(ctx, meta); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
			return nil
		}
		return fmt.Errorf("EnsureTable: creating table: %w", err)
	}
	return nil
}

// Recent returns the latest events of a chat, newest first.
func (j *BigQuery) Recent(ctx context.Context, chatID int64, limit int) ([]*EventRow, error) {
	query := fmt.Sprintf(`
		SELECT *
		FROM `+"`%s.%s.%s`"+`
		WHERE chat_id = @chat_id
		ORDER BY created_ts DESC
		LIMIT @limit
	`, j.project, j.dataset, j.table)

	q := j.client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "chat_id", Value: chatID},
		{Name: "limit", Value: limit},
	}
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("Recent: reading query: %w", err)
	}

	var events []*EventRow
	for {
		var row EventRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("Recent: iterating: %w", err)
		}
		events = append(events, &row)
	}
	return events, nil
}

// RecordOf rebuilds the record fields kept in a row.
func RecordOf(row *EventRow) domain.Record {
	rec := domain.Record{
		Kind:            domain.Kind(row.Kind),
		SourceMessageID: row.MessageID,
		Currency:        row.Currency,
		Description:     row.Description.StringVal,
		Counterparty:    row.Counterparty.StringVal,
		Organization:    row.Organization.StringVal,
	}
	if row.Amount != nil {
		// NUMERIC has nine fractional digits.
		rec.Amount = decimal.NewFromBigRat(row.Amount, 9)
	}
	if row.OccurredTS.Valid {
		rec.OccurredAt = row.OccurredTS.Timestamp
	}
	return rec
}

var _ Journal = (*BigQuery)(nil)
