// Package book applies parsed records to a chat's spreadsheet: new rows are
// appended, edited messages rewrite their row and "-" replies remove it.
package book

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/telegrind/internal/domain"
	"github.com/dvloznov/telegrind/internal/journal"
	"github.com/dvloznov/telegrind/internal/logger"
	"github.com/dvloznov/telegrind/internal/metrics"
	"github.com/dvloznov/telegrind/internal/sheets"
	"github.com/rs/zerolog"
)

// editable lists the worksheets an edited message can live in, in search order.
var editable = []domain.Kind{domain.KindExpense, domain.KindLoan, domain.KindWish}

// Book is one event's access to one chat document.
type Book struct {
	chatID  int64
	session *sheets.Session
	journal journal.Journal
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// New wraps an opened session. A nil journal discards history.
func New(ctx context.Context, chatID int64, session *sheets.Session, j journal.Journal, m *metrics.Metrics) *Book {
	if j == nil {
		j = journal.Nop{}
	}
	return &Book{
		chatID:  chatID,
		session: session,
		journal: j,
		metrics: m,
		log:     logger.FromContext(ctx).With().Str("document_id", session.DocumentID()).Logger(),
	}
}

// Session is the underlying document session.
func (b *Book) Session() *sheets.Session { return b.session }

// Config returns the document settings.
func (b *Book) Config(ctx context.Context) (domain.DocumentConfig, error) {
	return b.session.Config(ctx)
}

// Location is a row of a record found in the document.
type Location struct {
	Worksheet *sheets.Worksheet
	Index     int
	Record    domain.Record
}

// Record appends rec to its worksheet and returns the worksheet name.
func (b *Book) Record(ctx context.Context, rec domain.Record) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", fmt.Errorf("Record: %w", err)
	}
	cfg, err := b.Config(ctx)
	if err != nil {
		return "", fmt.Errorf("Record: %w", err)
	}
	ws, err := b.append(ctx, cfg, rec)
	if err != nil {
		return "", fmt.Errorf("Record: %w", err)
	}
	b.log.Info().Str("kind", string(rec.Kind)).Int64("message_id", rec.SourceMessageID).Msg("Recorded row")
	b.logEvents(ctx, journal.ActionRecorded, rec)
	return ws.Name(), nil
}

func (b *Book) append(ctx context.Context, cfg domain.DocumentConfig, rec domain.Record) (*sheets.Worksheet, error) {
	ws, err := b.session.WorksheetFor(ctx, rec.Kind)
	if err != nil {
		return nil, err
	}
	row, err := domain.ToRow(rec, cfg.Location())
	if err != nil {
		return nil, err
	}
	if err := ws.Append(ctx, row); err != nil {
		return nil, err
	}
	b.metrics.Record(string(rec.Kind), string(journal.ActionRecorded), 1)
	return ws, nil
}

// RecordReceipt appends the receipt total to the expenses and every ticket
// line to the commodities, all under the photo's message id.
func (b *Book) RecordReceipt(ctx context.Context, expense domain.Record, lines []domain.Record) error {
	if err := expense.Validate(); err != nil {
		return fmt.Errorf("RecordReceipt: %w", err)
	}
	cfg, err := b.Config(ctx)
	if err != nil {
		return fmt.Errorf("RecordReceipt: %w", err)
	}
	if _, err := b.append(ctx, cfg, expense); err != nil {
		return fmt.Errorf("RecordReceipt: %w", err)
	}
	if len(lines) > 0 {
		ws, err := b.session.WorksheetFor(ctx, domain.KindCommodity)
		if err != nil {
			return fmt.Errorf("RecordReceipt: %w", err)
		}
		rows := make([][]interface{}, 0, len(lines))
		for _, l := range lines {
			row, err := domain.ToRow(l, cfg.Location())
			if err != nil {
				return fmt.Errorf("RecordReceipt: %w", err)
			}
			rows = append(rows, row)
		}
		if err := ws.AppendMany(ctx, rows); err != nil {
			return fmt.Errorf("RecordReceipt: %w", err)
		}
		b.metrics.Record(string(domain.KindCommodity), string(journal.ActionRecorded), len(rows))
	}
	b.log.Info().Int64("message_id", expense.SourceMessageID).Int("lines", len(lines)).Msg("Recorded receipt")
	b.logEvents(ctx, journal.ActionRecorded, append([]domain.Record{expense}, lines...)...)
	return nil
}

// Find returns the first row carrying messageID among the editable
// worksheets, or domain.ErrRecordNotFound. Missing worksheets are skipped,
// never created.
func (b *Book) Find(ctx context.Context, messageID int64) (*Location, error) {
	cfg, err := b.Config(ctx)
	if err != nil {
		return nil, fmt.Errorf("Find: %w", err)
	}
	for _, k := range editable {
		ws, ok := b.session.Lookup(k)
		if !ok {
			continue
		}
		index, cells, err := ws.FindByID(ctx, messageID)
		if errors.Is(err, domain.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("Find: %w", err)
		}
		rec, err := domain.FromRow(k, cells, cfg.Location())
		if err != nil {
			// An unreadable row still identifies where the message lives.
			b.log.Warn().Err(err).Int64("message_id", messageID).Str("worksheet", ws.Name()).Msg("Unreadable row")
			rec = domain.Record{Kind: k, SourceMessageID: messageID}
		}
		return &Location{Worksheet: ws, Index: index, Record: rec}, nil
	}
	return nil, domain.ErrRecordNotFound
}

// Edit rewrites the row of rec.SourceMessageID with rec. When the edit
// changed the record kind, the old row is removed and rec is appended to its
// own worksheet. The previous record is returned.
func (b *Book) Edit(ctx context.Context, rec domain.Record) (domain.Record, error) {
	if err := rec.Validate(); err != nil {
		return domain.Record{}, fmt.Errorf("Edit: %w", err)
	}
	loc, err := b.Find(ctx, rec.SourceMessageID)
	if err != nil {
		return domain.Record{}, err
	}
	cfg, err := b.Config(ctx)
	if err != nil {
		return domain.Record{}, fmt.Errorf("Edit: %w", err)
	}

	if loc.Record.Kind == rec.Kind {
		row, err := domain.ToRow(rec, cfg.Location())
		if err != nil {
			return domain.Record{}, fmt.Errorf("Edit: %w", err)
		}
		if err := loc.Worksheet.UpdateRow(ctx, loc.Index, row); err != nil {
			return domain.Record{}, fmt.Errorf("Edit: %w", err)
		}
	} else {
		if err := loc.Worksheet.DeleteRow(ctx, loc.Index); err != nil {
			return domain.Record{}, fmt.Errorf("Edit: %w", err)
		}
		if _, err := b.append(ctx, cfg, rec); err != nil {
			return domain.Record{}, fmt.Errorf("Edit: %w", err)
		}
		b.log.Info().
			Str("from", string(loc.Record.Kind)).
			Str("to", string(rec.Kind)).
			Int64("message_id", rec.SourceMessageID).
			Msg("Edited message moved to another worksheet")
	}
	b.metrics.Record(string(rec.Kind), string(journal.ActionEdited), 1)
	b.logEvents(ctx, journal.ActionEdited, rec)
	return loc.Record, nil
}

// Delete removes the record of messageID and every commodity row of the
// same message. It returns the number of removed rows, or
// domain.ErrRecordNotFound when nothing carried the id.
func (b *Book) Delete(ctx context.Context, messageID int64) (int, error) {
	var removed []domain.Record

	loc, err := b.Find(ctx, messageID)
	switch {
	case err == nil:
		if err := loc.Worksheet.DeleteRow(ctx, loc.Index); err != nil {
			return 0, fmt.Errorf("Delete: %w", err)
		}
		removed = append(removed, loc.Record)
		b.metrics.Record(string(loc.Record.Kind), string(journal.ActionDeleted), 1)
	case !errors.Is(err, domain.ErrRecordNotFound):
		return 0, err
	}

	if ws, ok := b.session.Lookup(domain.KindCommodity); ok {
		indexes, err := ws.FindAllByID(ctx, messageID)
		if err != nil {
			return len(removed), fmt.Errorf("Delete: %w", err)
		}
		// Bottom-up so earlier indexes stay valid.
		for i := len(indexes) - 1; i >= 0; i-- {
			if err := ws.DeleteRow(ctx, indexes[i]); err != nil {
				return len(removed), fmt.Errorf("Delete: %w", err)
			}
			removed = append(removed, domain.Record{Kind: domain.KindCommodity, SourceMessageID: messageID})
		}
		b.metrics.Record(string(domain.KindCommodity), string(journal.ActionDeleted), len(indexes))
	}

	if len(removed) == 0 {
		return 0, domain.ErrRecordNotFound
	}
	b.log.Info().Int64("message_id", messageID).Int("rows", len(removed)).Msg("Deleted rows")
	b.logEvents(ctx, journal.ActionDeleted, removed...)
	return len(removed), nil
}

// logEvents writes history. Journal failures are logged and ignored.
func (b *Book) logEvents(ctx context.Context, action journal.Action, recs ...domain.Record) {
	events := make([]journal.Event, 0, len(recs))
	for _, r := range recs {
		events = append(events, journal.NewEvent(action, b.chatID, b.session.DocumentID(), r))
	}
	if err := b.journal.Log(ctx, events...); err != nil {
		b.log.Warn().Err(err).Str("action", string(action)).Msg("Failed to write journal")
	}
}
