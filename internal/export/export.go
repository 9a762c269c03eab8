// Package export reads the record worksheets of a spreadsheet back into
// flat rows and writes them as CSV or XLSX.
package export

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dvloznov/telegrind/internal/domain"
	"github.com/dvloznov/telegrind/internal/logger"
	"github.com/dvloznov/telegrind/internal/sheets"
	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"
)

// Row is one exported record. Columns that do not apply to the kind stay empty.
type Row struct {
	Kind         string `csv:"kind"`
	MessageID    int64  `csv:"message_id"`
	Date         string `csv:"date"`
	Amount       string `csv:"amount"`
	Currency     string `csv:"currency"`
	Counterparty string `csv:"counterparty"`
	Description  string `csv:"description"`
	Price        string `csv:"price"`
	Quantity     string `csv:"quantity"`
	Organization string `csv:"organization"`
}

var columns = []string{
	"kind", "message_id", "date", "amount", "currency",
	"counterparty", "description", "price", "quantity", "organization",
}

func (r Row) cells() []interface{} {
	return []interface{}{
		r.Kind, r.MessageID, r.Date, r.Amount, r.Currency,
		r.Counterparty, r.Description, r.Price, r.Quantity, r.Organization,
	}
}

// FromRecord flattens a record; dates are rendered in loc.
func FromRecord(rec domain.Record, loc *time.Location) Row {
	row := Row{
		Kind:        string(rec.Kind),
		MessageID:   rec.SourceMessageID,
		Date:        domain.FormatDate(rec.OccurredAt, loc),
		Currency:    rec.Currency,
		Description: rec.Description,
	}
	switch rec.Kind {
	case domain.KindCommodity:
		row.Price = domain.StoredAmount(rec.UnitPrice)
		row.Quantity = domain.StoredAmount(rec.Quantity)
		row.Organization = rec.Organization
	case domain.KindLoan:
		row.Amount = domain.StoredAmount(rec.Amount)
		row.Counterparty = rec.Counterparty
	default:
		row.Amount = domain.StoredAmount(rec.Amount)
	}
	return row
}

// Collect reads every existing worksheet of kinds, in order. Worksheets the
// document lacks are skipped; rows that cannot be decoded are logged and skipped.
func Collect(ctx context.Context, s *sheets.Session, kinds []domain.Kind) ([]Row, error) {
	log := logger.FromContext(ctx)

	cfg, err := s.Config(ctx)
	if err != nil {
		return nil, fmt.Errorf("Collect: %w", err)
	}
	loc := cfg.Location()

	var out []Row
	for _, kind := range kinds {
		ws, ok := s.Lookup(kind)
		if !ok {
			continue
		}
		rows, err := ws.Rows(ctx)
		if err != nil {
			return nil, fmt.Errorf("Collect: %w", err)
		}
		for i, cells := range rows {
			if i == 0 {
				continue
			}
			rec, err := domain.FromRow(kind, cells, loc)
			if err != nil {
				log.Warn().Err(err).Str("worksheet", ws.Name()).Int("row", i+1).Msg("Skipping unreadable row")
				continue
			}
			out = append(out, FromRecord(rec, loc))
		}
	}
	return out, nil
}

// WriteCSV writes rows with a header line.
func WriteCSV(w io.Writer, rows []Row) error {
	if len(rows) == 0 {
		// gocsv needs at least one element to infer the header
		_, err := fmt.Fprintln(w, strings.Join(columns, ","))
		return err
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("WriteCSV: %w", err)
	}
	return nil
}

// WriteXLSX writes rows into a single "Records" sheet.
func WriteXLSX(w io.Writer, rows []Row) error {
	const sheet = "Records"

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("WriteXLSX: renaming sheet: %w", err)
	}

	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("WriteXLSX: header: %w", err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("WriteXLSX: %w", err)
		}
		cells := row.cells()
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return fmt.Errorf("WriteXLSX: row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("WriteXLSX: %w", err)
	}
	return nil
}
