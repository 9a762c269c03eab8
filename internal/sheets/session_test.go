package sheets_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/telegrind/internal/domain"
	"github.com/dvloznov/telegrind/internal/sheets"
	"github.com/dvloznov/telegrind/internal/sheets/sheetstest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const docID = "1AbCdEfGhIjKlMnOpQrStUvWxYz0123456789"

func openSession(t *testing.T, fake *sheetstest.Fake) *sheets.Session {
	t.Helper()
	s, err := sheets.Open(context.Background(), fake, fake.URL())
	require.NoError(t, err)
	return s
}

func TestWorksheet_EnsureIsIdempotent(t *testing.T) {
	ctx := context.Background()
	fake := sheetstest.New(docID, "Budget")

	s1 := openSession(t, fake)
	_, err := s1.WorksheetFor(ctx, domain.KindExpense)
	require.NoError(t, err)
	_, err = s1.WorksheetFor(ctx, domain.KindExpense)
	require.NoError(t, err)

	s2 := openSession(t, fake)
	_, created, err := s2.Worksheet(ctx, domain.MustSpec(domain.KindExpense))
	require.NoError(t, err)
	assert.False(t, created)

	assert.Equal(t, 1, fake.Calls("AddSheet"))
	rows := fake.Rows("Expenses")
	require.Len(t, rows, 1)
	assert.Equal(t, []interface{}{"#", "Amount", "Currency", "Date", "Comment"}, rows[0])

	props := fake.Properties("Expenses")
	assert.Equal(t, int64(1), props.GridProperties.RowCount)
	assert.Equal(t, int64(5), props.GridProperties.ColumnCount)
}

func TestWorksheet_HeaderIsCreatedWithTheSheet(t *testing.T) {
	ctx := context.Background()
	fake := sheetstest.New(docID, "Budget")
	fake.FailRequest("UpdateCells", errors.New("429: quota exceeded"))
	s := openSession(t, fake)

	_, err := s.WorksheetFor(ctx, domain.KindExpense)
	require.Error(t, err)
	assert.NotContains(t, fake.Titles(), "Expenses", "a failed header write must not leave a bare worksheet")
	_, ok := s.Lookup(domain.KindExpense)
	assert.False(t, ok)

	fake.FailRequest("UpdateCells", nil)
	ws, err := s.WorksheetFor(ctx, domain.KindExpense)
	require.NoError(t, err)

	rows := fake.Rows("Expenses")
	require.Len(t, rows, 1)
	assert.Equal(t, []interface{}{"#", "Amount", "Currency", "Date", "Comment"}, rows[0])
	require.NotNil(t, fake.Filter("Expenses"))
	assert.Equal(t, fake.Properties("Expenses").SheetId, fake.Filter("Expenses").SheetId)
	assert.Equal(t, 1, fake.Calls("AddSheet"))

	require.NoError(t, ws.Append(ctx, []interface{}{int64(1), "500", "KZT", "10.01.24 12:00", "кофе"}))
	assert.Len(t, fake.Rows("Expenses"), 2)
}

func TestWorksheet_FilterCoversAllColumns(t *testing.T) {
	ctx := context.Background()
	fake := sheetstest.New(docID, "Budget")
	s := openSession(t, fake)

	ws, err := s.WorksheetFor(ctx, domain.KindLoan)
	require.NoError(t, err)
	require.NoError(t, ws.Append(ctx, []interface{}{int64(1), "-5", "KZT", "Вася", "10.01.24 12:00", ""}))

	f := fake.Filter("Loans")
	require.NotNil(t, f)
	assert.Equal(t, fake.Properties("Loans").SheetId, f.SheetId)
	assert.Equal(t, int64(6), f.EndColumnIndex)
}

func TestWorksheet_AppendFindUpdateDelete(t *testing.T) {
	ctx := context.Background()
	fake := sheetstest.New(docID, "Budget")
	s := openSession(t, fake)
	cfg, err := s.Config(ctx)
	require.NoError(t, err)
	loc := cfg.Location()

	ws, err := s.WorksheetFor(ctx, domain.KindExpense)
	require.NoError(t, err)

	rec := domain.Record{
		Kind: domain.KindExpense, SourceMessageID: 42, Amount: decimal.RequireFromString("10.5"),
		Currency: "KZT", OccurredAt: time.Date(2024, 1, 10, 12, 0, 0, 0, loc), Description: "кофе",
	}
	row, err := domain.ToRow(rec, loc)
	require.NoError(t, err)
	require.NoError(t, ws.AppendMany(ctx, [][]interface{}{
		{int64(41), "1", "KZT", "10.01.24 11:00", ""},
		row,
	}))

	idx, cells, err := ws.FindByID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 3, idx)
	got, err := domain.FromRow(domain.KindExpense, cells, loc)
	require.NoError(t, err)
	assert.True(t, rec.Amount.Equal(got.Amount))
	assert.Equal(t, rec.Description, got.Description)

	rec.Amount = decimal.RequireFromString("20")
	row, err = domain.ToRow(rec, loc)
	require.NoError(t, err)
	require.NoError(t, ws.UpdateRow(ctx, idx, row))
	_, cells, err = ws.FindByID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "20", domain.CellText(cells[1]))

	require.NoError(t, ws.DeleteRow(ctx, idx))
	_, _, err = ws.FindByID(ctx, 42)
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	assert.Len(t, fake.Rows("Expenses"), 2)
}

func TestWorksheet_RefusesHeaderRow(t *testing.T) {
	ctx := context.Background()
	fake := sheetstest.New(docID, "Budget")
	ws, err := openSession(t, fake).WorksheetFor(ctx, domain.KindWish)
	require.NoError(t, err)

	assert.Error(t, ws.DeleteRow(ctx, 1))
	assert.Error(t, ws.UpdateRow(ctx, 1, []interface{}{"x"}))
}

func TestWorksheet_DuplicateIDsReturnFirst(t *testing.T) {
	ctx := context.Background()
	fake := sheetstest.New(docID, "Budget")
	fake.Seed("Expenses",
		[]interface{}{"#", "Amount", "Currency", "Date", "Comment"},
		[]interface{}{float64(7), float64(1), "KZT", "10.01.24 12:00", "first"},
		[]interface{}{float64(7), float64(2), "KZT", "10.01.24 12:00", "second"},
	)

	ws, err := openSession(t, fake).WorksheetFor(ctx, domain.KindExpense)
	require.NoError(t, err)

	idx, cells, err := ws.FindByID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, idx)
	assert.Equal(t, "first", cells[4])

	all, err := ws.FindAllByID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, all)
}

func TestSession_LookupDoesNotCreate(t *testing.T) {
	fake := sheetstest.New(docID, "Budget")
	s := openSession(t, fake)

	_, ok := s.Lookup(domain.KindLoan)
	assert.False(t, ok)
	assert.Empty(t, fake.Titles())
}

func TestConfigSheet_CreatesDefaults(t *testing.T) {
	ctx := context.Background()
	fake := sheetstest.New(docID, "Budget")
	s := openSession(t, fake)

	cfg, err := s.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultDocumentConfig(), cfg)

	rows := fake.Rows(sheets.ConfigSheetName)
	require.Len(t, rows, 2)
	assert.Equal(t, 6, rows[0][1])
	assert.Equal(t, "KZT", rows[1][1])
	props := fake.Properties(sheets.ConfigSheetName)
	assert.Equal(t, int64(2), props.GridProperties.RowCount)
	assert.Equal(t, int64(2), props.GridProperties.ColumnCount)
}

func TestConfigSheet_ReadsAndCaches(t *testing.T) {
	ctx := context.Background()
	fake := sheetstest.New(docID, "Budget")
	fake.Seed(sheets.ConfigSheetName,
		[]interface{}{"timezone offset (hours)", float64(3)},
		[]interface{}{"default currency", " usd "},
	)
	s := openSession(t, fake)

	cfg, err := s.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.UTCOffsetHours)
	assert.Equal(t, "USD", cfg.DefaultCurrency)

	before := fake.Calls("GetValues")
	_, err = s.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, fake.Calls("GetValues"))
}

func TestConfigSheet_Write(t *testing.T) {
	ctx := context.Background()
	fake := sheetstest.New(docID, "Budget")
	s := openSession(t, fake)

	require.NoError(t, s.Settings().Write(ctx, domain.DocumentConfig{UTCOffsetHours: 5, DefaultCurrency: "eur"}))

	cfg, err := openSession(t, fake).Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentConfig{UTCOffsetHours: 5, DefaultCurrency: "EUR"}, cfg)
}

func TestConfigSheet_WriteCachesNormalizedCurrency(t *testing.T) {
	ctx := context.Background()
	fake := sheetstest.New(docID, "Budget")
	s := openSession(t, fake)

	require.NoError(t, s.Settings().Write(ctx, domain.DocumentConfig{UTCOffsetHours: 5, DefaultCurrency: " usd "}))

	cfg, err := s.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, "USD", cfg.DefaultCurrency)
	assert.Equal(t, "USD", fake.Rows(sheets.ConfigSheetName)[1][1])
}

func TestOpen_AccessErrors(t *testing.T) {
	fake := sheetstest.New(docID, "Budget")
	fake.Err = &domain.DocumentAccessError{DocumentID: docID, Err: errors.New("403: caller does not have permission")}

	_, err := sheets.Open(context.Background(), fake, fake.URL())
	require.Error(t, err)
	assert.True(t, domain.IsDocumentAccess(err))

	_, err = sheets.Open(context.Background(), sheetstest.New(docID, "x"), "not a link")
	assert.True(t, domain.IsDocumentAccess(err))
}

func TestSpreadsheetID(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"share link", "https://docs.google.com/spreadsheets/d/" + docID + "/edit?usp=sharing", docID, false},
		{"bare id", docID, docID, false},
		{"other site", "https://example.com/sheet", "", true},
		{"empty", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sheets.SpreadsheetID(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
