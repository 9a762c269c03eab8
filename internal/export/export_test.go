package export

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/dvloznov/telegrind/internal/domain"
	"github.com/dvloznov/telegrind/internal/sheets"
	"github.com/dvloznov/telegrind/internal/sheets/sheetstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func seededSession(t *testing.T) *sheets.Session {
	t.Helper()
	fake := sheetstest.New("doc-1234567890abcdefghij", "Budget")
	fake.Seed("_config",
		[]interface{}{"timezone offset (hours)", "6"},
		[]interface{}{"default currency", "KZT"},
	)
	fake.Seed("Expenses",
		[]interface{}{"#", "Amount", "Currency", "Date", "Comment"},
		[]interface{}{int64(10), "500.5", "KZT", "10.01.24 12:00", "кофе"},
		[]interface{}{"oops", "1", "KZT", "10.01.24 12:00", "broken"},
	)
	fake.Seed("Loans",
		[]interface{}{"#", "Amount", "Currency", "Counterparty", "Date", "Comment"},
		[]interface{}{int64(11), "-1000", "KZT", "Маша", "11.01.24 09:30", ""},
	)
	fake.Seed("Commodities",
		[]interface{}{"#", "Product", "Price", "Quantity", "Date", "Organization"},
		[]interface{}{int64(12), "Хлеб", "250", "2", "12.01.24 18:00", "ТОО Магазин"},
	)

	s, err := sheets.Open(context.Background(), fake, fake.URL())
	require.NoError(t, err)
	return s
}

func TestCollect(t *testing.T) {
	rows, err := Collect(context.Background(), seededSession(t), domain.SearchOrder)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, Row{Kind: "expense", MessageID: 10, Date: "10.01.24 12:00", Amount: "500.5", Currency: "KZT", Description: "кофе"}, rows[0])
	assert.Equal(t, "-1000", rows[1].Amount)
	assert.Equal(t, "Маша", rows[1].Counterparty)
	assert.Equal(t, Row{Kind: "commodity", MessageID: 12, Date: "12.01.24 18:00", Description: "Хлеб", Price: "250", Quantity: "2", Organization: "ТОО Магазин"}, rows[2])
}

func TestCollect_OnlyRequestedKinds(t *testing.T) {
	rows, err := Collect(context.Background(), seededSession(t), []domain.Kind{domain.KindWish, domain.KindLoan})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "loan", rows[0].Kind)
}

func TestWriteCSV(t *testing.T) {
	tests := []struct {
		name string
		rows []Row
		want []string
	}{
		{
			name: "empty",
			want: []string{"kind,message_id,date,amount,currency,counterparty,description,price,quantity,organization"},
		},
		{
			name: "records",
			rows: []Row{{Kind: "expense", MessageID: 10, Date: "10.01.24 12:00", Amount: "500.5", Currency: "KZT", Description: "кофе, с собой"}},
			want: []string{
				"kind,message_id,date,amount,currency,counterparty,description,price,quantity,organization",
				`expense,10,10.01.24 12:00,500.5,KZT,,"кофе, с собой",,,`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteCSV(&buf, tt.rows))
			assert.Equal(t, tt.want, strings.Split(strings.TrimRight(buf.String(), "\n"), "\n"))
		})
	}
}

func TestWriteXLSX(t *testing.T) {
	rows := []Row{
		{Kind: "expense", MessageID: 10, Date: "10.01.24 12:00", Amount: "500.5", Currency: "KZT", Description: "кофе"},
		{Kind: "commodity", MessageID: 12, Description: "Хлеб", Price: "250", Quantity: "2"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, rows))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Records"}, f.GetSheetList())
	got, err := f.GetRows("Records")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "organization", got[0][9])
	assert.Equal(t, []string{"expense", "10", "10.01.24 12:00", "500.5", "KZT", "", "кофе"}, got[1])
	assert.Equal(t, "Хлеб", got[2][6])
	assert.Equal(t, "2", got[2][8])
}
