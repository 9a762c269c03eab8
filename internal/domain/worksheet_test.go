package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToRowFromRow_RoundTrip(t *testing.T) {
	loc := DefaultDocumentConfig().Location()
	at := time.Date(2024, 1, 9, 18, 30, 0, 0, loc)

	tests := []struct {
		name   string
		record Record
	}{
		{
			name: "expense",
			record: Record{
				Kind: KindExpense, SourceMessageID: 101, Amount: decimal.RequireFromString("10.5"),
				Currency: "KZT", OccurredAt: at, Description: "обед",
			},
		},
		{
			name: "loan lent out",
			record: Record{
				Kind: KindLoan, SourceMessageID: 102, Amount: decimal.RequireFromString("-5000"),
				Currency: "USD", OccurredAt: at, Counterparty: "Вася", Description: "до зарплаты",
			},
		},
		{
			name: "wish without comment",
			record: Record{
				Kind: KindWish, SourceMessageID: 103, Amount: decimal.RequireFromString("199.99"),
				Currency: "EUR", OccurredAt: at,
			},
		},
		{
			name: "commodity",
			record: Record{
				Kind: KindCommodity, SourceMessageID: 104, Description: "Молоко 2.5%",
				UnitPrice: decimal.RequireFromString("450"), Quantity: decimal.RequireFromString("2"),
				OccurredAt: at, Organization: "ТОО Магнум",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, err := ToRow(tt.record, loc)
			require.NoError(t, err)
			assert.Len(t, row, MustSpec(tt.record.Kind).Cols)

			got, err := FromRow(tt.record.Kind, row, loc)
			require.NoError(t, err)

			assert.Equal(t, tt.record.SourceMessageID, got.SourceMessageID)
			assert.True(t, tt.record.Amount.Equal(got.Amount), "amount %s != %s", tt.record.Amount, got.Amount)
			assert.Equal(t, tt.record.Currency, got.Currency)
			assert.True(t, tt.record.OccurredAt.Equal(got.OccurredAt), "date %s != %s", tt.record.OccurredAt, got.OccurredAt)
			assert.Equal(t, tt.record.Description, got.Description)
			assert.Equal(t, tt.record.Counterparty, got.Counterparty)
			assert.True(t, tt.record.UnitPrice.Equal(got.UnitPrice))
			assert.True(t, tt.record.Quantity.Equal(got.Quantity))
			assert.Equal(t, tt.record.Organization, got.Organization)
		})
	}
}

func TestToRow_StoresUnlocalizedAmount(t *testing.T) {
	loc := DefaultDocumentConfig().Location()
	row, err := ToRow(Record{
		Kind: KindExpense, SourceMessageID: 1, Amount: decimal.RequireFromString("10.5"),
		Currency: "KZT", OccurredAt: time.Date(2024, 1, 10, 12, 0, 0, 0, loc),
	}, loc)
	require.NoError(t, err)

	assert.Equal(t, json.Number("10.5"), row[1])
	assert.Equal(t, "10.01.24 12:00", row[3])
}

func TestFromRow_APIRenderedCells(t *testing.T) {
	loc := DefaultDocumentConfig().Location()
	// UNFORMATTED_VALUE reads return numbers as float64 and short rows drop trailing blanks.
	row := []interface{}{float64(77), float64(1500), "KZT", "10.01.2024 09:15:00"}

	got, err := FromRow(KindExpense, row, loc)
	require.NoError(t, err)

	assert.Equal(t, int64(77), got.SourceMessageID)
	assert.Equal(t, "1500", got.Amount.String())
	assert.Equal(t, "", got.Description)
	assert.True(t, time.Date(2024, 1, 10, 9, 15, 0, 0, loc).Equal(got.OccurredAt))
}

func TestFromRow_BadID(t *testing.T) {
	_, err := FromRow(KindExpense, []interface{}{"#", "Amount"}, time.UTC)
	assert.Error(t, err)
}

func TestCellText(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want string
	}{
		{"nil", nil, ""},
		{"string", "abc", "abc"},
		{"integral float", float64(12345), "12345"},
		{"fractional float", 10.25, "10.25"},
		{"json number", json.Number("7"), "7"},
		{"int64", int64(9), "9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CellText(tt.in))
		})
	}
}

func TestSpec(t *testing.T) {
	for _, k := range SearchOrder {
		s, err := Spec(k)
		require.NoError(t, err)
		assert.Equal(t, "#", s.Header[0])
		assert.Equal(t, len(s.Header), s.Cols)
		assert.Equal(t, 1, s.Rows)
	}

	_, err := Spec(Kind("income"))
	assert.Error(t, err)
}
