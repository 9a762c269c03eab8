package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDisplayAmount(t *testing.T) {
	assert.Equal(t, "10,5", DisplayAmount(decimal.RequireFromString("10.5")))
	assert.Equal(t, "500", DisplayAmount(decimal.RequireFromString("500")))
	assert.Equal(t, "-3,75", DisplayAmount(decimal.RequireFromString("-3.75")))
}

func TestDisplay(t *testing.T) {
	loc := DefaultDocumentConfig().Location()
	r := Record{
		Kind: KindExpense, Amount: decimal.RequireFromString("10.5"), Currency: "KZT",
		OccurredAt: time.Date(2024, 1, 9, 12, 0, 0, 0, loc), Description: "кофе",
	}
	assert.Equal(t, `10,5 kzt 09.01.24 12:00 "кофе"`, Display(r, loc))
}

func TestRecordValidate(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		record  Record
		wantErr bool
	}{
		{"valid expense", Record{Kind: KindExpense, Amount: decimal.NewFromInt(1), Currency: "KZT", OccurredAt: now}, false},
		{"zero expense", Record{Kind: KindExpense, Amount: decimal.Zero, Currency: "KZT"}, true},
		{"bad currency", Record{Kind: KindWish, Amount: decimal.NewFromInt(1), Currency: "TENGE"}, true},
		{"negative loan", Record{Kind: KindLoan, Amount: decimal.NewFromInt(-100), Currency: "KZT"}, false},
		{"zero loan", Record{Kind: KindLoan, Amount: decimal.Zero, Currency: "KZT"}, true},
		{"commodity without name", Record{Kind: KindCommodity}, true},
		{"unknown kind", Record{Kind: "income"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDocumentConfigLocation(t *testing.T) {
	cfg := DocumentConfig{UTCOffsetHours: -3, DefaultCurrency: "USD"}
	_, offset := time.Date(2024, 1, 1, 0, 0, 0, 0, cfg.Location()).Zone()
	assert.Equal(t, -3*3600, offset)

	_, offset = cfg.Now().Zone()
	assert.Equal(t, -3*3600, offset)
}

func TestDocumentAccessError(t *testing.T) {
	cause := errors.New("403 forbidden")
	err := fmt.Errorf("open: %w", &DocumentAccessError{DocumentID: "abc", Err: cause})

	assert.True(t, IsDocumentAccess(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "document abc access: 403 forbidden")
	assert.False(t, IsDocumentAccess(ErrRecordNotFound))
}

func TestChatBindingBound(t *testing.T) {
	var nilBinding *ChatBinding
	assert.False(t, nilBinding.Bound())
	assert.False(t, (&ChatBinding{ChatID: 1}).Bound())
	assert.True(t, (&ChatBinding{ChatID: 1, DocumentURL: "https://docs.google.com/spreadsheets/d/x"}).Bound())
}
