package sheets

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/dvloznov/telegrind/internal/domain"
	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
)

func TestColumnLetter(t *testing.T) {
	tests := map[int]string{1: "A", 5: "E", 26: "Z", 27: "AA", 52: "AZ", 53: "BA"}
	for in, want := range tests {
		assert.Equal(t, want, columnLetter(in))
	}
}

func TestQuoteSheet(t *testing.T) {
	assert.Equal(t, "'Expenses'", quoteSheet("Expenses"))
	assert.Equal(t, "'Bob''s'", quoteSheet("Bob's"))
}

func TestDecodeConfig(t *testing.T) {
	tests := []struct {
		name    string
		rows    [][]interface{}
		want    domain.DocumentConfig
		invalid bool
	}{
		{"numbers", [][]interface{}{{"tz", float64(5)}, {"cur", "eur"}}, domain.DocumentConfig{UTCOffsetHours: 5, DefaultCurrency: "EUR"}, false},
		{"strings", [][]interface{}{{"tz", "-3"}, {"cur", " rub"}}, domain.DocumentConfig{UTCOffsetHours: -3, DefaultCurrency: "RUB"}, false},
		{"garbage offset", [][]interface{}{{"tz", "Алматы"}, {"cur", "KZT"}}, domain.DefaultDocumentConfig(), true},
		{"empty", nil, domain.DefaultDocumentConfig(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decodeConfig(tt.rows)
			assert.Equal(t, tt.want, got.DocumentConfig)
			assert.Equal(t, tt.invalid, got.invalid != "")
		})
	}
}

func TestClassify(t *testing.T) {
	forbidden := &googleapi.Error{Code: http.StatusForbidden, Message: "The caller does not have permission"}
	badRequest := &googleapi.Error{Code: http.StatusBadRequest, Message: "Invalid range"}
	unavailable := &googleapi.Error{Code: http.StatusServiceUnavailable}

	assert.True(t, domain.IsDocumentAccess(classify("id", forbidden)))
	assert.False(t, domain.IsDocumentAccess(classify("id", badRequest)))
	assert.True(t, domain.IsDocumentAccess(classify("id", unavailable)))
	assert.True(t, domain.IsDocumentAccess(classify("id", errors.New("dial tcp: no such host"))))
	assert.False(t, domain.IsDocumentAccess(classify("id", context.Canceled)))
}
