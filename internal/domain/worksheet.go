package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// WorksheetSpec describes the fixed layout of one worksheet.
type WorksheetSpec struct {
	Name   string
	Header []string
	// Rows and Cols are the dimensions the worksheet is created with.
	Rows int
	Cols int
}

func newSpec(name string, header ...string) WorksheetSpec {
	return WorksheetSpec{Name: name, Header: header, Rows: 1, Cols: len(header)}
}

var specs = map[Kind]WorksheetSpec{
	KindExpense:   newSpec("Expenses", "#", "Amount", "Currency", "Date", "Comment"),
	KindLoan:      newSpec("Loans", "#", "Amount", "Currency", "Counterparty", "Date", "Comment"),
	KindWish:      newSpec("Wishlist", "#", "Amount", "Currency", "Date", "Comment"),
	KindCommodity: newSpec("Commodities", "#", "Product", "Price", "Quantity", "Date", "Organization"),
}

// SearchOrder is the order worksheets are scanned when locating a message id.
var SearchOrder = []Kind{KindExpense, KindLoan, KindWish, KindCommodity}

// Spec returns the worksheet layout for a record kind.
func Spec(k Kind) (WorksheetSpec, error) {
	s, ok := specs[k]
	if !ok {
		return WorksheetSpec{}, fmt.Errorf("Spec: unknown record kind %q", k)
	}
	return s, nil
}

// MustSpec is Spec for kinds known at compile time.
func MustSpec(k Kind) WorksheetSpec {
	s, err := Spec(k)
	if err != nil {
		panic(err)
	}
	return s
}

// ToRow converts a record into the positional cells of its worksheet.
// Amounts are sent as JSON numbers so the sheet locale never reinterprets them.
func ToRow(r Record, loc *time.Location) ([]interface{}, error) {
	date := FormatDate(r.OccurredAt, loc)
	switch r.Kind {
	case KindExpense, KindWish:
		return []interface{}{r.SourceMessageID, number(r.Amount), r.Currency, date, r.Description}, nil
	case KindLoan:
		return []interface{}{r.SourceMessageID, number(r.Amount), r.Currency, r.Counterparty, date, r.Description}, nil
	case KindCommodity:
		return []interface{}{r.SourceMessageID, r.Description, number(r.UnitPrice), number(r.Quantity), date, r.Organization}, nil
	}
	return nil, fmt.Errorf("ToRow: unknown record kind %q", r.Kind)
}

// FromRow rebuilds a record from the cells of a worksheet row.
func FromRow(k Kind, row []interface{}, loc *time.Location) (Record, error) {
	spec, err := Spec(k)
	if err != nil {
		return Record{}, err
	}
	cells := make([]string, spec.Cols)
	for i := 0; i < len(row) && i < spec.Cols; i++ {
		cells[i] = CellText(row[i])
	}

	id, err := strconv.ParseInt(cells[0], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("FromRow: parsing message id %q: %w", cells[0], err)
	}
	r := Record{Kind: k, SourceMessageID: id}

	switch k {
	case KindExpense, KindWish:
		if r.Amount, err = parseStored(cells[1]); err != nil {
			return Record{}, fmt.Errorf("FromRow: amount: %w", err)
		}
		r.Currency = cells[2]
		if r.OccurredAt, err = parseDateCell(cells[3], loc); err != nil {
			return Record{}, fmt.Errorf("FromRow: date: %w", err)
		}
		r.Description = cells[4]
	case KindLoan:
		if r.Amount, err = parseStored(cells[1]); err != nil {
			return Record{}, fmt.Errorf("FromRow: amount: %w", err)
		}
		r.Currency = cells[2]
		r.Counterparty = cells[3]
		if r.OccurredAt, err = parseDateCell(cells[4], loc); err != nil {
			return Record{}, fmt.Errorf("FromRow: date: %w", err)
		}
		r.Description = cells[5]
	case KindCommodity:
		r.Description = cells[1]
		if r.UnitPrice, err = parseStored(cells[2]); err != nil {
			return Record{}, fmt.Errorf("FromRow: price: %w", err)
		}
		if r.Quantity, err = parseStored(cells[3]); err != nil {
			return Record{}, fmt.Errorf("FromRow: quantity: %w", err)
		}
		if r.OccurredAt, err = parseDateCell(cells[4], loc); err != nil {
			return Record{}, fmt.Errorf("FromRow: date: %w", err)
		}
		r.Organization = cells[5]
	}
	return r, nil
}

// CellText is the display text of a cell as returned by the Sheets API.
func CellText(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func number(d decimal.Decimal) json.Number {
	return json.Number(StoredAmount(d))
}

func parseStored(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// dateLayouts also covers the display formats a sheet may echo back
// after interpreting the date column as a datetime.
var dateLayouts = []string{
	DateLayout,
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"02.01.2006",
}

func parseDateCell(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
