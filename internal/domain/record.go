package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies which worksheet a record belongs to.
type Kind string

const (
	KindExpense   Kind = "expense"
	KindLoan      Kind = "loan"
	KindWish      Kind = "wish"
	KindCommodity Kind = "commodity"
)

// UnknownCounterparty is written when a loan message names nobody.
const UnknownCounterparty = "Неизвестно"

// Record is one spreadsheet row produced from one chat message.
// Only the fields relevant to Kind are populated:
//   - Loan uses Counterparty and a signed Amount (negative = lent out).
//   - Commodity uses Description as the product name, UnitPrice, Quantity
//     and Organization; Amount is unused.
type Record struct {
	Kind            Kind
	SourceMessageID int64
	Amount          decimal.Decimal
	Currency        string
	OccurredAt      time.Time
	Description     string

	Counterparty string

	UnitPrice    decimal.Decimal
	Quantity     decimal.Decimal
	Organization string
}

// Validate checks the fields required for the record's kind.
func (r Record) Validate() error {
	switch r.Kind {
	case KindExpense, KindWish:
		if !r.Amount.IsPositive() {
			return fmt.Errorf("Validate: %s amount must be positive, got %s", r.Kind, r.Amount)
		}
	case KindLoan:
		if r.Amount.IsZero() {
			return fmt.Errorf("Validate: loan amount must be non-zero")
		}
	case KindCommodity:
		if strings.TrimSpace(r.Description) == "" {
			return fmt.Errorf("Validate: commodity without product name")
		}
		return nil
	default:
		return fmt.Errorf("Validate: unknown record kind %q", r.Kind)
	}
	if len(r.Currency) != 3 {
		return fmt.Errorf("Validate: currency %q is not a 3-letter code", r.Currency)
	}
	return nil
}

// Display renders the record the way the bot echoes it back to the user.
func Display(r Record, loc *time.Location) string {
	date := FormatDate(r.OccurredAt, loc)
	switch r.Kind {
	case KindLoan:
		return strings.TrimSpace(fmt.Sprintf("%s %s %s %s %q",
			DisplayAmount(r.Amount), strings.ToLower(r.Currency), r.Counterparty, date, r.Description))
	case KindCommodity:
		return fmt.Sprintf("%s × %s по %s", r.Description, DisplayAmount(r.Quantity), DisplayAmount(r.UnitPrice))
	default:
		return fmt.Sprintf("%s %s %s %q",
			DisplayAmount(r.Amount), strings.ToLower(r.Currency), date, r.Description)
	}
}

// DisplayAmount formats an amount with a comma decimal separator.
func DisplayAmount(d decimal.Decimal) string {
	return strings.Replace(d.String(), ".", ",", 1)
}

// StoredAmount formats an amount as an unlocalized numeric string.
func StoredAmount(d decimal.Decimal) string {
	return d.String()
}

// DateLayout is the layout of the date column in every worksheet.
const DateLayout = "02.01.06 15:04"

// FormatDate renders t in the document timezone.
func FormatDate(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(DateLayout)
}

// ParseDate reads a date column value back in the document timezone.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := parseDateCell(s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("ParseDate: %w", err)
	}
	return t, nil
}
