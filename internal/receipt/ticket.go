// Package receipt resolves fiscal receipt links into tickets and turns them
// into spreadsheet records.
package receipt

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dvloznov/telegrind/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	// Currency of every ticket served by the lookup service.
	Currency = "KZT"

	// PurchaseDescription is the comment of the expense row written for a ticket.
	PurchaseDescription = "Покупки"
)

var (
	ticketURLRe   = regexp.MustCompile(`https://consumer\.oofd\.kz/\S+`)
	ordinalPrefix = regexp.MustCompile(`^\d+\.\s+`)
)

// FindTicketURL returns the first ticket link in text.
func FindTicketURL(text string) (string, bool) {
	u := ticketURLRe.FindString(text)
	return u, u != ""
}

// Ticket is a decoded fiscal receipt.
type Ticket struct {
	Organization string
	Date         time.Time
	Total        decimal.Decimal
	Items        []Item
}

// Item is one receipt line.
type Item struct {
	Name     string
	Price    decimal.Decimal
	Quantity decimal.Decimal
	Sum      decimal.Decimal
}

type ticketJSON struct {
	OrgTitle string `json:"orgTitle"`
	Ticket   *struct {
		TransactionDate string          `json:"transactionDate"`
		TotalSum        decimal.Decimal `json:"totalSum"`
		Items           []struct {
			Commodity *struct {
				Name     string          `json:"name"`
				Price    decimal.Decimal `json:"price"`
				Quantity decimal.Decimal `json:"quantity"`
				Sum      decimal.Decimal `json:"sum"`
			} `json:"commodity"`
		} `json:"items"`
	} `json:"ticket"`
}

// Decode parses a lookup response. Dates without an offset are read in loc.
func Decode(data []byte, loc *time.Location) (*Ticket, error) {
	var raw ticketJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, malformed("decoding ticket: %v", err)
	}
	if raw.Ticket == nil {
		return nil, malformed("response has no ticket")
	}

	date, err := parseTicketDate(raw.Ticket.TransactionDate, loc)
	if err != nil {
		return nil, malformed("%v", err)
	}

	t := &Ticket{
		Organization: strings.TrimSpace(raw.OrgTitle),
		Date:         date,
		Total:        raw.Ticket.TotalSum,
	}
	for _, it := range raw.Ticket.Items {
		if it.Commodity == nil {
			continue
		}
		t.Items = append(t.Items, Item{
			Name:     ordinalPrefix.ReplaceAllString(strings.TrimSpace(it.Commodity.Name), ""),
			Price:    it.Commodity.Price,
			Quantity: it.Commodity.Quantity,
			Sum:      it.Commodity.Sum,
		})
	}
	if !t.Total.IsPositive() {
		return nil, malformed("ticket total is %s", t.Total)
	}
	return t, nil
}

func parseTicketDate(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05.999999999", s, loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("ticket date %q", s)
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{domain.ErrMalformedReceipt}, args...)...)
}

// Records returns the expense row for the ticket total and one commodity row
// per ticket line, all keyed by messageID.
func (t *Ticket) Records(messageID int64) (domain.Record, []domain.Record) {
	expense := domain.Record{
		Kind:            domain.KindExpense,
		SourceMessageID: messageID,
		Amount:          t.Total,
		Currency:        Currency,
		OccurredAt:      t.Date,
		Description:     PurchaseDescription,
	}
	lines := make([]domain.Record, 0, len(t.Items))
	for _, it := range t.Items {
		lines = append(lines, domain.Record{
			Kind:            domain.KindCommodity,
			SourceMessageID: messageID,
			Amount:          it.Sum,
			Currency:        Currency,
			OccurredAt:      t.Date,
			Description:     it.Name,
			UnitPrice:       it.Price,
			Quantity:        it.Quantity,
			Organization:    t.Organization,
		})
	}
	return expense, lines
}
