// Package parser classifies chat messages into spreadsheet records using a
// fixed set of textual grammars.
package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/dvloznov/telegrind/internal/domain"
	"github.com/dvloznov/telegrind/internal/nlp"
	"github.com/shopspring/decimal"
)

const (
	amountPattern   = `(\d+(?:[.,]\d+)?)`
	currencyPattern = `([A-Za-z]{3})`
	datePattern     = `(\d{2}\.\d{2}\.\d{4})`
	dateTokenLayout = "02.01.2006"

	// tail is the shared "[ <cur>][ <DD.MM.YYYY>][ <text>]" suffix.
	tail = `(?: ` + currencyPattern + `)?(?: ` + datePattern + `)?(?: (.*))?$`
)

// Result is the outcome of running a parser. OK is false when the text does
// not fit the grammar; that is an ordinary outcome, not an error.
type Result struct {
	Record domain.Record
	OK     bool
}

// NoMatch is the zero Result.
var NoMatch = Result{}

// Parser recognises one record kind.
type Parser interface {
	Kind() domain.Kind
	Parse(text string, cfg domain.DocumentConfig, now time.Time) Result
}

// Set runs parsers in a fixed priority order; the first structural match wins.
type Set struct {
	parsers []Parser
	dates   nlp.DateExtractor
}

// NewSet returns the Expense, Loan, Wish parsers in that order.
func NewSet(dates nlp.DateExtractor) *Set {
	return &Set{
		parsers: []Parser{
			&ExpenseParser{dates: dates},
			&LoanParser{},
			&WishParser{},
		},
		dates: dates,
	}
}

// Parse classifies text; msg ids are assigned by the caller.
func (s *Set) Parse(text string, cfg domain.DocumentConfig, now time.Time) Result {
	for _, p := range s.parsers {
		if res := p.Parse(text, cfg, now); res.OK {
			return res
		}
	}
	return NoMatch
}

// ParseKind runs only the parser for kind.
func (s *Set) ParseKind(kind domain.Kind, text string, cfg domain.DocumentConfig, now time.Time) Result {
	for _, p := range s.parsers {
		if p.Kind() == kind {
			return p.Parse(text, cfg, now)
		}
	}
	return NoMatch
}

// ParseAmount accepts "," or "." as the decimal separator.
func ParseAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.Replace(strings.TrimSpace(s), ",", ".", 1))
}

// ParseCurrency upper-cases an explicit currency token or falls back to the
// document default.
func ParseCurrency(token string, cfg domain.DocumentConfig) string {
	if token = strings.TrimSpace(token); token != "" {
		return strings.ToUpper(token)
	}
	return strings.ToUpper(strings.TrimSpace(cfg.DefaultCurrency))
}

// parseDateToken reads an explicit DD.MM.YYYY token; the empty token means now.
func parseDateToken(token string, cfg domain.DocumentConfig, now time.Time) (time.Time, bool) {
	if token == "" {
		return now.In(cfg.Location()), true
	}
	t, err := time.ParseInLocation(dateTokenLayout, token, cfg.Location())
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func normalize(text string) string {
	return strings.TrimSpace(text)
}

// ExpenseParser handles "<amount>[ <cur>][ <DD.MM.YYYY>][ <text>]".
// Without a date token the description is searched for a natural-language date.
type ExpenseParser struct {
	dates nlp.DateExtractor
}

var expenseRe = regexp.MustCompile(`(?s)^` + amountPattern + tail)

func (p *ExpenseParser) Kind() domain.Kind { return domain.KindExpense }

func (p *ExpenseParser) Parse(text string, cfg domain.DocumentConfig, now time.Time) Result {
	m := expenseRe.FindStringSubmatch(normalize(text))
	if m == nil {
		return NoMatch
	}
	rec, ok := buildSimple(domain.KindExpense, m[1], m[2], m[3], m[4], cfg, now)
	if !ok {
		return NoMatch
	}
	if m[3] == "" && p.dates != nil && rec.Description != "" {
		if x, err := p.dates.Extract(rec.Description, rec.OccurredAt); err == nil && x.Found {
			rec.OccurredAt = x.When
			rec.Description = x.Rest
		}
	}
	return Result{Record: rec, OK: true}
}

// WishParser handles "хочу <amount>[ <cur>][ <DD.MM.YYYY>][ <text>]".
type WishParser struct{}

var wishRe = regexp.MustCompile(`(?is)^(?:хочу|желаю|wish) ` + amountPattern + tail)

func (p *WishParser) Kind() domain.Kind { return domain.KindWish }

func (p *WishParser) Parse(text string, cfg domain.DocumentConfig, now time.Time) Result {
	m := wishRe.FindStringSubmatch(normalize(text))
	if m == nil {
		return NoMatch
	}
	rec, ok := buildSimple(domain.KindWish, m[1], m[2], m[3], m[4], cfg, now)
	if !ok {
		return NoMatch
	}
	return Result{Record: rec, OK: true}
}

func buildSimple(kind domain.Kind, amount, cur, date, desc string, cfg domain.DocumentConfig, now time.Time) (domain.Record, bool) {
	a, err := ParseAmount(amount)
	if err != nil || !a.IsPositive() {
		return domain.Record{}, false
	}
	at, ok := parseDateToken(date, cfg, now)
	if !ok {
		return domain.Record{}, false
	}
	return domain.Record{
		Kind:        kind,
		Amount:      a,
		Currency:    ParseCurrency(cur, cfg),
		OccurredAt:  at,
		Description: strings.TrimSpace(desc),
	}, true
}

// LoanParser handles "долг|заём <who> [+|-]<amount>[ <cur>][ <DD.MM.YYYY>][ <text>]".
// A minus or no sign means money lent out and is stored negative; a plus
// means money returned and is stored positive.
type LoanParser struct{}

var loanRe = regexp.MustCompile(`(?is)^(?:долг|за[еёйи]м)(?: (.*?))? ([+-])?` + amountPattern + tail)

func (p *LoanParser) Kind() domain.Kind { return domain.KindLoan }

func (p *LoanParser) Parse(text string, cfg domain.DocumentConfig, now time.Time) Result {
	m := loanRe.FindStringSubmatch(normalize(text))
	if m == nil {
		return NoMatch
	}
	who, sign, amount, cur, date, desc := m[1], m[2], m[3], m[4], m[5], m[6]

	a, err := ParseAmount(amount)
	if err != nil || a.IsZero() {
		return NoMatch
	}
	if sign != "+" {
		a = a.Neg()
	}
	at, ok := parseDateToken(date, cfg, now)
	if !ok {
		return NoMatch
	}
	if who = strings.TrimSpace(who); who == "" {
		who = domain.UnknownCounterparty
	}
	return Result{
		Record: domain.Record{
			Kind:         domain.KindLoan,
			Amount:       a,
			Currency:     ParseCurrency(cur, cfg),
			OccurredAt:   at,
			Counterparty: who,
			Description:  strings.TrimSpace(desc),
		},
		OK: true,
	}
}

var (
	_ Parser = (*ExpenseParser)(nil)
	_ Parser = (*LoanParser)(nil)
	_ Parser = (*WishParser)(nil)
)
