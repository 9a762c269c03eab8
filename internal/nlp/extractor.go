// Package nlp finds dates written in plain English or Russian inside
// free-form expense messages.
package nlp

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// Extraction is the outcome of a date search.
type Extraction struct {
	// When is the resolved moment; equals the reference time when Found is false.
	When  time.Time
	Found bool
	// Matched is the substring recognised as a date.
	Matched string
	// Rest is the input with Matched removed and whitespace collapsed.
	Rest string
}

// DateExtractor is implemented by Extractor; parsers depend on the interface.
type DateExtractor interface {
	Extract(text string, now time.Time) (Extraction, error)
}

// Extractor resolves relative, absolute and vague date expressions,
// always preferring the closest point in the past.
type Extractor struct {
	parser *when.Parser
}

// NewExtractor builds an extractor with the English and Russian rule sets.
func NewExtractor() *Extractor {
	p := when.New(nil)
	p.Add(en.All...)
	p.Add(russianRules()...)
	p.Add(common.All...)
	return &Extractor{parser: p}
}

// Extract finds the first date expression in text relative to now.
// Text without any date expression is not an error.
func (e *Extractor) Extract(text string, now time.Time) (Extraction, error) {
	out := Extraction{When: now, Rest: collapse(text)}
	if strings.TrimSpace(text) == "" {
		return out, nil
	}

	res, err := e.parser.Parse(text, now)
	if err != nil {
		return out, fmt.Errorf("Extract: parsing %q: %w", text, err)
	}
	if res == nil {
		return out, nil
	}

	out.Found = true
	out.When = preferPast(res.Time, now)
	out.Matched = strings.TrimSpace(res.Text)
	if end := res.Index + len(res.Text); res.Index >= 0 && end <= len(text) && text[res.Index:end] == res.Text {
		out.Rest = collapse(text[:res.Index] + " " + text[end:])
	} else {
		out.Rest = collapse(strings.Replace(text, res.Text, " ", 1))
	}
	return out, nil
}

// preferPast moves a future resolution to the nearest matching point before now.
func preferPast(t, now time.Time) time.Time {
	if !t.After(now) {
		return t
	}
	switch d := t.Sub(now); {
	case d <= 24*time.Hour:
		return t.Add(-24 * time.Hour)
	case d <= 7*24*time.Hour:
		return t.AddDate(0, 0, -7)
	default:
		for t.After(now) {
			t = t.AddDate(-1, 0, 0)
		}
		return t
	}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var _ DateExtractor = (*Extractor)(nil)
