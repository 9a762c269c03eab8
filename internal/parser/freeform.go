package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/dvloznov/telegrind/internal/domain"
)

var (
	looseAmountRe = regexp.MustCompile(`(?:^|\s)` + amountPattern + `(?:\s+` + currencyPattern + `)?(?:\s|$)`)
	looseDateRe   = regexp.MustCompile(`(?:^|\s)` + datePattern + `(?:\s|$)`)

	digitRe      = regexp.MustCompile(`\d`)
	numberWordRe = regexp.MustCompile(`(?i)(?:\P{L}|^)(?:один|одна|два|две|три|четыре|пять|шесть|семь|восемь|девять|десять|двадцать|тридцать|сорок|пятьдесят|сто|двести|триста|пятьсот|тысяч[аиу]?|миллион|one|two|three|four|five|six|seven|eight|nine|ten|twenty|fifty|hundred|thousand)(?:\P{L}|$)`)
)

// LooksLikeExpense reports whether text carries a number in digits or words.
func LooksLikeExpense(text string) bool {
	return digitRe.MatchString(text) || numberWordRe.MatchString(text)
}

// ParseFreeform recovers an expense from text that fits no grammar, e.g.
// "обед 500 вчера": the date is extracted first, then the first standalone
// amount (with an optional currency right after it) is taken from the rest.
func (s *Set) ParseFreeform(text string, cfg domain.DocumentConfig, now time.Time) Result {
	text = normalize(text)
	at := now.In(cfg.Location())

	if m := looseDateRe.FindStringSubmatchIndex(text); m != nil {
		if t, ok := parseDateToken(text[m[2]:m[3]], cfg, now); ok {
			at = t
			text = text[:m[2]] + text[m[3]:]
		}
	} else if s.dates != nil {
		if x, err := s.dates.Extract(text, at); err == nil && x.Found {
			at = x.When
			text = x.Rest
		}
	}

	m := looseAmountRe.FindStringSubmatchIndex(text)
	if m == nil {
		return NoMatch
	}
	amount, err := ParseAmount(text[m[2]:m[3]])
	if err != nil || !amount.IsPositive() {
		return NoMatch
	}
	cur := ""
	end := m[3]
	if m[4] >= 0 {
		cur = text[m[4]:m[5]]
		end = m[5]
	}
	desc := strings.Join(strings.Fields(text[:m[2]]+" "+text[end:]), " ")

	return Result{
		Record: domain.Record{
			Kind:        domain.KindExpense,
			Amount:      amount,
			Currency:    ParseCurrency(cur, cfg),
			OccurredAt:  at,
			Description: desc,
		},
		OK: true,
	}
}
