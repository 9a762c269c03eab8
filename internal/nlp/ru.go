package nlp

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when/rules"
)

// Go's \b only knows ASCII letters, so Cyrillic words are delimited by
// anything that is neither a letter nor a digit. Digits must not be eaten
// by the delimiter or "500 15 марта" would match as "5 марта".
const (
	wordStart = `(?:[^\p{L}\p{N}]|^)`
	wordEnd   = `(?:[^\p{L}\p{N}]|$)`
)

func russianRules() []rules.Rule {
	return []rules.Rule{
		ruCasualDay(),
		ruAgo(),
		ruMonthDate(),
		ruWeekday(),
		ruTimeOfDay(),
	}
}

func intPtr(v int) *int { return &v }

// ruCasualDay handles "вчера", "позавчера", "сегодня".
func ruCasualDay() rules.Rule {
	return &rules.F{
		RegExp: regexp.MustCompile(`(?i)` + wordStart + `(позавчера|вчера|сегодня)` + wordEnd),
		Applier: func(m *rules.Match, c *rules.Context, o *rules.Options, ref time.Time) (bool, error) {
			switch strings.ToLower(m.Captures[0]) {
			case "позавчера":
				c.Duration -= 48 * time.Hour
			case "вчера":
				c.Duration -= 24 * time.Hour
			}
			return true, nil
		},
	}
}

var ruNumbers = map[string]int{
	"один": 1, "одну": 1, "одна": 1,
	"два": 2, "две": 2,
	"три":    3,
	"четыре": 4,
	"пять":   5,
	"шесть":  6,
	"семь":   7,
	"восемь": 8,
	"девять": 9,
	"десять": 10,
}

// ruAgo handles "3 дня назад", "два часа назад", "полчаса назад", "неделю назад".
// "назад" has its own group so the match, and the text it removes, spans it.
func ruAgo() rules.Rule {
	return &rules.F{
		RegExp: regexp.MustCompile(`(?i)` + wordStart +
			`((?:\d+|один|одну|одна|два|две|три|четыре|пять|шесть|семь|восемь|девять|десять|пол)?)\s*` +
			`(минут[уы]?|час(?:а|ов)?|дн(?:я|ей)|день|недел(?:ю|и|ь)|месяц(?:а|ев)?)\s+(назад)` + wordEnd),
		Applier: func(m *rules.Match, c *rules.Context, o *rules.Options, ref time.Time) (bool, error) {
			num := strings.ToLower(strings.TrimSpace(m.Captures[0]))
			unit := strings.ToLower(m.Captures[1])

			n, half := 1, false
			switch {
			case num == "":
			case num == "пол":
				half = true
			default:
				if v, err := strconv.Atoi(num); err == nil {
					n = v
				} else if v, ok := ruNumbers[num]; ok {
					n = v
				}
			}

			var step time.Duration
			switch {
			case strings.HasPrefix(unit, "минут"):
				step = time.Minute
			case strings.HasPrefix(unit, "час"):
				step = time.Hour
			case strings.HasPrefix(unit, "недел"):
				step = 7 * 24 * time.Hour
			case strings.HasPrefix(unit, "месяц"):
				if half {
					c.Duration -= 15 * 24 * time.Hour
				} else {
					c.Duration -= ref.Sub(ref.AddDate(0, -n, 0))
				}
				return true, nil
			default:
				step = 24 * time.Hour
			}
			if half {
				c.Duration -= step / 2
			} else {
				c.Duration -= time.Duration(n) * step
			}
			return true, nil
		},
	}
}

// "март" must be tried before "ма".
var ruMonths = []struct {
	prefix string
	month  time.Month
}{
	{"январ", time.January}, {"феврал", time.February}, {"март", time.March},
	{"апрел", time.April}, {"ма", time.May}, {"июн", time.June},
	{"июл", time.July}, {"август", time.August}, {"сентябр", time.September},
	{"октябр", time.October}, {"ноябр", time.November}, {"декабр", time.December},
}

// ruMonthDate handles "1 января" and "15 марта 2023".
func ruMonthDate() rules.Rule {
	return &rules.F{
		RegExp: regexp.MustCompile(`(?i)` + wordStart +
			`(\d{1,2})\s+(январ[яь]|феврал[яь]|марта?|апрел[яь]|ма[йя]|июн[яь]|июл[яь]|августа?|сентябр[яь]|октябр[яь]|ноябр[яь]|декабр[яь])` +
			`((?:\s+\d{4})?)` + wordEnd),
		Applier: func(m *rules.Match, c *rules.Context, o *rules.Options, ref time.Time) (bool, error) {
			day, err := strconv.Atoi(m.Captures[0])
			if err != nil || day < 1 || day > 31 {
				return false, nil
			}
			name := strings.ToLower(m.Captures[1])
			month := 0
			for _, mm := range ruMonths {
				if strings.HasPrefix(name, mm.prefix) {
					month = int(mm.month)
					break
				}
			}
			if month == 0 {
				return false, nil
			}
			c.Day = intPtr(day)
			c.Month = intPtr(month)
			if y := strings.TrimSpace(m.Captures[2]); y != "" {
				if year, err := strconv.Atoi(y); err == nil {
					c.Year = intPtr(year)
				}
			}
			return true, nil
		},
	}
}

var ruWeekdays = map[string]time.Weekday{
	"понедельник": time.Monday,
	"вторник":     time.Tuesday,
	"сред":        time.Wednesday,
	"четверг":     time.Thursday,
	"пятниц":      time.Friday,
	"суббот":      time.Saturday,
	"воскресенье": time.Sunday,
}

// ruWeekday handles "в пятницу" and "в прошлый вторник"; it always points at
// the most recent such day, today included unless "прошлый" is said.
func ruWeekday() rules.Rule {
	return &rules.F{
		RegExp: regexp.MustCompile(`(?i)` + wordStart +
			`((?:во?\s+)?(?:прошл(?:ый|ую|ое|ой)\s+)?)` +
			`(понедельник|вторник|сред[ау]|четверг|пятниц[ау]|суббот[ау]|воскресенье)` + wordEnd),
		Applier: func(m *rules.Match, c *rules.Context, o *rules.Options, ref time.Time) (bool, error) {
			name := strings.ToLower(m.Captures[1])
			var target time.Weekday
			found := false
			for prefix, wd := range ruWeekdays {
				if strings.HasPrefix(name, prefix) {
					target, found = wd, true
					break
				}
			}
			if !found {
				return false, nil
			}
			back := (int(ref.Weekday()) - int(target) + 7) % 7
			if back == 0 && strings.Contains(strings.ToLower(m.Captures[0]), "прошл") {
				back = 7
			}
			c.Duration -= time.Duration(back) * 24 * time.Hour
			return true, nil
		},
	}
}

// ruTimeOfDay handles "в полночь", "в полдень", "утром", "днём", "вечером".
func ruTimeOfDay() rules.Rule {
	hours := map[string]int{
		"полночь": 0,
		"полдень": 12,
		"утром":   9,
		"днём":    14,
		"днем":    14,
		"вечером": 19,
	}
	return &rules.F{
		RegExp: regexp.MustCompile(`(?i)` + wordStart + `((?:в\s+)?)(полночь|полдень|утром|днём|днем|вечером)` + wordEnd),
		Applier: func(m *rules.Match, c *rules.Context, o *rules.Options, ref time.Time) (bool, error) {
			h, ok := hours[strings.ToLower(m.Captures[1])]
			if !ok {
				return false, nil
			}
			c.Hour = intPtr(h)
			c.Minute = intPtr(0)
			c.Second = intPtr(0)
			return true, nil
		},
	}
}
