package nlp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2024-01-10 is a Wednesday.
var (
	almaty = time.FixedZone("UTC+6", 6*3600)
	base   = time.Date(2024, 1, 10, 12, 0, 0, 0, almaty)
)

func TestExtract_Russian(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		want     time.Time
		wantRest string
	}{
		{"yesterday", "обед вчера", time.Date(2024, 1, 9, 12, 0, 0, 0, almaty), "обед"},
		{"day before yesterday", "позавчера такси", time.Date(2024, 1, 8, 12, 0, 0, 0, almaty), "такси"},
		{"days ago digits", "аптека 3 дня назад", time.Date(2024, 1, 7, 12, 0, 0, 0, almaty), "аптека"},
		{"hours ago words", "кофе два часа назад", time.Date(2024, 1, 10, 10, 0, 0, 0, almaty), "кофе"},
		{"half an hour ago", "полчаса назад шаурма", time.Date(2024, 1, 10, 11, 30, 0, 0, almaty), "шаурма"},
		{"ago at start", "три дня назад кофе", time.Date(2024, 1, 7, 12, 0, 0, 0, almaty), "кофе"},
		{"hours ago at start", "2 часа назад такси", time.Date(2024, 1, 10, 10, 0, 0, 0, almaty), "такси"},
		{"two digit days ago", "10 дней назад ремонт", time.Date(2023, 12, 31, 12, 0, 0, 0, almaty), "ремонт"},
		{"week ago", "неделю назад кино", time.Date(2024, 1, 3, 12, 0, 0, 0, almaty), "кино"},
		{"ago after amount", "500 3 дня назад такси", time.Date(2024, 1, 7, 12, 0, 0, 0, almaty), "500 такси"},
		{"two digit ago after amount", "500 10 дней назад ремонт", time.Date(2023, 12, 31, 12, 0, 0, 0, almaty), "500 ремонт"},
		{"midnight", "такси в полночь", time.Date(2024, 1, 10, 0, 0, 0, 0, almaty), "такси"},
		{"evening resolves to past", "кино вечером", time.Date(2024, 1, 9, 19, 0, 0, 0, almaty), "кино"},
		{"weekday", "в пятницу бар", time.Date(2024, 1, 5, 12, 0, 0, 0, almaty), "бар"},
		{"same weekday is today", "в среду", time.Date(2024, 1, 10, 12, 0, 0, 0, almaty), ""},
		{"last same weekday", "в прошлую среду", time.Date(2024, 1, 3, 12, 0, 0, 0, almaty), ""},
	}

	x := NewExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := x.Extract(tt.text, base)
			require.NoError(t, err)
			require.True(t, got.Found, "no date found in %q", tt.text)
			assert.True(t, tt.want.Equal(got.When), "want %s, got %s", tt.want, got.When)
			assert.Equal(t, tt.wantRest, got.Rest)
		})
	}
}

func TestExtract_AbsoluteDatesPreferPast(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"first of january", "подарок 1 января", "2024-01-01"},
		{"future month goes to last year", "отпуск 15 марта", "2023-03-15"},
		{"explicit year", "ноутбук 2 мая 2022", "2022-05-02"},
		{"two digit day after amount", "500 15 марта цветы", "2023-03-15"},
		{"two digit day first", "15 марта цветы", "2023-03-15"},
		{"english yesterday", "lunch yesterday", "2024-01-09"},
	}

	x := NewExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := x.Extract(tt.text, base)
			require.NoError(t, err)
			require.True(t, got.Found)
			assert.Equal(t, tt.want, got.When.Format("2006-01-02"))
			assert.False(t, got.When.After(base))
		})
	}
}

func TestExtract_LeadingNumberKeepsItsDigits(t *testing.T) {
	x := NewExtractor()

	got, err := x.Extract("500 15 марта цветы", base)
	require.NoError(t, err)
	require.True(t, got.Found)
	assert.Equal(t, "15 марта", got.Matched)
	assert.Equal(t, "500 цветы", got.Rest)

	got, err = x.Extract("500 10 дней назад ремонт", base)
	require.NoError(t, err)
	require.True(t, got.Found)
	assert.Equal(t, "10 дней назад", got.Matched)
	assert.Equal(t, "500 ремонт", got.Rest)
}

func TestExtract_NoDate(t *testing.T) {
	x := NewExtractor()

	for _, text := range []string{"просто текст", "", "500 обед"} {
		got, err := x.Extract(text, base)
		require.NoError(t, err)
		assert.False(t, got.Found, "unexpected date in %q", text)
		assert.True(t, base.Equal(got.When))
	}
}

func TestPreferPast(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"past untouched", base.Add(-time.Hour), base.Add(-time.Hour)},
		{"later today", base.Add(3 * time.Hour), base.Add(3*time.Hour - 24*time.Hour)},
		{"later this week", base.AddDate(0, 0, 3), base.AddDate(0, 0, -4)},
		{"later this year", base.AddDate(0, 2, 0), base.AddDate(-1, 2, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(preferPast(tt.in, base)))
		})
	}
}
