package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/telegrind/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// MockGenerator is a mock implementation of generator for testing.
type MockGenerator struct {
	GenerateContentFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func (m *MockGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return m.GenerateContentFunc(ctx, model, contents, config)
}

func respond(text string) *MockGenerator {
	return &MockGenerator{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return textResponse(text), nil
		},
	}
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}}},
		},
	}
}

var (
	cfg = domain.DefaultDocumentConfig()
	now = time.Date(2024, 1, 10, 12, 0, 0, 0, cfg.Location())
)

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain object", `{"amount": 1}`, `{"amount": 1}`},
		{"fenced json", "```json\n{\"amount\": 1}\n```", `{"amount": 1}`},
		{"fenced bare", "```\n[1, 2]\n```", `[1, 2]`},
		{"surrounding text", "Here you go: {\"amount\": 1} hope it helps", `{"amount": 1}`},
		{"no json", "nothing", "nothing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanModelJSON(tt.raw))
		})
	}
}

func TestGemini_ExtractExpense(t *testing.T) {
	var gotPrompt string
	gen := &MockGenerator{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			assert.Equal(t, DefaultModelName, model)
			gotPrompt = contents[0].Parts[0].Text
			return textResponse("```json\n{\"amount\": 350.5, \"currency\": \"usd\", \"date\": \"2024-01-09T12:00:00+06:00\", \"description\": \"кофе\"}\n```"), nil
		},
	}

	rec, err := newGemini(gen, "").ExtractExpense(context.Background(), "вчера 350,5 долларов кофе", cfg, now)
	require.NoError(t, err)

	assert.Contains(t, gotPrompt, "If there is no currency, use KZT.")
	assert.Contains(t, gotPrompt, "2024-01-10T12:00:00+06:00")
	assert.Equal(t, domain.KindExpense, rec.Kind)
	assert.Equal(t, "350.5", rec.Amount.String())
	assert.Equal(t, "USD", rec.Currency)
	assert.Equal(t, "кофе", rec.Description)
	assert.True(t, rec.OccurredAt.Equal(now.Add(-24*time.Hour)))
}

func TestGemini_ExtractExpenseDefaults(t *testing.T) {
	gen := respond(`{"amount": "500", "currency": "", "date": null, "description": " такси "}`)

	rec, err := newGemini(gen, "").ExtractExpense(context.Background(), "пятьсот на такси", cfg, now)
	require.NoError(t, err)

	assert.Equal(t, "500", rec.Amount.String())
	assert.Equal(t, "KZT", rec.Currency)
	assert.Equal(t, "такси", rec.Description)
	assert.True(t, rec.OccurredAt.Equal(now))
}

func TestGemini_ExtractExpenseErrors(t *testing.T) {
	tests := []struct {
		name    string
		gen     *MockGenerator
		wantErr string
	}{
		{"not json", respond("sorry, no"), "unmarshal JSON"},
		{"zero amount", respond(`{"amount": 0, "currency": "KZT", "date": null, "description": ""}`), "non-positive amount"},
		{"bad date", respond(`{"amount": 1, "currency": "KZT", "date": "someday", "description": ""}`), "unrecognised date"},
		{"empty response", respond("  "), "empty response from model"},
		{
			"api failure",
			&MockGenerator{
				GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
					return nil, errors.New("quota exceeded")
				},
			},
			"quota exceeded",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newGemini(tt.gen, "").ExtractExpense(context.Background(), "x", cfg, now)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestGemini_IsExpense(t *testing.T) {
	tests := []struct {
		answer string
		want   bool
	}{
		{"true", true},
		{"True.", true},
		{"yes", true},
		{"false", false},
		{"`false`", false},
	}
	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			got, err := newGemini(respond(tt.answer), "").IsExpense(context.Background(), "пятьсот тенге")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGemini_IsExpenseTruncatesInput(t *testing.T) {
	gen := &MockGenerator{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			prompt := contents[0].Parts[0].Text
			msg := prompt[strings.Index(prompt, "User message:\n")+len("User message:\n"):]
			assert.Equal(t, 200, len([]rune(msg)))
			return textResponse("false"), nil
		},
	}
	_, err := newGemini(gen, "").IsExpense(context.Background(), strings.Repeat("я", 300))
	require.NoError(t, err)
}

func TestGemini_Remark(t *testing.T) {
	gen := &MockGenerator{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			assert.Contains(t, contents[0].Parts[0].Text, `"description":"кофе"`)
			return textResponse("  Кофе в полдень, классика жанра.\n"), nil
		},
	}
	rec := domain.Record{Kind: domain.KindExpense, Currency: "KZT", OccurredAt: now, Description: "кофе"}

	remark, err := newGemini(gen, "custom-model").Remark(context.Background(), "500 кофе", rec)
	require.NoError(t, err)
	assert.Equal(t, "Кофе в полдень, классика жанра.", remark)
}

func TestGemini_ReadReceiptURL(t *testing.T) {
	t.Run("url", func(t *testing.T) {
		gen := &MockGenerator{
			GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
				require.Len(t, contents[0].Parts, 2)
				blob := contents[0].Parts[1].InlineData
				require.NotNil(t, blob)
				assert.Equal(t, "image/jpeg", blob.MIMEType)
				assert.Equal(t, []byte{0xff, 0xd8}, blob.Data)
				return textResponse("`https://consumer.oofd.kz/?i=1&f=2&s=3&t=4`"), nil
			},
		}
		url, err := newGemini(gen, "").ReadReceiptURL(context.Background(), []byte{0xff, 0xd8}, "")
		require.NoError(t, err)
		assert.Equal(t, "https://consumer.oofd.kz/?i=1&f=2&s=3&t=4", url)
	})

	t.Run("none", func(t *testing.T) {
		url, err := newGemini(respond("NONE"), "").ReadReceiptURL(context.Background(), []byte{1}, "image/png")
		require.NoError(t, err)
		assert.Empty(t, url)
	})
}
