// Package llm wraps the language model used for free-form expenses,
// confirmation remarks and reading receipt codes from photos.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/telegrind/internal/domain"
	"github.com/shopspring/decimal"
	"google.golang.org/genai"
)

// DefaultModelName is used when no model is configured.
const DefaultModelName = "gemini-2.5-flash"

// Assistant is the model-backed part of message handling.
type Assistant interface {
	// IsExpense reports whether the message mentions a number in digits or words.
	IsExpense(ctx context.Context, text string) (bool, error)

	// ExtractExpense turns a free-form message into an expense record.
	ExtractExpense(ctx context.Context, text string, cfg domain.DocumentConfig, now time.Time) (domain.Record, error)

	// Remark writes a one-sentence comment on a recorded expense.
	Remark(ctx context.Context, text string, rec domain.Record) (string, error)

	// ReadReceiptURL returns the URL encoded in a receipt photo, or "" if none is visible.
	ReadReceiptURL(ctx context.Context, image []byte, mimeType string) (string, error)
}

// generator is the part of genai.Models used here.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini implements Assistant with the Gemini API.
type Gemini struct {
	models generator
	model  string
}

// NewGemini creates a Gemini-backed assistant.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGemini: create genai client: %w", err)
	}
	return newGemini(client.Models, model), nil
}

func newGemini(models generator, model string) *Gemini {
	if model == "" {
		model = DefaultModelName
	}
	return &Gemini{models: models, model: model}
}

func (g *Gemini) generate(ctx context.Context, parts ...*genai.Part) (string, error) {
	contents := []*genai.Content{{Role: "user", Parts: parts}}
	resp, err := g.models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return text, nil
}

func (g *Gemini) IsExpense(ctx context.Context, text string) (bool, error) {
	if len([]rune(text)) > 200 {
		text = string([]rune(text)[:200])
	}
	answer, err := g.generate(ctx, &genai.Part{Text: isExpensePrompt + "\n\nUser message:\n" + text})
	if err != nil {
		return false, fmt.Errorf("IsExpense: %w", err)
	}
	answer = strings.ToLower(strings.Trim(answer, " .\n`\"'"))
	return strings.HasPrefix(answer, "true") || strings.HasPrefix(answer, "yes"), nil
}

// extracted is the JSON object the model is asked to return.
type extracted struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Date        *string         `json:"date"`
	Description string          `json:"description"`
}

func (g *Gemini) ExtractExpense(ctx context.Context, text string, cfg domain.DocumentConfig, now time.Time) (domain.Record, error) {
	prompt := extractPrompt(cfg.DefaultCurrency, now.In(cfg.Location()))
	raw, err := g.generate(ctx, &genai.Part{Text: prompt + "\n\nUser message:\n" + text})
	if err != nil {
		return domain.Record{}, fmt.Errorf("ExtractExpense: %w", err)
	}

	var out extracted
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &out); err != nil {
		return domain.Record{}, fmt.Errorf("ExtractExpense: unmarshal JSON: %w\nraw response: %s", err, raw)
	}
	return out.record(cfg, now)
}

func (e extracted) record(cfg domain.DocumentConfig, now time.Time) (domain.Record, error) {
	if !e.Amount.IsPositive() {
		return domain.Record{}, fmt.Errorf("ExtractExpense: model returned non-positive amount %s", e.Amount)
	}
	rec := domain.Record{
		Kind:        domain.KindExpense,
		Amount:      e.Amount,
		Currency:    strings.ToUpper(strings.TrimSpace(e.Currency)),
		OccurredAt:  now,
		Description: strings.TrimSpace(e.Description),
	}
	if len(rec.Currency) != 3 {
		rec.Currency = cfg.DefaultCurrency
	}
	if e.Date != nil && *e.Date != "" {
		when, err := parseModelDate(*e.Date, cfg.Location())
		if err != nil {
			return domain.Record{}, fmt.Errorf("ExtractExpense: %w", err)
		}
		rec.OccurredAt = when
	}
	return rec, nil
}

func parseModelDate(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

func (g *Gemini) Remark(ctx context.Context, text string, rec domain.Record) (string, error) {
	expense, err := json.Marshal(map[string]string{
		"amount":      rec.Amount.String(),
		"currency":    rec.Currency,
		"date":        rec.OccurredAt.Format(time.RFC3339),
		"description": rec.Description,
	})
	if err != nil {
		return "", fmt.Errorf("Remark: marshal expense: %w", err)
	}
	prompt := remarkPrompt + "\n\nBoss message:\n" + text + "\n\nBoss expense:\n" + string(expense)
	remark, err := g.generate(ctx, &genai.Part{Text: prompt})
	if err != nil {
		return "", fmt.Errorf("Remark: %w", err)
	}
	return remark, nil
}

func (g *Gemini) ReadReceiptURL(ctx context.Context, image []byte, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	answer, err := g.generate(ctx,
		&genai.Part{Text: receiptPrompt},
		&genai.Part{InlineData: &genai.Blob{MIMEType: mimeType, Data: image}},
	)
	if err != nil {
		return "", fmt.Errorf("ReadReceiptURL: %w", err)
	}
	answer = strings.Trim(answer, " `\n\"'")
	if strings.EqualFold(answer, "NONE") || !strings.HasPrefix(answer, "http") {
		return "", nil
	}
	return answer, nil
}

// cleanModelJSON strips Markdown fences and any text around the outermost
// JSON object or array.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	start := strings.IndexAny(s, "{[")
	if start == -1 {
		return s
	}
	closing := "}"
	if s[start] == '[' {
		closing = "]"
	}
	if end := strings.LastIndex(s, closing); end > start {
		s = s[start : end+1]
	}
	return strings.TrimSpace(s)
}

var _ Assistant = (*Gemini)(nil)
