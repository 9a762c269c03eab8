package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/telegrind/internal/binding"
	"github.com/dvloznov/telegrind/internal/book"
	"github.com/dvloznov/telegrind/internal/domain"
	"github.com/dvloznov/telegrind/internal/journal"
	"github.com/dvloznov/telegrind/internal/llm"
	"github.com/dvloznov/telegrind/internal/logger"
	"github.com/dvloznov/telegrind/internal/metrics"
	"github.com/dvloznov/telegrind/internal/parser"
	"github.com/dvloznov/telegrind/internal/receipt"
	"github.com/dvloznov/telegrind/internal/sheets"
	"go.opentelemetry.io/otel/trace"
)

const defaultPhotoType = "image/jpeg"

// Deps are the collaborators shared by the dispatcher and the handlers.
type Deps struct {
	Sheets   sheets.API
	Bindings binding.Store
	Parsers  *parser.Set

	// Assistant is optional; without it free-form messages use the rule parser
	// and receipt photos need the link in the caption.
	Assistant llm.Assistant
	Receipts  receipt.Lookup
	// Archive is optional.
	Archive receipt.Archive
	Files   Files

	Journal journal.Journal
	Metrics *metrics.Metrics
	// Tracing defaults to the global provider.
	Tracing trace.TracerProvider

	// ServiceAccount is the address users share their documents with.
	ServiceAccount string
	Now            func() time.Time
}

// Handlers implements the routes.
type Handlers struct {
	deps Deps
	now  func() time.Time
}

// NewHandlers creates the route handlers.
func NewHandlers(deps Deps) *Handlers {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Handlers{deps: deps, now: now}
}

// at is the moment a record without a date refers to.
func (h *Handlers) at(ev Event) time.Time {
	if !ev.Date.IsZero() {
		return ev.Date
	}
	return h.now()
}

func (h *Handlers) open(ctx context.Context, t *Turn) (*book.Book, domain.DocumentConfig, error) {
	b, err := t.Book(ctx)
	if err != nil {
		return nil, domain.DocumentConfig{}, err
	}
	cfg, err := b.Config(ctx)
	if err != nil {
		return nil, domain.DocumentConfig{}, err
	}
	return b, cfg, nil
}

// Start greets the user and waits for a document link, unless the chat
// already writes into an accessible document.
func (h *Handlers) Start(ctx context.Context, t *Turn) (Reply, error) {
	if t.Binding.Bound() {
		b, err := t.Book(ctx)
		if err == nil {
			return Reply{Text: alreadyBoundText(b.Session().Title())}, nil
		}
		if !domain.IsDocumentAccess(err) {
			return Reply{}, fmt.Errorf("Start: %w", err)
		}
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("Bound document is not accessible, asking for a new one")
	}
	if err := h.deps.Bindings.SetAwaiting(ctx, t.Event.ChatID, true); err != nil {
		return Reply{}, fmt.Errorf("Start: %w", err)
	}
	return Reply{Text: onboardingText(h.deps.ServiceAccount), HTML: true}, nil
}

// Help lists what the bot understands.
func (h *Handlers) Help(ctx context.Context, t *Turn) (Reply, error) {
	return Reply{Text: tips, HTML: true}, nil
}

// Bind validates the link the user sent after /start and stores it.
func (h *Handlers) Bind(ctx context.Context, t *Turn) (Reply, error) {
	link := strings.TrimSpace(t.Event.Text)
	s, err := sheets.Open(ctx, h.deps.Sheets, link)
	if err != nil {
		return Reply{}, err
	}
	if _, err := s.Config(ctx); err != nil {
		return Reply{}, err
	}
	if err := h.deps.Bindings.Bind(ctx, t.Event.ChatID, link); err != nil {
		return Reply{}, fmt.Errorf("Bind: %w", err)
	}
	log := logger.FromContext(ctx)
	log.Info().Str("document_id", s.DocumentID()).Msg("Chat bound to document")
	return Reply{Text: boundText(), HTML: true, Pin: true}, nil
}

// Unbound answers chats that never shared a document.
func (h *Handlers) Unbound(ctx context.Context, t *Turn) (Reply, error) {
	return Reply{Text: textNotBound}, nil
}

// Settings shows the document settings, or writes them when arguments are given.
func (h *Handlers) Settings(ctx context.Context, t *Turn) (Reply, error) {
	b, cfg, err := h.open(ctx, t)
	if err != nil {
		return Reply{}, err
	}
	args := strings.TrimSpace(t.Event.Args)
	if args == "" {
		return Reply{Text: settingsText(cfg), HTML: true}, nil
	}
	next, err := parseSettings(args, cfg)
	if err != nil {
		return Reply{Text: settingsUsage, HTML: true}, nil
	}
	if err := b.Session().Settings().Write(ctx, next); err != nil {
		return Reply{}, fmt.Errorf("Settings: %w", err)
	}
	return Reply{Text: textSaved + "\n\n" + settingsText(next), HTML: true}, nil
}

// Delete removes the record of the message the user answered with "-".
func (h *Handlers) Delete(ctx context.Context, t *Turn) (Reply, error) {
	target := t.Event.ReplyTo.MessageID
	b, err := t.Book(ctx)
	if err != nil {
		return Reply{}, err
	}
	n, err := b.Delete(ctx, target)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return Reply{Text: textNotFound, ReplyTo: target}, nil
	}
	if err != nil {
		return Reply{}, err
	}
	log := logger.FromContext(ctx)
	log.Info().Int64("target_id", target).Int("rows", n).Msg("Deleted record")
	return Reply{Text: textDeleted, ReplyTo: target}, nil
}

// Edit re-parses an edited message and rewrites its record.
func (h *Handlers) Edit(ctx context.Context, t *Turn) (Reply, error) {
	b, cfg, err := h.open(ctx, t)
	if err != nil {
		return Reply{}, err
	}
	at := h.at(t.Event)

	rec, ok := h.parse(ctx, t.Event.Text, cfg, at)
	if !ok {
		return Reply{Text: textEditNotUnderstood}, nil
	}
	rec.SourceMessageID = t.Event.MessageID

	if _, err := b.Edit(ctx, rec); err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return Reply{Text: textNotFound}, nil
		}
		return Reply{}, err
	}
	return Reply{Text: textEdited}, nil
}

// ReceiptPhoto records the receipt whose link is in the caption or, with a
// model configured, readable from the photo itself.
func (h *Handlers) ReceiptPhoto(ctx context.Context, t *Turn) (Reply, error) {
	ev := t.Event
	log := logger.FromContext(ctx)
	mimeType := ev.Photo.MIMEType
	if mimeType == "" {
		mimeType = defaultPhotoType
	}

	data, err := h.deps.Files.Download(ctx, ev.Photo.FileID)
	if err != nil {
		return Reply{}, fmt.Errorf("ReceiptPhoto: download photo: %w", err)
	}
	if h.deps.Archive != nil {
		uri, err := h.deps.Archive.Store(ctx, ev.ChatID, ev.MessageID, data, mimeType)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to archive receipt photo")
		} else {
			log.Info().Str("uri", uri).Msg("Archived receipt photo")
		}
	}

	link, ok := receipt.FindTicketURL(ev.Text)
	if !ok && h.deps.Assistant != nil {
		read, err := h.deps.Assistant.ReadReceiptURL(ctx, data, mimeType)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to read receipt link from photo")
		}
		link, ok = receipt.FindTicketURL(read)
	}
	if !ok {
		return Reply{Text: textNoReceiptURL}, nil
	}
	return h.recordTicket(ctx, t, link)
}

// ReceiptURL records the receipt a text message links to.
func (h *Handlers) ReceiptURL(ctx context.Context, t *Turn) (Reply, error) {
	link, _ := receipt.FindTicketURL(t.Event.Text)
	return h.recordTicket(ctx, t, link)
}

func (h *Handlers) recordTicket(ctx context.Context, t *Turn, link string) (Reply, error) {
	b, cfg, err := h.open(ctx, t)
	if err != nil {
		return Reply{}, err
	}
	ticket, err := h.deps.Receipts.Fetch(ctx, link, cfg.Location())
	if err != nil {
		return Reply{}, fmt.Errorf("recordTicket: %w", err)
	}
	expense, lines := ticket.Records(t.Event.MessageID)
	if err := b.RecordReceipt(ctx, expense, lines); err != nil {
		return Reply{}, err
	}
	return Reply{Text: receiptText(expense, len(lines), cfg)}, nil
}

// Pattern records a message that fits one of the fixed grammars.
func (h *Handlers) Pattern(ctx context.Context, t *Turn) (Reply, error) {
	b, cfg, err := h.open(ctx, t)
	if err != nil {
		return Reply{}, err
	}
	res := h.deps.Parsers.Parse(t.Event.Text, cfg, h.at(t.Event))
	if !res.OK {
		return h.Freeform(ctx, t)
	}
	rec := res.Record
	rec.SourceMessageID = t.Event.MessageID
	if _, err := b.Record(ctx, rec); err != nil {
		return Reply{}, err
	}
	return Reply{Text: textRecorded}, nil
}

// Freeform records an expense described in free words, echoing what was
// understood. Anything else gets the usage tips.
func (h *Handlers) Freeform(ctx context.Context, t *Turn) (Reply, error) {
	text := t.Event.Text
	if !h.isExpense(ctx, text) {
		return h.Fallback(ctx, t)
	}
	b, cfg, err := h.open(ctx, t)
	if err != nil {
		return Reply{}, err
	}
	rec, ok := h.extract(ctx, text, cfg, h.at(t.Event))
	if !ok {
		return h.Fallback(ctx, t)
	}
	rec.SourceMessageID = t.Event.MessageID

	worksheet, err := b.Record(ctx, rec)
	if err != nil {
		return Reply{}, err
	}

	var remark string
	if h.deps.Assistant != nil {
		remark, err = h.deps.Assistant.Remark(ctx, text, rec)
		if err != nil {
			log := logger.FromContext(ctx)
			log.Warn().Err(err).Msg("Failed to write remark")
			remark = ""
		}
	}
	return Reply{Text: freeformText(rec, cfg, worksheet, remark), HTML: true}, nil
}

// Fallback answers input the bot cannot use.
func (h *Handlers) Fallback(ctx context.Context, t *Turn) (Reply, error) {
	return Reply{Text: textNotUnderstood + tips, HTML: true}, nil
}

// parse reads a record from text with the grammars first, then as a
// free-form expense.
func (h *Handlers) parse(ctx context.Context, text string, cfg domain.DocumentConfig, at time.Time) (domain.Record, bool) {
	if res := h.deps.Parsers.Parse(text, cfg, at); res.OK {
		return res.Record, true
	}
	if !h.isExpense(ctx, text) {
		return domain.Record{}, false
	}
	return h.extract(ctx, text, cfg, at)
}

func (h *Handlers) isExpense(ctx context.Context, text string) bool {
	if h.deps.Assistant == nil {
		return parser.LooksLikeExpense(text)
	}
	ok, err := h.deps.Assistant.IsExpense(ctx, text)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("Model check failed, using rules")
		return parser.LooksLikeExpense(text)
	}
	return ok
}

// extract asks the model when there is one and falls back to the rule parser.
func (h *Handlers) extract(ctx context.Context, text string, cfg domain.DocumentConfig, at time.Time) (domain.Record, bool) {
	if h.deps.Assistant != nil {
		rec, err := h.deps.Assistant.ExtractExpense(ctx, text, cfg, at)
		if err == nil {
			return rec, true
		}
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("Model extraction failed, using rules")
	}
	res := h.deps.Parsers.ParseFreeform(text, cfg, at)
	return res.Record, res.OK
}

func (h *Handlers) matchesPattern(t *Turn) bool {
	if !isMessage(t) {
		return false
	}
	return h.deps.Parsers.Parse(t.Event.Text, domain.DefaultDocumentConfig(), h.now()).OK
}

func isKind(k EventKind) func(t *Turn) bool {
	return func(t *Turn) bool { return t.Event.Kind == k }
}

func isCommand(name string) func(t *Turn) bool {
	return func(t *Turn) bool {
		return t.Event.Kind == EventCommand && t.Event.Command == name
	}
}

func isMessage(t *Turn) bool {
	return t.Event.Kind == EventText || t.Event.Kind == EventReply
}

func awaitingDocument(t *Turn) bool {
	return t.Binding.AwaitingDocument && isMessage(t)
}

func unbound(t *Turn) bool {
	return !t.Binding.Bound()
}

func isDeleteReply(t *Turn) bool {
	return t.Event.Kind == EventReply && t.Event.ReplyTo != nil && strings.TrimSpace(t.Event.Text) == "-"
}

func hasTicketURL(t *Turn) bool {
	if !isMessage(t) {
		return false
	}
	_, ok := receipt.FindTicketURL(t.Event.Text)
	return ok
}
