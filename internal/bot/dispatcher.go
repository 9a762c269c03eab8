package bot

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/telegrind/internal/binding"
	"github.com/dvloznov/telegrind/internal/book"
	"github.com/dvloznov/telegrind/internal/domain"
	"github.com/dvloznov/telegrind/internal/journal"
	"github.com/dvloznov/telegrind/internal/logger"
	"github.com/dvloznov/telegrind/internal/metrics"
	"github.com/dvloznov/telegrind/internal/sheets"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/dvloznov/telegrind/internal/bot"

// Route is one entry of the dispatch table.
type Route struct {
	Name   string
	Match  func(t *Turn) bool
	Handle func(ctx context.Context, t *Turn) (Reply, error)
}

// Turn is the handling of one event. The document session it opens lives
// only as long as the turn.
type Turn struct {
	Event   Event
	Binding *domain.ChatBinding

	open func(ctx context.Context) (*book.Book, error)
	book *book.Book
}

// Book opens the chat document on first use.
func (t *Turn) Book(ctx context.Context) (*book.Book, error) {
	if t.book != nil {
		return t.book, nil
	}
	if !t.Binding.Bound() {
		return nil, domain.ErrNotBound
	}
	b, err := t.open(ctx)
	if err != nil {
		return nil, err
	}
	t.book = b
	return b, nil
}

// Dispatcher routes events through an ordered route list.
type Dispatcher struct {
	routes   []Route
	bindings binding.Store
	sheets   sheets.API
	journal  journal.Journal
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

// NewDispatcher builds a dispatcher over routes, which are tried in order.
func NewDispatcher(deps Deps, routes []Route) *Dispatcher {
	tp := deps.Tracing
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Dispatcher{
		routes:   routes,
		bindings: deps.Bindings,
		sheets:   deps.Sheets,
		journal:  deps.Journal,
		metrics:  deps.Metrics,
		tracer:   tp.Tracer(tracerName),
	}
}

// Dispatch handles ev and returns the answer for the chat. Failures never
// escape: they become replies and log lines.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) Reply {
	log := logger.ForEvent(logger.FromContext(ctx), ev.ChatID, ev.MessageID)
	ctx = logger.WithContext(ctx, log)
	d.metrics.Event(string(ev.Kind))

	b, err := d.bindings.Ensure(ctx, ev.ChatID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load chat binding")
		d.metrics.DispatchError("binding")
		return Reply{Text: textFailed, ReplyTo: ev.MessageID}
	}

	t := &Turn{Event: ev, Binding: b}
	t.open = func(ctx context.Context) (*book.Book, error) {
		s, err := sheets.Open(ctx, d.sheets, b.DocumentURL)
		if err != nil {
			return nil, err
		}
		return book.New(ctx, ev.ChatID, s, d.journal, d.metrics), nil
	}

	for _, r := range d.routes {
		if !r.Match(t) {
			continue
		}
		return d.run(ctx, r, t)
	}
	log.Debug().Str("kind", string(ev.Kind)).Msg("No route for event")
	return Reply{}
}

func (d *Dispatcher) run(ctx context.Context, r Route, t *Turn) Reply {
	ctx, span := d.tracer.Start(ctx, "bot."+r.Name, trace.WithAttributes(
		attribute.Int64("chat.id", t.Event.ChatID),
		attribute.Int64("message.id", t.Event.MessageID),
		attribute.String("event.kind", string(t.Event.Kind)),
	))
	defer span.End()

	log := logger.FromContext(ctx).With().Str("route", r.Name).Logger()
	start := time.Now()
	reply, err := r.Handle(logger.WithContext(ctx, log), t)
	d.metrics.Observe(r.Name, time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.metrics.DispatchError(r.Name)
		reply = errorReply(err)
		log.Error().Err(err).Msg("Failed to handle event")
	} else {
		log.Debug().Msg("Handled event")
	}
	if reply.ReplyTo == 0 && !reply.Empty() {
		reply.ReplyTo = t.Event.MessageID
	}
	return reply
}

// errorReply maps a handler failure to what the user sees.
func errorReply(err error) Reply {
	var dae *domain.DocumentAccessError
	switch {
	case errors.As(err, &dae):
		return Reply{Text: accessErrorText(dae)}
	case errors.Is(err, domain.ErrRecordNotFound):
		return Reply{Text: textNotFound}
	case errors.Is(err, domain.ErrMalformedReceipt):
		return Reply{Text: malformedReceiptText(err)}
	case errors.Is(err, domain.ErrNotBound):
		return Reply{Text: textNotBound}
	default:
		return Reply{Text: textFailed}
	}
}

// Routes is the dispatch table, in priority order.
func (h *Handlers) Routes() []Route {
	return []Route{
		{Name: "start", Match: isCommand("start"), Handle: h.Start},
		{Name: "help", Match: isCommand("help"), Handle: h.Help},
		{Name: "settings", Match: isCommand("settings"), Handle: h.Settings},
		{Name: "bind", Match: awaitingDocument, Handle: h.Bind},
		{Name: "unbound", Match: unbound, Handle: h.Unbound},
		{Name: "delete", Match: isDeleteReply, Handle: h.Delete},
		{Name: "edit", Match: isKind(EventEditedText), Handle: h.Edit},
		{Name: "receipt_photo", Match: isKind(EventPhoto), Handle: h.ReceiptPhoto},
		{Name: "receipt_url", Match: hasTicketURL, Handle: h.ReceiptURL},
		{Name: "pattern", Match: h.matchesPattern, Handle: h.Pattern},
		{Name: "freeform", Match: isMessage, Handle: h.Freeform},
		{Name: "fallback", Match: isKind(EventCommand), Handle: h.Fallback},
	}
}
