// Package telegram connects the bot to the Telegram Bot API: updates become
// jobs on the per-chat queue, and each job's reply is sent back.
package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/telegrind/internal/bot"
	"github.com/dvloznov/telegrind/internal/jobs"
	"github.com/dvloznov/telegrind/internal/logger"
)

// maxPhotoBytes bounds a downloaded receipt photo.
const maxPhotoBytes = 20 << 20

// Client is the part of tgbotapi.BotAPI the transport uses.
type Client interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Dispatcher answers one event.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev bot.Event) bot.Reply
}

// Connect logs in with the bot token.
func Connect(token string, debug bool) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("Connect: %w", err)
	}
	api.Debug = debug
	return api, nil
}

// Transport moves updates into the queue and replies out of it.
type Transport struct {
	client       Client
	queue        jobs.Publisher
	http         *http.Client
	eventTimeout time.Duration
	log          zerolog.Logger
}

// New creates a transport. eventTimeout bounds the handling of one event.
func New(client Client, queue jobs.Publisher, eventTimeout time.Duration, log zerolog.Logger) *Transport {
	return &Transport{
		client:       client,
		queue:        queue,
		http:         &http.Client{Timeout: time.Minute},
		eventTimeout: eventTimeout,
		log:          log,
	}
}

// Run long-polls updates until ctx is cancelled.
func (t *Transport) Run(ctx context.Context, pollTimeout int) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := t.client.GetUpdatesChan(u)

	t.log.Info().Int("poll_timeout", pollTimeout).Msg("Polling Telegram updates")
	for {
		select {
		case <-ctx.Done():
			t.client.StopReceivingUpdates()
			t.log.Info().Msg("Stopped polling")
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			t.enqueue(ctx, up)
		}
	}
}

func (t *Transport) enqueue(ctx context.Context, up tgbotapi.Update) {
	ev, ok := ToEvent(up)
	if !ok {
		t.log.Debug().Int("update_id", up.UpdateID).Msg("Skipping unsupported update")
		return
	}
	job := &jobs.Job{Key: ev.ChatID, Kind: string(ev.Kind), Payload: ev}
	if err := t.queue.Publish(ctx, job); err != nil {
		log := logger.ForEvent(t.log, ev.ChatID, ev.MessageID)
		log.Error().Err(err).Msg("Failed to enqueue event")
	}
}

// Handler is the queue handler: it dispatches the job's event and sends the
// reply.
func (t *Transport) Handler(d Dispatcher) jobs.JobHandler {
	return func(ctx context.Context, job *jobs.Job) error {
		ev, ok := job.Payload.(bot.Event)
		if !ok {
			return fmt.Errorf("Handler: unexpected payload %T", job.Payload)
		}
		if t.eventTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, t.eventTimeout)
			defer cancel()
		}
		ctx = logger.WithContext(ctx, t.log.With().Str("job_id", job.ID).Logger())
		return t.Send(ctx, ev.ChatID, d.Dispatch(ctx, ev))
	}
}

// Send delivers a reply, pinning it when asked.
func (t *Transport) Send(ctx context.Context, chatID int64, reply bot.Reply) error {
	if reply.Empty() {
		return nil
	}
	msg := tgbotapi.NewMessage(chatID, reply.Text)
	msg.ReplyToMessageID = int(reply.ReplyTo)
	msg.AllowSendingWithoutReply = true
	msg.DisableWebPagePreview = true
	if reply.HTML {
		msg.ParseMode = tgbotapi.ModeHTML
	}

	sent, err := t.client.Send(msg)
	if err != nil {
		return fmt.Errorf("Send: %w", err)
	}
	if reply.Pin {
		pin := tgbotapi.PinChatMessageConfig{ChatID: chatID, MessageID: sent.MessageID, DisableNotification: true}
		if _, err := t.client.Request(pin); err != nil {
			log := logger.FromContext(ctx)
			log.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to pin message")
		}
	}
	return nil
}

// Download fetches a file the user attached.
func (t *Transport) Download(ctx context.Context, fileID string) ([]byte, error) {
	link, err := t.client.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("Download: resolve file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("Download: %w", err)
	}
	resp, err := t.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Download: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
	if err != nil {
		return nil, fmt.Errorf("Download: read body: %w", err)
	}
	return data, nil
}

var (
	_ Client    = (*tgbotapi.BotAPI)(nil)
	_ bot.Files = (*Transport)(nil)
)
