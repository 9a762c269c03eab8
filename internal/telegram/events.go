package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dvloznov/telegrind/internal/bot"
)

// ToEvent converts an update into a bot event. Updates the bot does not
// handle (stickers, joins, channel posts) report false.
func ToEvent(u tgbotapi.Update) (bot.Event, bool) {
	if m := u.EditedMessage; m != nil {
		if m.Chat == nil || strings.TrimSpace(m.Text) == "" {
			return bot.Event{}, false
		}
		ev := base(m)
		ev.Kind = bot.EventEditedText
		ev.Text = m.Text
		return ev, true
	}

	m := u.Message
	if m == nil || m.Chat == nil {
		return bot.Event{}, false
	}
	ev := base(m)

	switch {
	case m.IsCommand():
		ev.Kind = bot.EventCommand
		ev.Command = strings.ToLower(m.Command())
		ev.Args = m.CommandArguments()
		ev.Text = m.Text
	case len(m.Photo) > 0:
		// Sizes come smallest first.
		largest := m.Photo[len(m.Photo)-1]
		ev.Kind = bot.EventPhoto
		ev.Photo = &bot.Photo{FileID: largest.FileID, MIMEType: "image/jpeg"}
		ev.Text = m.Caption
	case m.ReplyToMessage != nil && m.Text != "":
		ev.Kind = bot.EventReply
		ev.Text = m.Text
		ev.ReplyTo = &bot.Original{
			MessageID: int64(m.ReplyToMessage.MessageID),
			Text:      m.ReplyToMessage.Text,
		}
	case m.Text != "":
		ev.Kind = bot.EventText
		ev.Text = m.Text
	default:
		return bot.Event{}, false
	}
	return ev, true
}

func base(m *tgbotapi.Message) bot.Event {
	return bot.Event{
		ChatID:    m.Chat.ID,
		MessageID: int64(m.MessageID),
		Date:      m.Time(),
	}
}
