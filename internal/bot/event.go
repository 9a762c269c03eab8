// Package bot turns chat events into spreadsheet operations and replies.
//
// A Dispatcher holds an explicit, ordered list of Routes; every event is
// handed to the first route that matches it. The transport layer builds
// Events and sends Replies; nothing here knows about Telegram.
package bot

import (
	"context"
	"time"
)

// EventKind tells what the user did.
type EventKind string

const (
	EventCommand    EventKind = "command"
	EventText       EventKind = "text"
	EventEditedText EventKind = "edited_text"
	EventReply      EventKind = "reply"
	EventPhoto      EventKind = "photo"
)

// Event is one inbound chat update.
type Event struct {
	Kind      EventKind
	ChatID    int64
	MessageID int64
	// Text is the message text, or the photo caption.
	Text string
	// Command and Args are set for EventCommand, without the leading slash.
	Command string
	Args    string
	// ReplyTo is the message this one answers, for EventReply.
	ReplyTo *Original
	Photo   *Photo
	// Date is when the message was first sent. Edits keep the original date.
	Date time.Time
}

// Original is the message a reply points at.
type Original struct {
	MessageID int64
	Text      string
}

// Photo references the largest size of an attached image.
type Photo struct {
	FileID   string
	MIMEType string
}

// Reply is what the bot answers with. An empty Text means no answer.
type Reply struct {
	Text string
	// ReplyTo is the message the answer is attached to.
	ReplyTo int64
	HTML    bool
	// Pin asks the transport to pin the answer in the chat.
	Pin bool
}

// Empty reports whether there is nothing to send.
func (r Reply) Empty() bool {
	return r.Text == ""
}

// Files downloads attachments from the chat platform.
type Files interface {
	Download(ctx context.Context, fileID string) ([]byte, error)
}
