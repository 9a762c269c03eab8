// Package journal keeps an append-only history of the rows the bot wrote,
// changed or removed in chat documents.
package journal

import (
	"context"
	"time"

	"github.com/dvloznov/telegrind/internal/domain"
	"github.com/google/uuid"
)

// Action is what happened to a row.
type Action string

const (
	ActionRecorded Action = "recorded"
	ActionEdited   Action = "edited"
	ActionDeleted  Action = "deleted"
)

// Event describes one row change.
type Event struct {
	EventID    string
	ChatID     int64
	DocumentID string
	Action     Action
	Record     domain.Record
	CreatedAt  time.Time
}

// NewEvent stamps a row change with a fresh id.
func NewEvent(action Action, chatID int64, documentID string, rec domain.Record) Event {
	return Event{
		EventID:    uuid.New().String(),
		ChatID:     chatID,
		DocumentID: documentID,
		Action:     action,
		Record:     rec,
		CreatedAt:  time.Now().UTC(),
	}
}

// Journal stores events.
type Journal interface {
	Log(ctx context.Context, events ...Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Log(ctx context.Context, events ...Event) error { return nil }

var _ Journal = Nop{}
