// Package binding persists which spreadsheet each chat writes into.
package binding

import (
	"context"

	"github.com/dvloznov/telegrind/internal/domain"
)

// Store defines chat binding persistence. Bindings are created on first
// contact and never deleted.
type Store interface {
	// Ensure returns the binding for chatID, creating an empty one if needed.
	Ensure(ctx context.Context, chatID int64) (*domain.ChatBinding, error)

	// SetAwaiting marks whether the next message should be read as a document link.
	SetAwaiting(ctx context.Context, chatID int64, awaiting bool) error

	// Bind stores the document link and clears the awaiting flag.
	Bind(ctx context.Context, chatID int64, documentURL string) error
}
