package domain

import (
	"fmt"
	"time"
)

const (
	// DefaultUTCOffsetHours is the document timezone used until the user changes it.
	DefaultUTCOffsetHours = 6

	// DefaultCurrency is applied to records that name no currency.
	DefaultCurrency = "KZT"
)

// DocumentConfig holds the per-document settings stored in the settings worksheet.
type DocumentConfig struct {
	UTCOffsetHours  int
	DefaultCurrency string
}

// DefaultDocumentConfig returns the settings written to a fresh document.
func DefaultDocumentConfig() DocumentConfig {
	return DocumentConfig{
		UTCOffsetHours:  DefaultUTCOffsetHours,
		DefaultCurrency: DefaultCurrency,
	}
}

// Location is the fixed-offset zone of the document.
func (c DocumentConfig) Location() *time.Location {
	name := fmt.Sprintf("UTC%+d", c.UTCOffsetHours)
	return time.FixedZone(name, c.UTCOffsetHours*int(time.Hour/time.Second))
}

// Now returns the current time in the document timezone.
func (c DocumentConfig) Now() time.Time {
	return time.Now().In(c.Location())
}

// ChatBinding links a chat to the spreadsheet it writes into.
type ChatBinding struct {
	ChatID int64
	// DocumentURL is empty until the user shares a document.
	DocumentURL string
	// AwaitingDocument is set after /start until a valid link arrives.
	AwaitingDocument bool
}

// Bound reports whether the chat has a document.
func (b *ChatBinding) Bound() bool {
	return b != nil && b.DocumentURL != ""
}
