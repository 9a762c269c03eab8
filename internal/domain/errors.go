package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrRecordNotFound is returned when no row carries the requested message id.
	ErrRecordNotFound = errors.New("record not found")

	// ErrMalformedReceipt is returned when a ticket lookup yields nothing usable.
	ErrMalformedReceipt = errors.New("malformed receipt")

	// ErrNotBound is returned when a chat has no document yet.
	ErrNotBound = errors.New("chat has no document")
)

// DocumentAccessError wraps a permission or connectivity failure on the user's document.
type DocumentAccessError struct {
	DocumentID string
	Err        error
}

func (e *DocumentAccessError) Error() string {
	if e.DocumentID == "" {
		return fmt.Sprintf("document access: %v", e.Err)
	}
	return fmt.Sprintf("document %s access: %v", e.DocumentID, e.Err)
}

func (e *DocumentAccessError) Unwrap() error {
	return e.Err
}

// IsDocumentAccess reports whether err is or wraps a DocumentAccessError.
func IsDocumentAccess(err error) bool {
	var dae *DocumentAccessError
	return errors.As(err, &dae)
}
