package controllers

import (
	"errors"

	"github.com/amaumene/chansync/internal/services/backend"
)

// UserError returns the message to show for a failed user-initiated action.
// Cancellation and nil errors yield an empty message.
func UserError(err error) string {
	switch {
	case err == nil, backend.IsCancellation(err):
		return ""
	case errors.Is(err, ErrItemNotFound):
		return "This item no longer exists."
	case errors.Is(err, ErrInvalidVisibility):
		return "Unknown visibility filter."
	default:
		return backend.UserMessage(err)
	}
}
