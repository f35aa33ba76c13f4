package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// NetworkErrorKind classifies a failed request
type NetworkErrorKind string

const (
	NetworkTimeout        NetworkErrorKind = "timeout"
	NetworkNoConnectivity NetworkErrorKind = "no_connectivity"
	NetworkServer         NetworkErrorKind = "server"
)

// NetworkError is returned for transport failures and non-2xx responses
type NetworkError struct {
	Kind       NetworkErrorKind
	StatusCode int    // only for NetworkServer
	Message    string // server supplied message, if any
	Err        error
}

func (e *NetworkError) Error() string {
	switch e.Kind {
	case NetworkServer:
		if e.Message != "" {
			return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Message)
		}
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	case NetworkTimeout:
		return fmt.Sprintf("request timed out: %v", e.Err)
	default:
		return fmt.Sprintf("no connectivity: %v", e.Err)
	}
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Transient reports whether retrying the request may succeed
func (e *NetworkError) Transient() bool {
	switch e.Kind {
	case NetworkTimeout, NetworkNoConnectivity:
		return true
	default:
		return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
	}
}

// DecodeError is returned when the server payload cannot be parsed
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode response from %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsCancellation reports whether err stems from a cancelled context.
// Cancellation is never a user-facing failure.
func IsCancellation(err error) bool {
	return err != nil && errors.Is(err, context.Canceled)
}

// IsDecodeError reports whether err is a DecodeError
func IsDecodeError(err error) bool {
	var decodeErr *DecodeError
	return errors.As(err, &decodeErr)
}

// UserMessage returns the message to show for a failed user-initiated action.
// Cancellation yields an empty message.
func UserMessage(err error) string {
	if err == nil || IsCancellation(err) {
		return ""
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		switch netErr.Kind {
		case NetworkTimeout:
			return "The request timed out. Please try again."
		case NetworkNoConnectivity:
			return "No internet connection."
		default:
			if netErr.Message != "" {
				return netErr.Message
			}
			return fmt.Sprintf("Server error (%d)", netErr.StatusCode)
		}
	}
	if IsDecodeError(err) {
		return "Received an unexpected response from the server."
	}
	return err.Error()
}

func classifyTransportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.Canceled) {
			return fmt.Errorf("request cancelled: %w", err)
		}
		return &NetworkError{Kind: NetworkTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &NetworkError{Kind: NetworkTimeout, Err: err}
	}
	return &NetworkError{Kind: NetworkNoConnectivity, Err: err}
}

// serverMessage extracts {"message": ...} or {"error": ...} from an error body
func serverMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
