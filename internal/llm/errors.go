package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Kind is the top-level generation error category
type Kind int

const (
	KindConfig Kind = iota + 1
	KindProvider
	KindParse
	KindAbort
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "ConfigError"
	case KindProvider:
		return "ProviderError"
	case KindParse:
		return "ParseError"
	case KindAbort:
		return "AbortError"
	default:
		return "UnknownError"
	}
}

// Reason refines a ProviderError
type Reason string

const (
	ReasonAuth      Reason = "auth"
	ReasonRateLimit Reason = "rate_limit"
	ReasonNetwork   Reason = "network"
	ReasonTimeout   Reason = "timeout"
	ReasonServer    Reason = "server"
	ReasonStatus    Reason = "status"
)

// Error is a generation failure carried inside a Result
type Error struct {
	Kind       Kind
	Reason     Reason
	Vendor     string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	if e.Reason != "" {
		sb.WriteString(" (" + string(e.Reason) + ")")
	}
	if e.Vendor != "" {
		sb.WriteString(": " + e.Vendor)
	}
	if e.Message != "" {
		sb.WriteString(": " + e.Message)
	} else if e.Err != nil {
		sb.WriteString(": " + e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, and by reason when the target sets one
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// Sentinels for errors.Is
var (
	ErrConfig    = &Error{Kind: KindConfig}
	ErrProvider  = &Error{Kind: KindProvider}
	ErrParse     = &Error{Kind: KindParse}
	ErrAbort     = &Error{Kind: KindAbort}
	ErrAuth      = &Error{Kind: KindProvider, Reason: ReasonAuth}
	ErrRateLimit = &Error{Kind: KindProvider, Reason: ReasonRateLimit}
	ErrTimeout   = &Error{Kind: KindProvider, Reason: ReasonTimeout}
	ErrNetwork   = &Error{Kind: KindProvider, Reason: ReasonNetwork}
)

// NewConfigError creates a setup error
func NewConfigError(err error) *Error {
	return &Error{Kind: KindConfig, Message: err.Error(), Err: err}
}

// NewParseError creates an error for output that could not be normalized
func NewParseError(vendor, message string, err error) *Error {
	return &Error{Kind: KindParse, Vendor: vendor, Message: message, Err: err}
}

// NewAbortError creates a cancellation error
func NewAbortError(err error) *Error {
	return &Error{Kind: KindAbort, Message: "generation cancelled", Err: err}
}

// StatusError maps a non-2xx vendor response to a ProviderError
func StatusError(vendor string, status int, message string, cause error) *Error {
	if message == "" {
		message = http.StatusText(status)
	}
	return &Error{
		Kind:       KindProvider,
		Reason:     ReasonForStatus(status),
		Vendor:     vendor,
		StatusCode: status,
		Message:    fmt.Sprintf("status %d: %s", status, message),
		Err:        cause,
	}
}

// ReasonForStatus classifies an HTTP status code
func ReasonForStatus(status int) Reason {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ReasonAuth
	case status == http.StatusTooManyRequests:
		return ReasonRateLimit
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return ReasonTimeout
	case status >= 500:
		return ReasonServer
	default:
		return ReasonStatus
	}
}

// ClassifyError maps transport-level failures that carry no HTTP status.
// Vendor-specific API errors are unwrapped by each adapter before this.
func ClassifyError(vendor string, err error) *Error {
	var genErr *Error
	if errors.As(err, &genErr) {
		return genErr
	}

	switch {
	case errors.Is(err, context.Canceled):
		return NewAbortError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindProvider, Reason: ReasonTimeout, Vendor: vendor, Message: "request timed out", Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return &Error{Kind: KindProvider, Reason: ReasonTimeout, Vendor: vendor, Message: "request timed out", Err: err}
		}
		return &Error{Kind: KindProvider, Reason: ReasonNetwork, Vendor: vendor, Message: err.Error(), Err: err}
	}

	return &Error{Kind: KindProvider, Reason: ReasonNetwork, Vendor: vendor, Message: err.Error(), Err: err}
}
