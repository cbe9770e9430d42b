package upstream

import (
	"errors"
	"fmt"
)

// Kind is the §7 error taxonomy for failures the upstream client surfaces.
// Cache-fault and Bug are not represented here — they belong to the cache
// and transport layers respectively.
type Kind int

const (
	// KindNotFound: upstream reports the tournament does not exist.
	KindNotFound Kind = iota
	// KindRateLimited: upstream 429 exhausted the retry budget.
	KindRateLimited
	// KindUnavailable: upstream answered with an HTTP error status other
	// than 401/429, a GraphQL-level error, or a body that failed to decode.
	KindUnavailable
	// KindFatalConfig: missing or invalid credentials (HTTP 401).
	KindFatalConfig
	// KindNetwork: a network-level failure reaching upstream.
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not-found"
	case KindRateLimited:
		return "rate-limited"
	case KindUnavailable:
		return "upstream-unavailable"
	case KindFatalConfig:
		return "fatal-configuration"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// Error wraps an upstream failure with its taxonomy Kind, so callers can
// classify with errors.As without string matching on the message text. The
// bearer token is never part of Message or Err's formatted text.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("upstream %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// ClassifyKind extracts the Kind from err if it is (or wraps) an *Error.
func ClassifyKind(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
