// Package proxy holds the domain core: the error taxonomy surfaced to
// clients, qualified tool name resolution, response interception, and agent
// identity.
package proxy

import (
	"errors"
	"fmt"
)

// Kind classifies an error surfaced to the client.
type Kind string

const (
	// KindConfigInvalid is a malformed configuration file or settings.
	KindConfigInvalid Kind = "ConfigInvalid"
	// KindUnknownTool means a qualified name does not resolve.
	KindUnknownTool Kind = "UnknownTool"
	// KindUpstreamUnavailable means the owning session is Failed or was
	// never Ready.
	KindUpstreamUnavailable Kind = "UpstreamUnavailable"
	// KindUpstreamCrashed means the session failed mid-call.
	KindUpstreamCrashed Kind = "UpstreamCrashed"
	// KindUpstreamTimeout means the call deadline was exceeded.
	KindUpstreamTimeout Kind = "UpstreamTimeout"
	// KindUpstreamError is a tool error returned by the upstream itself.
	KindUpstreamError Kind = "UpstreamError"
	// KindCacheMiss is an unknown cache handle.
	KindCacheMiss Kind = "CacheMiss"
	// KindCacheExpired means the entry existed but its TTL elapsed.
	KindCacheExpired Kind = "CacheExpired"
	// KindCacheFull means per-agent limits prevent insertion.
	KindCacheFull Kind = "CacheFull"
	// KindTooManyAgents means the global agent cap is reached.
	KindTooManyAgents Kind = "TooManyAgents"
	// KindBadArguments means proxy tool parameters failed validation.
	KindBadArguments Kind = "BadArguments"
	// KindProcessorError is a non-fatal processor failure.
	KindProcessorError Kind = "ProcessorError"
)

// Error is a classified proxy error with a client-facing message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// Errorf builds a classified error with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a classified error around a cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind from err, or "" when err carries none.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
