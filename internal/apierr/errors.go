// Package apierr defines the error taxonomy shared by every outbound client:
// resolvers, routers and text-generation providers. Callers match failures with
// errors.Is against the sentinels below; the concrete *Error keeps the provider,
// the operation and the underlying cause for logs.
package apierr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Error kinds.
var (
	ErrMissingCredential  = errors.New("missing credential")
	ErrTransport          = errors.New("transport error")
	ErrAddressNotFound    = errors.New("address not found")
	ErrRouteNotFound      = errors.New("route not found")
	ErrMalformedResponse  = errors.New("malformed response")
	ErrUnknownProvider    = errors.New("unknown provider")
	ErrNoProviderSelected = errors.New("no provider selected")
	ErrGeneration         = errors.New("generation failed")
	ErrOriginUnresolved   = errors.New("origin address unresolved")
	ErrInvalidRequest     = errors.New("invalid request")
)

// Error is a classified failure of a provider operation.
type Error struct {
	Kind     error  // One of the sentinel kinds above.
	Provider string // Provider name, e.g. "baidu" or "qwen".
	Op       string // Operation, e.g. "geocode", "route", "complete".
	Err      error  // Underlying cause, may be nil.
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Provider != "" || e.Op != "" {
		msg = fmt.Sprintf("%s %s: %s", e.Provider, e.Op, msg)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the kind and the cause. A malformed payload also reports as a
// transport failure: the call went out but nothing usable came back.
func (e *Error) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Kind == ErrMalformedResponse {
		errs = append(errs, ErrTransport)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// New builds a classified error.
func New(kind error, provider, op string, err error) *Error {
	return &Error{Kind: kind, Provider: provider, Op: op, Err: err}
}

// Transport classifies err as a transport failure.
func Transport(provider, op string, err error) *Error {
	return New(ErrTransport, provider, op, err)
}

// Malformed classifies err as an unexpected payload shape.
func Malformed(provider, op string, err error) *Error {
	return New(ErrMalformedResponse, provider, op, err)
}

// MissingCredential reports that the named credential is not configured.
func MissingCredential(provider, credential string) *Error {
	return New(ErrMissingCredential, provider, "configure", fmt.Errorf("%s is not set", credential))
}

// Generation wraps any text-generation failure. Errors that are already
// generation errors are returned unchanged.
func Generation(provider, op string, err error) error {
	if errors.Is(err, ErrGeneration) {
		return err
	}
	return New(ErrGeneration, provider, op, err)
}

// IsNetwork reports whether err comes from the network layer: timeouts,
// refused connections, DNS failures and cancelled deadlines.
func IsNetwork(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// IsRetryable reports whether retrying the same call may succeed.
// Only transport failures qualify; malformed payloads do not.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransport) && !errors.Is(err, ErrMalformedResponse)
}
