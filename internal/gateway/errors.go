package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nulzo/prism-relay/internal/httpclient"
	"github.com/nulzo/prism-relay/internal/llm"
	"github.com/nulzo/prism-relay/internal/transport"
)

var (
	// ErrEmptyResponse is recorded when a provider answered successfully with blank text.
	ErrEmptyResponse = errors.New("provider returned an empty response")

	ErrAllProvidersExhausted = errors.New("all providers exhausted")
)

// ErrorKind is the failure category recorded for an attempt.
type ErrorKind string

const (
	KindNone                 ErrorKind = ""
	KindMissingCredential    ErrorKind = "missing_credential"
	KindTransportUnavailable ErrorKind = "transport_unavailable"
	KindProviderHTTP         ErrorKind = "provider_http"
	KindDecode               ErrorKind = "decode"
	KindEmptyResponse        ErrorKind = "empty_response"
	KindTimeout              ErrorKind = "timeout"
	KindCanceled             ErrorKind = "canceled"
	KindUnknown              ErrorKind = "unknown"
)

// Classify maps an attempt error onto its ErrorKind.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var httpErr *httpclient.ProviderHTTPError
	var decodeErr *llm.DecodeError
	var netErr *httpclient.TransportError

	switch {
	// checked first: a transport error may wrap the deadline
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, llm.ErrMissingCredential):
		return KindMissingCredential
	case errors.As(err, &httpErr):
		return KindProviderHTTP
	case errors.As(err, &decodeErr):
		return KindDecode
	case errors.Is(err, ErrEmptyResponse):
		return KindEmptyResponse
	case errors.Is(err, transport.ErrUnavailable), errors.As(err, &netErr):
		return KindTransportUnavailable
	default:
		return KindUnknown
	}
}

// StatusCode returns the upstream status carried by err, or 0.
func StatusCode(err error) int {
	var httpErr *httpclient.ProviderHTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// ExhaustedError is returned when every provider in the sequence failed.
// It matches ErrAllProvidersExhausted and unwraps to the last attempt's error.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	ids := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		ids = append(ids, string(a.Provider))
	}
	return fmt.Sprintf("%v after %d providers (%s): last error: %v",
		ErrAllProvidersExhausted, len(e.Attempts), strings.Join(ids, ", "), e.Unwrap())
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrAllProvidersExhausted
}

func (e *ExhaustedError) Unwrap() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}
