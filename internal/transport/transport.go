// Package transport decides which of several candidate paths carries a provider request.
// Strategies are probed in order: a strategy that is not deployed (or not reachable) skips,
// and the next one is tried; any other failure ends the probe.
package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/nulzo/prism-relay/internal/llm"
	"github.com/nulzo/prism-relay/pkg/api"
)

// ErrUnavailable marks a skip: the transport could not carry the request at all.
var ErrUnavailable = errors.New("transport unavailable")

// Request is one provider call, before encoding.
type Request struct {
	Provider llm.ProviderConfig
	Messages []api.Message
}

// Reply is the raw success body and the transport that produced it.
type Reply struct {
	Transport string
	Body      []byte
	// Relayed is set when the body came back through a relay endpoint rather than
	// straight from the provider.
	Relayed bool
}

// Decode extracts the generated text from the reply.
func (r *Reply) Decode(p llm.Protocol) (string, error) {
	if r.Relayed {
		return p.DecodeRelayed(r.Body)
	}
	return p.Decode(r.Body)
}

// Strategy is a single transport tier.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, req *Request) (*Reply, error)
}

// SkipError reports why a transport was skipped. It matches ErrUnavailable.
type SkipError struct {
	Transport string
	Reason    error
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Transport, ErrUnavailable, e.Reason)
}

func (e *SkipError) Is(target error) bool {
	return target == ErrUnavailable
}

func (e *SkipError) Unwrap() error {
	return e.Reason
}

func skip(transport string, reason error) error {
	return &SkipError{Transport: transport, Reason: reason}
}

// DispatchError is a final failure from the strategy that accepted the request.
type DispatchError struct {
	Transport string
	Err       error
}

func (e *DispatchError) Error() string {
	return e.Err.Error()
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// TransportOf names the strategy that produced err, or "" when no strategy accepted it.
func TransportOf(err error) string {
	var dispatchErr *DispatchError
	if errors.As(err, &dispatchErr) {
		return dispatchErr.Transport
	}
	return ""
}
