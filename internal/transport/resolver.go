package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nulzo/prism-relay/internal/httpclient"
	"go.uber.org/zap"
)

// Resolver probes its strategies in order.
type Resolver struct {
	strategies []Strategy
	logger     *zap.Logger
}

func NewResolver(logger *zap.Logger, strategies ...Strategy) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{strategies: strategies, logger: logger}
}

// Chain orders the probe sequence: one relay per endpoint on baseURL, then the direct
// caller. An empty baseURL leaves only the direct call.
func Chain(baseURL string, endpoints []Endpoint, relayClient httpclient.HTTPClient, caller Caller) []Strategy {
	var strategies []Strategy
	if baseURL != "" {
		strategies = Relays(baseURL, endpoints, relayClient)
	}
	return append(strategies, NewDirect(caller))
}

// Names lists the strategies in probe order.
func (r *Resolver) Names() []string {
	names := make([]string, 0, len(r.strategies))
	for _, s := range r.strategies {
		names = append(names, s.Name())
	}
	return names
}

// Dispatch returns the first reply any strategy produces. Skips move on to the next
// strategy; any other error is returned as a *DispatchError naming the strategy.
func (r *Resolver) Dispatch(ctx context.Context, req *Request) (*Reply, error) {
	for _, s := range r.strategies {
		reply, err := s.Attempt(ctx, req)
		if err == nil {
			return reply, nil
		}

		if !errors.Is(err, ErrUnavailable) {
			return nil, &DispatchError{Transport: s.Name(), Err: err}
		}

		r.logger.Debug("Transport skipped",
			zap.String("transport", s.Name()),
			zap.String("provider", string(req.Provider.ID)),
			zap.Error(err),
		)
	}

	return nil, skip("resolver", fmt.Errorf("no transport accepted the request (tried %s)", strings.Join(r.Names(), ", ")))
}
