package llm

import (
	"errors"
	"fmt"
)

var (
	ErrMissingCredential = errors.New("missing credential")
	ErrUnknownProvider   = errors.New("unknown provider")
)

func missingCredential(cfg ProviderConfig) error {
	return fmt.Errorf("%w for %s: set %s", ErrMissingCredential, cfg.ID, cfg.CredentialKey)
}

// DecodeError means a success response did not match any shape the protocol understands.
type DecodeError struct {
	Protocol Protocol
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s response: %v", e.Protocol, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
