package routing

import (
	"errors"
	"fmt"
)

// Kind classifies provider failures.
type Kind int

const (
	KindProviderError Kind = iota
	KindTimeout
	KindMalformedResponse
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindMalformedResponse:
		return "malformed_response"
	default:
		return "provider_error"
	}
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Failure is the only error type returned across the oracle boundary.
type Failure struct {
	Kind     Kind
	Provider string
	Err      error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", f.Provider, f.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", f.Provider, f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Timeout builds a timeout failure.
func Timeout(provider string, err error) *Failure {
	return &Failure{Kind: KindTimeout, Provider: provider, Err: err}
}

// ProviderError builds a provider failure.
func ProviderError(provider string, err error) *Failure {
	return &Failure{Kind: KindProviderError, Provider: provider, Err: err}
}

// Malformed builds a malformed-response failure.
func Malformed(provider string, err error) *Failure {
	return &Failure{Kind: KindMalformedResponse, Provider: provider, Err: err}
}

// KindOf returns the failure kind of err. Errors that are not a *Failure are
// reported as provider errors.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindProviderError
}
