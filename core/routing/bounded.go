package routing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/ambudispatch/core/geo"
)

type bounded struct {
	next    Oracle
	name    string
	timeout time.Duration
}

// Bounded wraps o so that each call is limited to timeout and every error,
// including a panic inside the provider, surfaces as a *Failure.
func Bounded(name string, o Oracle, timeout time.Duration) Oracle {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &bounded{next: o, name: name, timeout: timeout}
}

func (b *bounded) Estimate(ctx context.Context, origin, destination geo.Point) (est Estimate, err error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			est, err = Estimate{}, ProviderError(b.name, fmt.Errorf("panic: %v", r))
		}
	}()
	est, err = b.next.Estimate(ctx, origin, destination)
	if err == nil {
		return est, nil
	}
	return Estimate{}, classify(ctx, b.name, err)
}

func classify(ctx context.Context, name string, err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		if f.Kind != KindTimeout && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Timeout(f.Provider, err)
		}
		return f
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Timeout(name, err)
	}
	return ProviderError(name, err)
}
