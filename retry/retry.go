// Package retry bounds a unit of work with a per-verb retry schedule.
// Only transient transport failures are repeated; everything else is
// surfaced on the first attempt.
package retry

import (
	"context"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/smallnest/taskwire/types"
)

// Defaults for the per-verb policy table.
const (
	DefaultMaxAttempts = 3
	DefaultDelay       = 500 * time.Millisecond
)

// Policy bounds one logical call. MaxAttempts counts total attempts, so 1
// means no retry. Delay is the fixed pause between attempts.
type Policy struct {
	MaxAttempts uint
	Delay       time.Duration
}

// ForMethod returns the default policy for an HTTP verb. Idempotent verbs
// (GET, DELETE) are retried; POST and PUT get a single attempt because
// repeating them risks duplicate side effects.
func ForMethod(method string) Policy {
	switch method {
	case http.MethodGet, http.MethodDelete:
		return Policy{MaxAttempts: DefaultMaxAttempts, Delay: DefaultDelay}
	default:
		return Policy{MaxAttempts: 1, Delay: DefaultDelay}
	}
}

// WithAttempts returns a copy of the policy with a different attempt cap.
func (p Policy) WithAttempts(n uint) Policy {
	p.MaxAttempts = n
	return p
}

// Do runs op under the policy. Non-transient errors are not repeated, and
// cancellation always wins over an in-flight delay.
func Do[T any](ctx context.Context, p Policy, op func() (T, error)) (T, error) {
	if p.MaxAttempts == 0 {
		p.MaxAttempts = 1
	}

	attempt := func() (T, error) {
		v, err := op()
		if err != nil && !types.IsTransient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	return backoff.Retry(ctx, attempt,
		backoff.WithBackOff(backoff.NewConstantBackOff(p.Delay)),
		backoff.WithMaxTries(p.MaxAttempts),
	)
}
