package ratelimiter

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// unlimited is the rate used when no limit is configured. rate.Inf would be
// ideal but has edge cases with Wait and Tokens.
const unlimited = 1_000_000_000

// Limit is a sustained rate with its burst capacity.
type Limit struct {
	// RequestsPerSecond is the sustained rate (0 = unlimited).
	RequestsPerSecond uint `mapstructure:"requests_per_second" yaml:"requests_per_second"`

	// Burst is the bucket capacity. 0 selects RequestsPerSecond.
	Burst uint `mapstructure:"burst" yaml:"burst"`
}

// Unlimited reports whether l imposes no limit.
func (l Limit) Unlimited() bool {
	return l.RequestsPerSecond == 0
}

// RateLimiter provides request admission control using the token bucket
// algorithm.
//
// Every request draws one token from a global bucket. Procedures may in
// addition have their own bucket, so that expensive procedures (e.g. a
// recursive ITERATE) can be throttled harder than cheap lookups. A request
// is admitted only if both buckets have a token.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	global *rate.Limiter

	mu         sync.RWMutex
	procedures map[string]*rate.Limiter
}

// New creates a RateLimiter with the given global limit.
//
// Example:
//
//	// Allow 1000 req/s sustained, 2000 req/s burst
//	limiter := New(Limit{RequestsPerSecond: 1000, Burst: 2000})
func New(global Limit) *RateLimiter {
	return &RateLimiter{
		global:     newLimiter(global),
		procedures: make(map[string]*rate.Limiter),
	}
}

func newLimiter(l Limit) *rate.Limiter {
	if l.Unlimited() {
		return rate.NewLimiter(rate.Limit(unlimited), unlimited)
	}
	burst := l.Burst
	if burst == 0 {
		burst = l.RequestsPerSecond
	}
	return rate.NewLimiter(rate.Limit(l.RequestsPerSecond), int(burst))
}

// SetProcedureLimit installs (or replaces) the bucket of one procedure.
// An unlimited Limit removes it.
func (r *RateLimiter) SetProcedureLimit(procedure string, l Limit) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l.Unlimited() {
		delete(r.procedures, procedure)
		return
	}
	r.procedures[procedure] = newLimiter(l)
}

func (r *RateLimiter) procedure(name string) *rate.Limiter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.procedures[name]
}

// Allow reports whether a request for procedure is admitted now, consuming
// its tokens if so. It never waits.
//
// When the procedure bucket is exhausted the global token is not consumed.
func (r *RateLimiter) Allow(procedure string) bool {
	if p := r.procedure(procedure); p != nil {
		if !p.Allow() {
			return false
		}
	}
	return r.global.Allow()
}

// Wait blocks until a request for procedure is admitted or ctx is done.
//
// Returns:
//   - nil if the request was admitted
//   - context error if ctx was cancelled before tokens were available
func (r *RateLimiter) Wait(ctx context.Context, procedure string) error {
	if p := r.procedure(procedure); p != nil {
		if err := p.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit %s: %w", procedure, err)
		}
	}
	if err := r.global.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	return nil
}

// SetLimit updates the global limit in place.
func (r *RateLimiter) SetLimit(l Limit) {
	fresh := newLimiter(l)
	r.global.SetLimit(fresh.Limit())
	r.global.SetBurst(fresh.Burst())
}

// Tokens returns the tokens currently available in the global bucket.
//
// This is primarily useful for monitoring and debugging; the value may
// change immediately after the call.
func (r *RateLimiter) Tokens() float64 {
	return r.global.Tokens()
}
