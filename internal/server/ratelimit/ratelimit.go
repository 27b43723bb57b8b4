// Package ratelimit provides fixed-window request limiters keyed by client
// identity. Two implementations exist: an in-process one for single-node
// deployments and a Redis-backed one for fleets behind a load balancer.
package ratelimit

import "context"

// Limiter reports whether the caller identified by key may proceed. A false
// result means the window budget is spent. Implementations count the call
// regardless of the outcome.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}
