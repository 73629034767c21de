// Package location models the device location provider as a push-based,
// cancelable stream of samples.
package location

import (
	"context"

	"backend-carbondrive/internal/movement"
)

type constError string

func (e constError) Error() string { return string(e) }

const (
	// ErrLocationUnavailable means the provider cannot deliver samples at all.
	ErrLocationUnavailable = constError("location unavailable")

	// ErrNoFix means the provider is watchable but has no current position yet.
	ErrNoFix = constError("no current fix")

	// ErrClosed is returned when pushing into a canceled feed.
	ErrClosed = constError("location feed closed")
)

// Source is a location provider.
type Source interface {
	// CurrentFix returns the latest known position, or ErrNoFix.
	CurrentFix(ctx context.Context) (movement.GeoSample, error)
	// Watch starts delivering samples until the subscription is canceled.
	Watch(ctx context.Context) (Subscription, error)
}

// Subscription delivers samples in arrival order. Cancel is idempotent and
// closes the Samples channel.
type Subscription interface {
	Samples() <-chan movement.GeoSample
	Cancel()
}
