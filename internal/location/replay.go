package location

import (
	"context"
	"sync"

	"backend-carbondrive/internal/movement"
)

// Replay plays back a recorded track. The first sample is the current fix;
// the rest are delivered by Watch in order, after which the channel closes.
type Replay struct {
	samples []movement.GeoSample
}

func NewReplay(samples []movement.GeoSample) *Replay {
	return &Replay{samples: append([]movement.GeoSample(nil), samples...)}
}

func (r *Replay) CurrentFix(_ context.Context) (movement.GeoSample, error) {
	if len(r.samples) == 0 {
		return movement.GeoSample{}, ErrNoFix
	}
	return r.samples[0], nil
}

func (r *Replay) Watch(ctx context.Context) (Subscription, error) {
	if len(r.samples) == 0 {
		return nil, ErrLocationUnavailable
	}
	sub := &replaySubscription{
		out:  make(chan movement.GeoSample),
		done: make(chan struct{}),
	}
	go sub.play(ctx, r.samples[1:])
	return sub, nil
}

type replaySubscription struct {
	out  chan movement.GeoSample
	done chan struct{}
	once sync.Once
}

func (s *replaySubscription) Samples() <-chan movement.GeoSample { return s.out }

func (s *replaySubscription) Cancel() {
	s.once.Do(func() { close(s.done) })
}

func (s *replaySubscription) play(ctx context.Context, samples []movement.GeoSample) {
	defer close(s.out)
	for _, sample := range samples {
		select {
		case s.out <- sample:
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}
