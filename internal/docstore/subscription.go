package docstore

import (
	"context"
)

// Subscription delivers full snapshots of a query until cancelled. The first
// snapshot reflects the state at subscription time; every later one follows a
// change to the collection.
type Subscription struct {
	snapshots chan Snapshot
	cancel    context.CancelFunc
	done      chan struct{}
	err       error
}

// NewSubscription runs produce on its own goroutine. produce publishes with
// emit, which returns false once the subscription is cancelled, and returns
// when ctx is done or on failure.
func NewSubscription(parent context.Context, produce func(ctx context.Context, emit func(Snapshot) bool) error) *Subscription {
	ctx, cancel := context.WithCancel(parent)
	s := &Subscription{
		snapshots: make(chan Snapshot),
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	emit := func(snap Snapshot) bool {
		select {
		case s.snapshots <- snap:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		err := produce(ctx, emit)
		if ctx.Err() == nil {
			s.err = err
		}
		cancel()
		close(s.done)
		close(s.snapshots)
	}()
	return s
}

// Snapshots returns the delivery channel. It is closed after the producer
// stops.
func (s *Subscription) Snapshots() <-chan Snapshot {
	return s.snapshots
}

// Cancel stops the subscription and waits for the producer to exit. No
// snapshot is delivered after Cancel returns. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.cancel()
	<-s.done
}

// Done is closed once the producer has stopped.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err returns the failure that stopped the producer, or nil if it is still
// running or was cancelled.
func (s *Subscription) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}
