package remotestore

import (
	"sync"

	"bookshelf/internal/book"
	"bookshelf/internal/docstore"
)

// Subscription yields the owner's full library after every remote change.
type Subscription struct {
	inner *docstore.Subscription
	books chan []book.Book
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func newSubscription(inner *docstore.Subscription) *Subscription {
	s := &Subscription{
		inner: inner,
		books: make(chan []book.Book),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Subscription) run() {
	defer close(s.done)
	defer close(s.books)
	for {
		select {
		case <-s.stop:
			return
		case snap, ok := <-s.inner.Snapshots():
			if !ok {
				return
			}
			select {
			case s.books <- docsToBooks(snap.Docs):
			case <-s.stop:
				return
			}
		}
	}
}

// Books returns the snapshot channel; it closes when the subscription ends.
func (s *Subscription) Books() <-chan []book.Book {
	return s.books
}

// Cancel releases the subscription. No snapshot is delivered after it
// returns.
func (s *Subscription) Cancel() {
	s.once.Do(func() { close(s.stop) })
	s.inner.Cancel()
	<-s.done
}

// Err reports why the subscription ended on its own, if it did.
func (s *Subscription) Err() error {
	return s.inner.Err()
}
