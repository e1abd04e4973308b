package library

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"bookshelf/internal/book"
	"bookshelf/internal/remotestore"

	"go.uber.org/zap"
)

// Options configures a Session.
type Options struct {
	// OnChange receives the full ordered library after every change. Calls
	// never overlap and arrive in the order the snapshots were taken; a
	// snapshot older than one already delivered is dropped. It runs outside
	// the session lock and must not call back into the session synchronously.
	OnChange func([]book.Book)
	Logger   *zap.Logger
}

// Session owns the single collection rendered by a user interface and routes
// every change to the persistence backend of the current mode.
type Session struct {
	local     LocalStore
	newRemote RemoteFactory
	onChange  func([]book.Book)
	logger    *zap.Logger

	// transition serializes SignIn, SignOut and Close.
	transition sync.Mutex

	mu      sync.Mutex
	books   *book.Collection
	mode    Mode
	ownerID string
	remote  Remote
	sub     *remotestore.Subscription
	pump    chan struct{}
	// version counts snapshots taken under mu.
	version uint64

	// notifyMu serializes OnChange; delivered is the last version passed to it.
	notifyMu  sync.Mutex
	delivered uint64

	baseCtx    context.Context
	baseCancel context.CancelFunc
	watchDone  chan struct{}
}

// NewSession returns a session in ModeLocal with an empty collection. Call
// Open to load the local library. newRemote may be nil when no remote store is
// configured; SignIn then fails.
func NewSession(local LocalStore, newRemote RemoteFactory, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		local:      local,
		newRemote:  newRemote,
		onChange:   opts.OnChange,
		logger:     logger,
		books:      book.NewCollection(),
		mode:       ModeLocal,
		baseCtx:    ctx,
		baseCancel: cancel,
	}
}

// ErrNoRemote is returned by SignIn when the session has no remote store.
var ErrNoRemote = errors.New("library: remote store not configured")

// Open restores the local library and, when the local store supports it,
// starts reloading on outside changes.
func (s *Session) Open(ctx context.Context) error {
	c, err := s.local.Restore(ctx)
	if err != nil {
		return fmt.Errorf("library: restore local: %w", err)
	}
	s.mu.Lock()
	s.books.Replace(c.Books())
	snapshot, v := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snapshot, v)

	if w, ok := s.local.(localWatcher); ok {
		changes, supported, err := w.Watch(s.baseCtx)
		if err != nil {
			s.logger.Warn("local store watch unavailable", zap.Error(err))
		} else if supported {
			s.watchDone = make(chan struct{})
			go s.watchLocal(changes)
		}
	}
	return nil
}

func (s *Session) watchLocal(changes <-chan struct{}) {
	defer close(s.watchDone)
	for range changes {
		// Restore under the lock so a reload cannot interleave with a Save.
		s.mu.Lock()
		if s.mode != ModeLocal {
			s.mu.Unlock()
			continue
		}
		c, err := s.local.Restore(s.baseCtx)
		if err != nil {
			s.mu.Unlock()
			s.logger.Warn("reload local library", zap.Error(err))
			continue
		}
		s.books.Replace(c.Books())
		snapshot, v := s.snapshotLocked()
		s.mu.Unlock()
		s.logger.Debug("local library reloaded", zap.Int("books", len(snapshot)))
		s.notify(snapshot, v)
	}
}

func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// OwnerID returns the signed-in identity, or "" in ModeLocal.
func (s *Session) OwnerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ownerID
}

// Books returns the current library in display order.
func (s *Session) Books() []book.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.books.Books()
}

func (s *Session) Find(title string) (book.Book, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.books.Find(title)
}

// SignIn switches to ModeRemote for ownerID. It returns once the first remote
// snapshot has replaced the collection. On failure the session is left in
// ModeLocal.
func (s *Session) SignIn(ctx context.Context, ownerID string) error {
	s.transition.Lock()
	defer s.transition.Unlock()

	if s.newRemote == nil {
		return ErrNoRemote
	}
	if s.Mode() == ModeRemote {
		if err := s.signOutLocked(ctx); err != nil {
			return err
		}
	}

	remote, err := s.newRemote(ownerID)
	if err != nil {
		return err
	}
	sub, err := remote.Subscribe(s.baseCtx)
	if err != nil {
		return fmt.Errorf("library: subscribe: %w", err)
	}

	var first []book.Book
	select {
	case books, ok := <-sub.Books():
		if !ok {
			err := sub.Err()
			sub.Cancel()
			if err == nil {
				err = errors.New("library: subscription closed before first snapshot")
			}
			return err
		}
		first = books
	case <-ctx.Done():
		sub.Cancel()
		return ctx.Err()
	}

	s.mu.Lock()
	s.mode = ModeRemote
	s.ownerID = ownerID
	s.remote = remote
	s.sub = sub
	s.pump = make(chan struct{})
	s.books.Replace(first)
	snapshot, v := s.snapshotLocked()
	pump := s.pump
	s.mu.Unlock()

	s.logger.Info("signed in", zap.String("owner_id", ownerID), zap.Int("books", len(snapshot)))
	go s.runPump(sub, pump)
	s.notify(snapshot, v)
	return nil
}

// runPump applies remote snapshots until the subscription ends. Each snapshot
// replaces the whole collection.
func (s *Session) runPump(sub *remotestore.Subscription, done chan struct{}) {
	defer close(done)
	for books := range sub.Books() {
		s.mu.Lock()
		if s.sub != sub {
			s.mu.Unlock()
			return
		}
		s.books.Replace(books)
		snapshot, v := s.snapshotLocked()
		s.mu.Unlock()
		s.notify(snapshot, v)
	}
	if err := sub.Err(); err != nil {
		s.logger.Error("remote subscription ended", zap.Error(err))
	}
}

// SignOut cancels the remote subscription and returns to ModeLocal with the
// device library.
func (s *Session) SignOut(ctx context.Context) error {
	s.transition.Lock()
	defer s.transition.Unlock()
	return s.signOutLocked(ctx)
}

func (s *Session) signOutLocked(ctx context.Context) error {
	owner := s.stopRemote()

	c, err := s.local.Restore(ctx)
	s.mu.Lock()
	if err != nil {
		s.books.Replace(nil)
	} else {
		s.books.Replace(c.Books())
	}
	snapshot, v := s.snapshotLocked()
	s.mu.Unlock()

	if owner != "" {
		s.logger.Info("signed out", zap.String("owner_id", owner))
	}
	s.notify(snapshot, v)
	if err != nil {
		return fmt.Errorf("library: restore local: %w", err)
	}
	return nil
}

// stopRemote cancels any subscription, waits for its pump and resets the
// mode. It returns the previous owner.
func (s *Session) stopRemote() string {
	s.mu.Lock()
	sub, pump, owner := s.sub, s.pump, s.ownerID
	s.sub = nil
	s.pump = nil
	s.remote = nil
	s.ownerID = ""
	s.mode = ModeLocal
	s.mu.Unlock()

	if sub != nil {
		sub.Cancel()
		<-pump
	}
	return owner
}

// AddBook adds b unless its title is present. In ModeLocal the change is
// saved and rendered immediately; in ModeRemote the document is created and
// the subscription brings it back.
func (s *Session) AddBook(ctx context.Context, b book.Book) error {
	s.mu.Lock()
	if s.books.Contains(b.Title) {
		s.mu.Unlock()
		return ErrDuplicateTitle
	}
	if s.mode == ModeRemote {
		remote := s.remote
		s.mu.Unlock()
		return remote.Create(ctx, b)
	}

	s.books.Add(b)
	err := s.local.Save(ctx, s.books)
	snapshot, v := s.snapshotLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(snapshot, v)
	return nil
}

// RemoveBook deletes the book with the given title. Unknown titles are
// ignored.
func (s *Session) RemoveBook(ctx context.Context, title string) error {
	s.mu.Lock()
	if s.mode == ModeRemote {
		remote := s.remote
		s.mu.Unlock()
		if err := remote.Delete(ctx, title); err != nil && !errors.Is(err, remotestore.ErrNotFound) {
			return err
		}
		return nil
	}

	if !s.books.Remove(title) {
		s.mu.Unlock()
		return nil
	}
	err := s.local.Save(ctx, s.books)
	snapshot, v := s.snapshotLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(snapshot, v)
	return nil
}

// ToggleRead flips the read status of the book with the given title. Unknown
// titles are ignored.
func (s *Session) ToggleRead(ctx context.Context, title string) error {
	s.mu.Lock()
	if s.mode == ModeRemote {
		remote := s.remote
		current, ok := s.books.Find(title)
		s.mu.Unlock()
		if !ok {
			return nil
		}
		if err := remote.SetRead(ctx, title, !current.IsRead); err != nil && !errors.Is(err, remotestore.ErrNotFound) {
			return err
		}
		return nil
	}

	if !s.books.ToggleRead(title) {
		s.mu.Unlock()
		return nil
	}
	err := s.local.Save(ctx, s.books)
	snapshot, v := s.snapshotLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(snapshot, v)
	return nil
}

// Close stops the remote subscription and the local watcher.
func (s *Session) Close() {
	s.transition.Lock()
	defer s.transition.Unlock()

	s.stopRemote()
	s.baseCancel()
	if s.watchDone != nil {
		<-s.watchDone
	}
}

// snapshotLocked copies the collection and stamps it. Callers hold s.mu.
func (s *Session) snapshotLocked() ([]book.Book, uint64) {
	s.version++
	return s.books.Books(), s.version
}

// notify passes the snapshot stamped v to OnChange unless a newer one has
// already been delivered.
func (s *Session) notify(books []book.Book, v uint64) {
	if s.onChange == nil {
		return
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if v <= s.delivered {
		return
	}
	s.delivered = v
	s.onChange(books)
}
