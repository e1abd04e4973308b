package library

import (
	"context"
	"errors"

	"bookshelf/internal/book"
	"bookshelf/internal/docstore"
	"bookshelf/internal/remotestore"

	"go.uber.org/zap"
)

// Service serves remote libraries to many owners at once. Each call reads the
// owner's current documents; it keeps no collection of its own.
type Service struct {
	store  docstore.Store
	logger *zap.Logger
}

func NewService(store docstore.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

func (s *Service) adapter(ownerID string) (*remotestore.Adapter, error) {
	return remotestore.New(s.store, ownerID, s.logger)
}

// List returns the owner's library in creation order, one record per title.
func (s *Service) List(ctx context.Context, ownerID string) ([]book.Book, error) {
	a, err := s.adapter(ownerID)
	if err != nil {
		return nil, err
	}
	books, err := a.List(ctx)
	if err != nil {
		return nil, err
	}
	return book.NewCollection(books...).Books(), nil
}

// Add stores b unless the owner already has that title.
func (s *Service) Add(ctx context.Context, ownerID string, b book.Book) error {
	a, err := s.adapter(ownerID)
	if err != nil {
		return err
	}
	books, err := a.List(ctx)
	if err != nil {
		return err
	}
	if book.NewCollection(books...).Contains(b.Title) {
		return ErrDuplicateTitle
	}
	return a.Create(ctx, b)
}

// Remove deletes the owner's book with title. Unknown titles are ignored.
func (s *Service) Remove(ctx context.Context, ownerID, title string) error {
	a, err := s.adapter(ownerID)
	if err != nil {
		return err
	}
	if err := a.Delete(ctx, title); err != nil && !errors.Is(err, remotestore.ErrNotFound) {
		return err
	}
	return nil
}

// ToggleRead flips the read status of title and returns the updated record.
// found is false when the owner has no such book.
func (s *Service) ToggleRead(ctx context.Context, ownerID, title string) (updated book.Book, found bool, err error) {
	a, err := s.adapter(ownerID)
	if err != nil {
		return book.Book{}, false, err
	}
	books, err := a.List(ctx)
	if err != nil {
		return book.Book{}, false, err
	}
	current, ok := book.NewCollection(books...).Find(title)
	if !ok {
		return book.Book{}, false, nil
	}
	if err := a.SetRead(ctx, title, !current.IsRead); err != nil {
		if errors.Is(err, remotestore.ErrNotFound) {
			return book.Book{}, false, nil
		}
		return book.Book{}, false, err
	}
	current.IsRead = !current.IsRead
	return current, true, nil
}

// Watch streams the owner's full library after every change until ctx is
// done or the subscription is cancelled.
func (s *Service) Watch(ctx context.Context, ownerID string) (*remotestore.Subscription, error) {
	a, err := s.adapter(ownerID)
	if err != nil {
		return nil, err
	}
	return a.Subscribe(ctx)
}
