// Package library holds the running library session: the one in-memory
// collection, the active persistence mode and the wiring between them.
package library

import (
	"context"
	"errors"

	"bookshelf/internal/book"
	"bookshelf/internal/docstore"
	"bookshelf/internal/remotestore"

	"go.uber.org/zap"
)

// ErrDuplicateTitle rejects adding a book whose title is already present.
var ErrDuplicateTitle = errors.New("this book already exists in your library")

// Mode selects where changes are persisted.
type Mode int

const (
	// ModeLocal persists to the device store; no identity is signed in.
	ModeLocal Mode = iota
	// ModeRemote mirrors the signed-in owner's remote documents.
	ModeRemote
)

func (m Mode) String() string {
	switch m {
	case ModeLocal:
		return "local"
	case ModeRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// LocalStore saves and restores the whole collection on the device.
type LocalStore interface {
	Save(ctx context.Context, c *book.Collection) error
	Restore(ctx context.Context) (*book.Collection, error)
}

// localWatcher is implemented by local stores that observe outside writes.
type localWatcher interface {
	Watch(ctx context.Context) (<-chan struct{}, bool, error)
}

// Remote is the owner-scoped remote persistence used in ModeRemote.
type Remote interface {
	Create(ctx context.Context, b book.Book) error
	Delete(ctx context.Context, title string) error
	SetRead(ctx context.Context, title string, isRead bool) error
	Subscribe(ctx context.Context) (*remotestore.Subscription, error)
}

// RemoteFactory builds the Remote for a signed-in owner.
type RemoteFactory func(ownerID string) (Remote, error)

// RemoteFromStore returns a factory of remotestore adapters over store.
func RemoteFromStore(store docstore.Store, logger *zap.Logger) RemoteFactory {
	return func(ownerID string) (Remote, error) {
		return remotestore.New(store, ownerID, logger)
	}
}
