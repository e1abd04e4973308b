// Package remotestore maps a user's library onto the shared document store.
package remotestore

import (
	"context"
	"errors"

	"bookshelf/internal/book"
	"bookshelf/internal/docstore"

	"go.uber.org/zap"
)

// Collection is the document collection holding every user's books.
const Collection = "books"

// Document field names.
const (
	FieldOwnerID = "ownerId"
	FieldTitle   = "title"
	FieldIsRead  = "isRead"
)

var (
	// ErrNotFound is returned when no document of the owner has the title.
	ErrNotFound = errors.New("book not found")
	// ErrNoOwner is returned when an adapter is built without an identity.
	ErrNoOwner = errors.New("remotestore: owner id required")
)

// Adapter scopes every document operation to one owner.
type Adapter struct {
	store   docstore.Store
	ownerID string
	logger  *zap.Logger
}

func New(store docstore.Store, ownerID string, logger *zap.Logger) (*Adapter, error) {
	if ownerID == "" {
		return nil, ErrNoOwner
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{store: store, ownerID: ownerID, logger: logger}, nil
}

func (a *Adapter) OwnerID() string {
	return a.ownerID
}

func (a *Adapter) ownerQuery(filters ...docstore.Filter) docstore.Query {
	return docstore.Query{
		Collection: Collection,
		Filters:    append([]docstore.Filter{docstore.Where(FieldOwnerID, a.ownerID)}, filters...),
	}
}

// List returns the owner's books in creation order.
func (a *Adapter) List(ctx context.Context) ([]book.Book, error) {
	docs, err := a.store.Query(ctx, a.ownerQuery())
	if err != nil {
		return nil, err
	}
	return docsToBooks(docs), nil
}

// Create stores b as a new document. Duplicate titles are not checked here;
// callers check their collection first.
func (a *Adapter) Create(ctx context.Context, b book.Book) error {
	fields := docstore.Fields(b.Fields())
	fields[FieldOwnerID] = a.ownerID
	_, err := a.store.Add(ctx, Collection, fields)
	return err
}

// Delete removes the owner's document with the given title.
func (a *Adapter) Delete(ctx context.Context, title string) error {
	id, err := a.lookupID(ctx, title)
	if err != nil {
		return err
	}
	return a.store.Delete(ctx, Collection, id)
}

// Update patches fields of the owner's document with the given title.
func (a *Adapter) Update(ctx context.Context, title string, fields docstore.Fields) error {
	id, err := a.lookupID(ctx, title)
	if err != nil {
		return err
	}
	err = a.store.Update(ctx, Collection, id, fields)
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// SetRead sets the read status of the book with the given title.
func (a *Adapter) SetRead(ctx context.Context, title string, isRead bool) error {
	return a.Update(ctx, title, docstore.Fields{FieldIsRead: isRead})
}

// lookupID resolves a title to a document id. When several documents share
// the title the oldest wins, matching what a subscribed collection shows.
func (a *Adapter) lookupID(ctx context.Context, title string) (string, error) {
	docs, err := a.store.Query(ctx, a.ownerQuery(docstore.Where(FieldTitle, title)))
	if err != nil {
		return "", err
	}
	switch len(docs) {
	case 0:
		return "", ErrNotFound
	case 1:
	default:
		a.logger.Warn("several documents share a title, using the oldest",
			zap.String("owner_id", a.ownerID),
			zap.String("title", title),
			zap.Int("matches", len(docs)),
		)
	}
	return docs[0].ID, nil
}

// Subscribe opens a live view of the owner's books.
func (a *Adapter) Subscribe(ctx context.Context) (*Subscription, error) {
	sub, err := a.store.Subscribe(ctx, a.ownerQuery())
	if err != nil {
		return nil, err
	}
	return newSubscription(sub), nil
}

func docsToBooks(docs []docstore.Document) []book.Book {
	books := make([]book.Book, 0, len(docs))
	for _, d := range docs {
		books = append(books, book.FromFields(d.Data))
	}
	return books
}
