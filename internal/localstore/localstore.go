// Package localstore persists a book collection to a local key-value store.
package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"bookshelf/internal/book"
	"bookshelf/internal/kv"
)

// Key is the store key holding the serialized library.
const Key = "library"

// Adapter saves and restores the whole collection as one JSON array.
type Adapter struct {
	store kv.Store
}

func New(store kv.Store) *Adapter {
	return &Adapter{store: store}
}

// Save overwrites the stored library with every record of c, in order.
func (a *Adapter) Save(ctx context.Context, c *book.Collection) error {
	books := c.Books()
	data, err := json.Marshal(books)
	if err != nil {
		return fmt.Errorf("localstore: encode: %w", err)
	}
	return a.store.Set(ctx, Key, data)
}

// Restore loads the stored library. A missing value yields an empty
// collection; a corrupt value is an error.
func (a *Adapter) Restore(ctx context.Context) (*book.Collection, error) {
	data, err := a.store.Get(ctx, Key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return book.NewCollection(), nil
		}
		return nil, err
	}

	var books []book.Book
	if err := json.Unmarshal(data, &books); err != nil {
		return nil, fmt.Errorf("localstore: decode: %w", err)
	}
	return book.NewCollection(books...), nil
}

// Watch forwards change notifications when the underlying store supports
// them. ok is false otherwise.
func (a *Adapter) Watch(ctx context.Context) (changes <-chan struct{}, ok bool, err error) {
	w, supported := a.store.(kv.Watcher)
	if !supported {
		return nil, false, nil
	}
	changes, err = w.Watch(ctx, Key)
	if err != nil {
		return nil, true, err
	}
	return changes, true, nil
}
