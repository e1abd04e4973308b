// Package docstore is a small document database: named collections of JSON
// documents with equality queries, creation-time ordering and live change
// subscriptions.
package docstore

//go:generate mockgen -source=docstore.go -destination=mock_docstore.go -package=docstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when updating a document that does not exist.
var ErrNotFound = errors.New("document not found")

// Fields is the JSON object stored in a document.
type Fields map[string]any

// Document is a stored document. CreatedAt is assigned by the store.
type Document struct {
	ID        string
	Data      Fields
	CreatedAt time.Time
}

// Filter matches documents whose field equals value.
type Filter struct {
	Field string
	Value any
}

// Where is shorthand for a Filter.
func Where(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

// Query selects documents of one collection matching every filter. Results
// are ordered by creation time, oldest first.
type Query struct {
	Collection string
	Filters    []Filter
}

// Matches reports whether data satisfies every filter of q.
func (q Query) Matches(data Fields) bool {
	for _, f := range q.Filters {
		v, ok := data[f.Field]
		if !ok || v != f.Value {
			return false
		}
	}
	return true
}

// Snapshot is the full result set of a subscribed query at one point in time.
type Snapshot struct {
	Docs []Document
}

// Store is the document store contract shared by all backends.
type Store interface {
	Query(ctx context.Context, q Query) ([]Document, error)
	Add(ctx context.Context, collection string, data Fields) (string, error)
	Update(ctx context.Context, collection, id string, fields Fields) error
	Delete(ctx context.Context, collection, id string) error
	Subscribe(ctx context.Context, q Query) (*Subscription, error)
}
