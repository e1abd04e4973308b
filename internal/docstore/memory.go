package docstore

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store. It backs tests and offline demos.
type MemoryStore struct {
	mu        sync.RWMutex
	docs      map[string]map[string]Document // collection -> id -> doc
	listeners map[string]map[chan struct{}]struct{}
	now       func() time.Time
	seq       time.Duration
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:      make(map[string]map[string]Document),
		listeners: make(map[string]map[chan struct{}]struct{}),
		now:       time.Now,
	}
}

func (s *MemoryStore) Query(_ context.Context, q Query) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryLocked(q), nil
}

func (s *MemoryStore) queryLocked(q Query) []Document {
	out := []Document{}
	for _, d := range s.docs[q.Collection] {
		if q.Matches(d.Data) {
			out = append(out, cloneDoc(d))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *MemoryStore) Add(_ context.Context, collection string, data Fields) (string, error) {
	s.mu.Lock()
	id := uuid.NewString()
	if s.docs[collection] == nil {
		s.docs[collection] = make(map[string]Document)
	}
	// Strictly increasing timestamps keep creation order stable within one clock tick.
	s.seq++
	s.docs[collection][id] = Document{
		ID:        id,
		Data:      maps.Clone(data),
		CreatedAt: s.now().Add(s.seq),
	}
	s.mu.Unlock()

	s.notify(collection)
	return id, nil
}

func (s *MemoryStore) Update(_ context.Context, collection, id string, fields Fields) error {
	s.mu.Lock()
	d, ok := s.docs[collection][id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	merged := maps.Clone(d.Data)
	maps.Copy(merged, fields)
	d.Data = merged
	s.docs[collection][id] = d
	s.mu.Unlock()

	s.notify(collection)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	_, ok := s.docs[collection][id]
	delete(s.docs[collection], id)
	s.mu.Unlock()

	if ok {
		s.notify(collection)
	}
	return nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, q Query) (*Subscription, error) {
	changed := make(chan struct{}, 1)
	s.mu.Lock()
	if s.listeners[q.Collection] == nil {
		s.listeners[q.Collection] = make(map[chan struct{}]struct{})
	}
	s.listeners[q.Collection][changed] = struct{}{}
	s.mu.Unlock()

	return NewSubscription(ctx, func(ctx context.Context, emit func(Snapshot) bool) error {
		defer func() {
			s.mu.Lock()
			delete(s.listeners[q.Collection], changed)
			s.mu.Unlock()
		}()

		for {
			s.mu.RLock()
			snap := Snapshot{Docs: s.queryLocked(q)}
			s.mu.RUnlock()
			if !emit(snap) {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			case <-changed:
			}
		}
	}), nil
}

func (s *MemoryStore) notify(collection string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for ch := range s.listeners[collection] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func cloneDoc(d Document) Document {
	d.Data = maps.Clone(d.Data)
	return d
}
