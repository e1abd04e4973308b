package localstore

import (
	"context"
	"errors"
	"testing"

	"bookshelf/internal/book"
	"bookshelf/internal/kv"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdapter_RoundTrip(t *testing.T) {
	ctx := context.Background()
	cases := map[string][]book.Book{
		"empty": {},
		"ordered": {
			{Title: "Dune", Author: "Herbert", Pages: "412"},
			{Title: "Emma", Author: "Austen", Pages: "474", IsRead: true},
			{Title: "Beloved", Author: "Morrison", Pages: "324"},
		},
	}

	for name, books := range cases {
		t.Run(name, func(t *testing.T) {
			a := New(kv.NewMemoryStore())
			c := book.NewCollection(books...)

			require.NoError(t, a.Save(ctx, c))
			restored, err := a.Restore(ctx)
			require.NoError(t, err)

			if diff := cmp.Diff(c.Books(), restored.Books()); diff != "" {
				t.Fatalf("round trip mismatch (-saved +restored):\n%s", diff)
			}
		})
	}
}

func TestAdapter_SaveWritesJSONArray(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	a := New(store)

	require.NoError(t, a.Save(ctx, book.NewCollection()))
	raw, err := store.Get(ctx, Key)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))

	require.NoError(t, a.Save(ctx, book.NewCollection(book.Book{Title: "Dune", Author: "Herbert", Pages: "412"})))
	raw, err = store.Get(ctx, Key)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"title":"Dune","author":"Herbert","pages":"412","isRead":false}]`, string(raw))
}

func TestAdapter_Restore(t *testing.T) {
	ctx := context.Background()

	t.Run("missing key gives empty collection", func(t *testing.T) {
		c, err := New(kv.NewMemoryStore()).Restore(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, c.Len())
	})

	t.Run("stored null gives empty collection", func(t *testing.T) {
		store := kv.NewMemoryStore()
		require.NoError(t, store.Set(ctx, Key, []byte("null")))

		c, err := New(store).Restore(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, c.Len())
	})

	t.Run("partial records get defaults", func(t *testing.T) {
		store := kv.NewMemoryStore()
		require.NoError(t, store.Set(ctx, Key, []byte(`[{"title":"Dune","pages":412}]`)))

		c, err := New(store).Restore(ctx)
		require.NoError(t, err)
		assert.Equal(t, []book.Book{{Title: "Dune", Author: "Unknown", Pages: "412"}}, c.Books())
	})

	t.Run("malformed JSON is an error", func(t *testing.T) {
		store := kv.NewMemoryStore()
		require.NoError(t, store.Set(ctx, Key, []byte(`[{"title":`)))

		_, err := New(store).Restore(ctx)
		assert.Error(t, err)
	})
}

type failingStore struct {
	kv.Store
	err error
}

func (f failingStore) Set(context.Context, string, []byte) error { return f.err }

func TestAdapter_SavePropagatesStoreError(t *testing.T) {
	quota := errors.New("quota exceeded")
	a := New(failingStore{Store: kv.NewMemoryStore(), err: quota})

	err := a.Save(context.Background(), book.NewCollection(book.Book{Title: "A"}))
	assert.ErrorIs(t, err, quota)
}

func TestAdapter_WatchUnsupported(t *testing.T) {
	_, ok, err := New(kv.NewMemoryStore()).Watch(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}
