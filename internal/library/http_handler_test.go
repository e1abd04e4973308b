package library

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"bookshelf/internal/book"
	"bookshelf/internal/docstore"
	"bookshelf/internal/httpx"
	"bookshelf/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMux(t *testing.T) (*http.ServeMux, *Service) {
	t.Helper()
	svc := NewService(docstore.NewMemoryStore(), nil)
	mux := http.NewServeMux()
	NewHTTPHandler(svc, nil).Routes(mux, httpx.AuthMiddleware(testutil.TestSecret, nil))
	return mux, svc
}

func serve(mux http.Handler, r *http.Request) testutil.RecordResponse {
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	return testutil.RecordHTTPResponse(w)
}

func TestHTTPHandler_Routes(t *testing.T) {
	mux, _ := newTestMux(t)
	token := testutil.GenerateTestToken(testutil.TestSecret, "alice")

	res := serve(mux, testutil.NewRequestWithAuth(http.MethodPost, "/books", map[string]any{
		"title": "Dune", "author": "Herbert", "pages": "412",
	}, token))
	require.Equal(t, http.StatusCreated, res.Code)
	assert.Equal(t, "Dune", res.Body["data"].(map[string]any)["title"])

	res = serve(mux, testutil.NewRequestWithAuth(http.MethodPost, "/books", map[string]any{"title": "Dune"}, token))
	assert.Equal(t, http.StatusConflict, res.Code)
	assert.Equal(t, "ALREADY_EXISTS", testutil.ErrorCode(res))

	res = serve(mux, testutil.NewRequestWithAuth(http.MethodPost, "/books", map[string]any{"title": "Emma"}, token))
	require.Equal(t, http.StatusCreated, res.Code)
	data := res.Body["data"].(map[string]any)
	assert.Equal(t, book.DefaultAuthor, data["author"])
	assert.Equal(t, book.DefaultPages, data["pages"])

	res = serve(mux, testutil.NewRequestWithAuth(http.MethodPost, "/books", map[string]any{
		"title": "Middlemarch", "author": "", "pages": "about 900",
	}, token))
	require.Equal(t, http.StatusCreated, res.Code)
	data = res.Body["data"].(map[string]any)
	assert.Equal(t, "", data["author"])
	assert.Equal(t, "about 900", data["pages"])
	res = serve(mux, testutil.NewRequestWithAuth(http.MethodDelete, "/books/Middlemarch", nil, token))
	require.Equal(t, http.StatusNoContent, res.Code)

	res = serve(mux, testutil.NewRequestWithAuth(http.MethodPatch, "/books/Dune/read", nil, token))
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, true, res.Body["data"].(map[string]any)["isRead"])

	res = serve(mux, testutil.NewRequestWithAuth(http.MethodPatch, "/books/Nope/read", nil, token))
	assert.Equal(t, http.StatusNoContent, res.Code)

	res = serve(mux, testutil.NewRequestWithAuth(http.MethodDelete, "/books/Emma", nil, token))
	assert.Equal(t, http.StatusNoContent, res.Code)
	res = serve(mux, testutil.NewRequestWithAuth(http.MethodDelete, "/books/Emma", nil, token))
	assert.Equal(t, http.StatusNoContent, res.Code)

	res = serve(mux, testutil.NewRequestWithAuth(http.MethodGet, "/books", nil, token))
	require.Equal(t, http.StatusOK, res.Code)
	list := res.Body["data"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, "Dune", list[0].(map[string]any)["title"])
	assert.Equal(t, float64(1), res.Body["meta"].(map[string]any)["total"])
}

func TestHTTPHandler_TitleWithSpaces(t *testing.T) {
	mux, svc := newTestMux(t)
	token := testutil.GenerateTestToken(testutil.TestSecret, "alice")
	require.NoError(t, svc.Add(context.Background(), "alice", book.New("The Hobbit", "", "", false)))

	res := serve(mux, testutil.NewRequestWithAuth(http.MethodDelete, "/books/The%20Hobbit", nil, token))
	assert.Equal(t, http.StatusNoContent, res.Code)

	books, err := svc.List(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestHTTPHandler_Validation(t *testing.T) {
	mux, _ := newTestMux(t)
	token := testutil.GenerateTestToken(testutil.TestSecret, "alice")

	tests := map[string]map[string]any{
		"missing title": {"author": "Herbert"},
		"blank title":   {"title": "  "},
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			res := serve(mux, testutil.NewRequestWithAuth(http.MethodPost, "/books", body, token))
			assert.Equal(t, http.StatusBadRequest, res.Code)
			assert.Equal(t, "VALIDATION_ERROR", testutil.ErrorCode(res))
		})
	}
}

func TestHTTPHandler_RequiresToken(t *testing.T) {
	mux, _ := newTestMux(t)

	res := serve(mux, testutil.NewRequest(http.MethodGet, "/books", nil))
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	expired := testutil.GenerateExpiredToken(testutil.TestSecret, "alice")
	res = serve(mux, testutil.NewRequestWithAuth(http.MethodGet, "/books", nil, expired))
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

// streamRecorder is a ResponseWriter safe to read while a handler streams.
type streamRecorder struct {
	mu     sync.Mutex
	header http.Header
	code   int
	body   bytes.Buffer
}

func (s *streamRecorder) Header() http.Header { return s.header }

func (s *streamRecorder) WriteHeader(code int) {
	s.mu.Lock()
	s.code = code
	s.mu.Unlock()
}

func (s *streamRecorder) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.body.Write(b)
}

func (s *streamRecorder) Flush() {}

func (s *streamRecorder) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.body.String()
}

func TestHTTPHandler_Stream(t *testing.T) {
	svc := NewService(docstore.NewMemoryStore(), nil)
	handler := NewHTTPHandler(svc, nil)
	require.NoError(t, svc.Add(context.Background(), "alice", book.New("Dune", "Herbert", "412", false)))

	ctx, cancel := context.WithCancel(httpx.ContextWithUser(context.Background(), "alice", "jti"))
	defer cancel()
	rec := &streamRecorder{header: http.Header{}}
	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.Stream(rec, httptest.NewRequest(http.MethodGet, "/books/stream", nil).WithContext(ctx))
	}()

	waitFor := func(substr string) {
		t.Helper()
		require.Eventually(t, func() bool { return strings.Contains(rec.String(), substr) }, 2*time.Second, 5*time.Millisecond)
	}

	waitFor(`"title":"Dune"`)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.String(), "event: library\ndata: ["))

	require.NoError(t, svc.Add(context.Background(), "alice", book.New("Emma", "", "", false)))
	waitFor(`"title":"Emma"`)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop after the client went away")
	}
}

func TestHTTPHandler_ListPagination(t *testing.T) {
	mux, svc := newTestMux(t)
	token := testutil.GenerateTestToken(testutil.TestSecret, "alice")
	for _, title := range []string{"A", "B", "C"} {
		require.NoError(t, svc.Add(context.Background(), "alice", book.New(title, "", "", false)))
	}

	res := serve(mux, testutil.NewRequestWithAuth(http.MethodGet, "/books?limit=2", nil, token))
	require.Equal(t, http.StatusOK, res.Code)
	assert.Len(t, res.Body["data"], 2)
	meta := res.Body["meta"].(map[string]any)
	assert.EqualValues(t, 3, meta["total"])
	next, _ := meta["next_cursor"].(string)
	require.NotEmpty(t, next)

	res = serve(mux, testutil.NewRequestWithAuth(http.MethodGet, "/books?limit=2&cursor="+next, nil, token))
	require.Equal(t, http.StatusOK, res.Code)
	data := res.Body["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "C", data[0].(map[string]any)["title"])
	assert.NotContains(t, res.Body["meta"], "next_cursor")

	res = serve(mux, testutil.NewRequestWithAuth(http.MethodGet, "/books?limit=0", nil, token))
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "VALIDATION_ERROR", testutil.ErrorCode(res))

	res = serve(mux, testutil.NewRequestWithAuth(http.MethodGet, "/books?cursor=%21%21", nil, token))
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "INVALID_CURSOR", testutil.ErrorCode(res))
}
