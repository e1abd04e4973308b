package user

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"bookshelf/internal/httpx"
	"bookshelf/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPHandler_RegisterUser(t *testing.T) {
	handler := NewHTTPHandler(NewService(NewMemoryRepo()))
	body := map[string]string{
		"email":    "reader@example.com",
		"username": "reader",
		"password": "Test123!@#",
	}

	t.Run("created", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.RegisterUser(w, testutil.NewRequest(http.MethodPost, "/users/register", body))

		res := testutil.RecordHTTPResponse(w)
		assert.Equal(t, http.StatusCreated, res.Code)
		data := res.Body["data"].(map[string]any)
		assert.Equal(t, "reader@example.com", data["email"])
		assert.NotContains(t, data, "password_hash")
	})

	t.Run("duplicate email", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.RegisterUser(w, testutil.NewRequest(http.MethodPost, "/users/register", body))

		res := testutil.RecordHTTPResponse(w)
		assert.Equal(t, http.StatusConflict, res.Code)
		assert.Equal(t, "ALREADY_EXISTS", testutil.ErrorCode(res))
	})

	t.Run("weak password", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.RegisterUser(w, testutil.NewRequest(http.MethodPost, "/users/register", map[string]string{
			"email":    "other@example.com",
			"username": "other",
			"password": "weak",
		}))

		res := testutil.RecordHTTPResponse(w)
		assert.Equal(t, http.StatusBadRequest, res.Code)
		assert.Equal(t, "VALIDATION_ERROR", testutil.ErrorCode(res))
	})
}

func TestHTTPHandler_GetCurrentUser(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	handler := NewHTTPHandler(svc)
	u, err := svc.Register(context.Background(), "reader@example.com", "reader", "Test123!@#")
	require.NoError(t, err)

	t.Run("authenticated", func(t *testing.T) {
		r := testutil.NewRequest(http.MethodGet, "/me", nil)
		r = r.WithContext(httpx.ContextWithUser(r.Context(), u.ID, "jti"))
		w := httptest.NewRecorder()

		handler.GetCurrentUser(w, r)

		res := testutil.RecordHTTPResponse(w)
		assert.Equal(t, http.StatusOK, res.Code)
		assert.Equal(t, "reader", res.Body["data"].(map[string]any)["username"])
	})

	t.Run("anonymous", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.GetCurrentUser(w, testutil.NewRequest(http.MethodGet, "/me", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
