package library

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"bookshelf/internal/book"
	"bookshelf/internal/httpx"

	"go.uber.org/zap"
)

const maxPageSize = 100

type HTTPHandler struct {
	service *Service
	logger  *zap.Logger
}

func NewHTTPHandler(service *Service, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{service: service, logger: logger}
}

type addBookReq struct {
	Title  string  `json:"title" validate:"notblank"`
	Author *string `json:"author"`
	Pages  *string `json:"pages"`
	IsRead bool    `json:"isRead"`
}

// book applies defaults to the fields the request left out.
func (req addBookReq) book() book.Book {
	author, pages := book.DefaultAuthor, book.DefaultPages
	if req.Author != nil {
		author = *req.Author
	}
	if req.Pages != nil {
		pages = *req.Pages
	}
	return book.New(req.Title, author, pages, req.IsRead)
}

func (h *HTTPHandler) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	ownerID := httpx.UserIDFrom(r)
	if ownerID == "" {
		httpx.JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return "", false
	}
	return ownerID, true
}

func (h *HTTPHandler) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Error("library request failed",
		zap.String("op", op),
		zap.String("request_id", httpx.RequestIDFrom(r)),
		zap.Error(err),
	)
	httpx.JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
}

// List handles GET /books
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	limit := 0
	if s := query.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxPageSize {
			httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", []httpx.ErrorDetail{
				{Field: "limit", Message: fmt.Sprintf("limit must be between 1 and %d", maxPageSize)},
			})
			return
		}
		limit = n
	}

	books, err := h.service.List(r.Context(), ownerID)
	if err != nil {
		h.internalError(w, r, "list", err)
		return
	}

	page, next, err := paginate(books, query.Get("cursor"), limit)
	if err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "INVALID_CURSOR", "Invalid cursor", nil)
		return
	}

	meta := map[string]any{"total": len(books)}
	if limit > 0 {
		meta["limit"] = limit
	}
	if next != "" {
		meta["next_cursor"] = next
	}
	httpx.JSONSuccess(w, r, page, meta)
}

// Add handles POST /books
func (h *HTTPHandler) Add(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req addBookReq
	if !httpx.DecodeAndValidate(w, r, &req) {
		return
	}

	b := req.book()
	if err := h.service.Add(r.Context(), ownerID, b); err != nil {
		if errors.Is(err, ErrDuplicateTitle) {
			httpx.JSONError(w, r, http.StatusConflict, "ALREADY_EXISTS", "This book already exists in your library", nil)
			return
		}
		h.internalError(w, r, "add", err)
		return
	}

	httpx.JSONCreated(w, r, b)
}

// ToggleRead handles PATCH /books/{title}/read
func (h *HTTPHandler) ToggleRead(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}

	updated, found, err := h.service.ToggleRead(r.Context(), ownerID, r.PathValue("title"))
	if err != nil {
		h.internalError(w, r, "toggle_read", err)
		return
	}
	if !found {
		httpx.JSONNoContent(w)
		return
	}

	httpx.JSONSuccess(w, r, updated, nil)
}

// Remove handles DELETE /books/{title}
func (h *HTTPHandler) Remove(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}

	if err := h.service.Remove(r.Context(), ownerID, r.PathValue("title")); err != nil {
		h.internalError(w, r, "remove", err)
		return
	}

	httpx.JSONNoContent(w)
}

// Stream handles GET /books/stream as Server-Sent Events. Every event carries
// the owner's full library.
func (h *HTTPHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Streaming unsupported", nil)
		return
	}

	sub, err := h.service.Watch(r.Context(), ownerID)
	if err != nil {
		h.internalError(w, r, "stream", err)
		return
	}
	defer sub.Cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case books, ok := <-sub.Books():
			if !ok {
				if err := sub.Err(); err != nil {
					h.logger.Warn("library stream ended", zap.String("owner_id", ownerID), zap.Error(err))
				}
				return
			}
			payload, err := json.Marshal(books)
			if err != nil {
				h.logger.Error("encode library snapshot", zap.Error(err))
				return
			}
			if _, err := fmt.Fprintf(w, "event: library\ndata: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// Routes registers the library endpoints on mux behind auth.
func (h *HTTPHandler) Routes(mux *http.ServeMux, auth func(http.Handler) http.Handler) {
	mux.Handle("GET /books", auth(http.HandlerFunc(h.List)))
	mux.Handle("POST /books", auth(http.HandlerFunc(h.Add)))
	mux.Handle("GET /books/stream", auth(http.HandlerFunc(h.Stream)))
	mux.Handle("PATCH /books/{title}/read", auth(http.HandlerFunc(h.ToggleRead)))
	mux.Handle("DELETE /books/{title}", auth(http.HandlerFunc(h.Remove)))
}
