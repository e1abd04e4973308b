package library

import (
	"encoding/base64"
	"encoding/json"
	"errors"

	"bookshelf/internal/book"
)

// ErrInvalidCursor rejects a cursor that does not decode or whose book is gone.
var ErrInvalidCursor = errors.New("library: invalid cursor")

// cursorData marks the last book of the previous page. Titles are unique
// within a library, so the title alone locates the position.
type cursorData struct {
	AfterTitle string `json:"after_title,omitempty"`
}

func encodeCursor(data cursorData) string {
	if data.AfterTitle == "" {
		return ""
	}
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(jsonBytes)
}

func decodeCursor(cursor string) (cursorData, error) {
	if cursor == "" {
		return cursorData{}, nil
	}
	decoded, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return cursorData{}, ErrInvalidCursor
	}
	var data cursorData
	if err := json.Unmarshal(decoded, &data); err != nil {
		return cursorData{}, ErrInvalidCursor
	}
	return data, nil
}

// paginate returns up to limit books following cursor, and the cursor of the
// next page or "" on the last one. limit <= 0 returns everything after cursor.
func paginate(books []book.Book, cursor string, limit int) ([]book.Book, string, error) {
	data, err := decodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}

	start := 0
	if data.AfterTitle != "" {
		start = -1
		for i, b := range books {
			if b.Title == data.AfterTitle {
				start = i + 1
				break
			}
		}
		if start < 0 {
			return nil, "", ErrInvalidCursor
		}
	}

	rest := books[start:]
	if limit <= 0 || limit >= len(rest) {
		return rest, "", nil
	}
	page := rest[:limit]
	return page, encodeCursor(cursorData{AfterTitle: page[len(page)-1].Title}), nil
}
