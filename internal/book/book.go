package book

import (
	"encoding/json"
	"strconv"
)

// Defaults applied to any field a record is built without.
const (
	DefaultTitle  = "Unknown"
	DefaultAuthor = "Unknown"
	DefaultPages  = "0"
)

// Book represents a single entry in a user's library. Title is the identity key.
type Book struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Pages  string `json:"pages"`
	IsRead bool   `json:"isRead"`
}

// New builds a record from values the caller has. An empty string is a value
// and is kept; defaults belong to fields that are absent, see FromFields.
func New(title, author, pages string, isRead bool) Book {
	return Book{Title: title, Author: author, Pages: pages, IsRead: isRead}
}

// FromFields rebuilds a record from loosely typed data (a stored JSON object or
// a remote document). Missing or wrongly typed fields fall back to defaults.
func FromFields(fields map[string]any) Book {
	b := Book{
		Title:  DefaultTitle,
		Author: DefaultAuthor,
		Pages:  DefaultPages,
	}
	if v, ok := fields["title"].(string); ok {
		b.Title = v
	}
	if v, ok := fields["author"].(string); ok {
		b.Author = v
	}
	switch v := fields["pages"].(type) {
	case string:
		b.Pages = v
	case float64:
		b.Pages = strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		b.Pages = strconv.Itoa(v)
	case int64:
		b.Pages = strconv.FormatInt(v, 10)
	case json.Number:
		b.Pages = v.String()
	}
	if v, ok := fields["isRead"].(bool); ok {
		b.IsRead = v
	}
	return b
}

// Fields returns the record as a document field map.
func (b Book) Fields() map[string]any {
	return map[string]any{
		"title":  b.Title,
		"author": b.Author,
		"pages":  b.Pages,
		"isRead": b.IsRead,
	}
}

// UnmarshalJSON decodes a stored record, applying defaults per field.
func (b *Book) UnmarshalJSON(data []byte) error {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*b = FromFields(fields)
	return nil
}
