package book

// Collection is an ordered set of books keyed by title. Lookups are linear
// scans; libraries are user-curated and stay small.
//
// A Collection is not safe for concurrent use.
type Collection struct {
	books []Book
}

// NewCollection returns a collection holding books in order, keeping only the
// first record seen for each title.
func NewCollection(books ...Book) *Collection {
	c := &Collection{}
	c.Replace(books)
	return c
}

// Add appends b unless a record with the same title exists. It reports whether
// b was added.
func (c *Collection) Add(b Book) bool {
	if c.Contains(b.Title) {
		return false
	}
	c.books = append(c.books, b)
	return true
}

// Remove deletes the record with the given title, keeping the relative order
// of the rest. It reports whether anything was removed.
func (c *Collection) Remove(title string) bool {
	i := c.index(title)
	if i < 0 {
		return false
	}
	c.books = append(c.books[:i], c.books[i+1:]...)
	return true
}

// Find returns the record with the given title.
func (c *Collection) Find(title string) (Book, bool) {
	i := c.index(title)
	if i < 0 {
		return Book{}, false
	}
	return c.books[i], true
}

// Contains reports whether a record with the given title exists.
func (c *Collection) Contains(title string) bool {
	return c.index(title) >= 0
}

// ToggleRead flips the read status of the record with the given title in
// place. It reports whether the record was found.
func (c *Collection) ToggleRead(title string) bool {
	i := c.index(title)
	if i < 0 {
		return false
	}
	c.books[i].IsRead = !c.books[i].IsRead
	return true
}

// Replace discards the current content and loads books in order. Repeated
// titles keep their first occurrence.
func (c *Collection) Replace(books []Book) {
	c.books = make([]Book, 0, len(books))
	for _, b := range books {
		c.Add(b)
	}
}

// Books returns a copy of the records in order.
func (c *Collection) Books() []Book {
	out := make([]Book, len(c.books))
	copy(out, c.books)
	return out
}

func (c *Collection) Len() int {
	return len(c.books)
}

func (c *Collection) index(title string) int {
	for i, b := range c.books {
		if b.Title == title {
			return i
		}
	}
	return -1
}
