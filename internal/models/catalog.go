package models

// Catalog сопоставляет отображаемые имена книгам и помнит порядок вставки:
// "первое совпадение" всегда первый файл листинга.
type Catalog struct {
	entries []BookEntry
	index   map[string]int
}

func NewCatalog() *Catalog {
	return &Catalog{index: make(map[string]int)}
}

// Put сохраняет книгу. Повторное имя заменяет прежнее значение,
// но позиция остается прежней.
func (c *Catalog) Put(entry BookEntry) {
	if i, ok := c.index[entry.DisplayName]; ok {
		c.entries[i] = entry
		return
	}
	c.index[entry.DisplayName] = len(c.entries)
	c.entries = append(c.entries, entry)
}

func (c *Catalog) Get(displayName string) (BookEntry, bool) {
	if c == nil {
		return BookEntry{}, false
	}
	i, ok := c.index[displayName]
	if !ok {
		return BookEntry{}, false
	}
	return c.entries[i], true
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Entries возвращает копию книг в порядке вставки.
func (c *Catalog) Entries() []BookEntry {
	if c == nil {
		return nil
	}
	out := make([]BookEntry, len(c.entries))
	copy(out, c.entries)
	return out
}
