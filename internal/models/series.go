package models

// Series описывает один заголовок документа серий со строками книг.
type Series struct {
	Title string
	Books []string
}

// SeriesIndex хранит серии в порядке первого появления в документе.
type SeriesIndex struct {
	order []string
	books map[string][]string
}

func NewSeriesIndex() *SeriesIndex {
	return &SeriesIndex{books: make(map[string][]string)}
}

// Start начинает (или начинает заново) серию. Повтор очищает список книг,
// но позиция первого объявления сохраняется.
func (s *SeriesIndex) Start(title string) {
	if _, ok := s.books[title]; !ok {
		s.order = append(s.order, title)
	}
	s.books[title] = []string{}
}

// Add добавляет книгу в уже начатую серию.
func (s *SeriesIndex) Add(title, label string) {
	if _, ok := s.books[title]; !ok {
		return
	}
	s.books[title] = append(s.books[title], label)
}

func (s *SeriesIndex) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Titles возвращает названия серий в порядке документа.
func (s *SeriesIndex) Titles() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *SeriesIndex) Books(title string) ([]string, bool) {
	if s == nil {
		return nil, false
	}
	books, ok := s.books[title]
	if !ok {
		return nil, false
	}
	out := make([]string, len(books))
	copy(out, books)
	return out, true
}

// All возвращает все серии с книгами в порядке документа.
func (s *SeriesIndex) All() []Series {
	if s == nil {
		return nil
	}
	out := make([]Series, 0, len(s.order))
	for _, title := range s.order {
		books, _ := s.Books(title)
		out = append(out, Series{Title: title, Books: books})
	}
	return out
}
