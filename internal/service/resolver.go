package service

import (
	"strings"

	"libbot/internal/models"
)

// ParseKeywords разбивает запрос вида "trading+101" на ключевые слова.
func ParseKeywords(text string) []string {
	var keywords []string
	for _, part := range strings.Split(text, "+") {
		part = strings.TrimSpace(part)
		if part != "" {
			keywords = append(keywords, part)
		}
	}
	return keywords
}

// FindBook возвращает первую (в порядке каталога) книгу, имя которой
// содержит все ключевые слова. Регистр не учитывается.
func FindBook(keywords []string, catalog *models.Catalog) (models.BookEntry, bool) {
	lowered := make([]string, len(keywords))
	for i, kw := range keywords {
		lowered[i] = strings.ToLower(kw)
	}

	for _, entry := range catalog.Entries() {
		if containsAll(strings.ToLower(entry.DisplayName), lowered) {
			return entry, true
		}
	}
	return models.BookEntry{}, false
}

func containsAll(s string, parts []string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}

// SeriesResult содержит серии, подходящие под запрос. Если ничего не нашлось,
// в Available лежат все названия серий, чтобы пользователь мог выбрать.
type SeriesResult struct {
	Matches   []models.Series
	Available []string
}

func (r SeriesResult) Found() bool {
	return len(r.Matches) > 0
}

// FindSeries возвращает все серии, в названии которых есть query, в порядке документа.
func FindSeries(query string, index *models.SeriesIndex) SeriesResult {
	q := strings.ToLower(query)

	var result SeriesResult
	for _, series := range index.All() {
		if strings.Contains(strings.ToLower(series.Title), q) {
			result.Matches = append(result.Matches, series)
		}
	}

	if !result.Found() {
		result.Available = index.Titles()
	}
	return result
}

// ListAll отдает весь индекс, чтобы его выводили так же, как результат поиска.
func ListAll(index *models.SeriesIndex) *models.SeriesIndex {
	return index
}
