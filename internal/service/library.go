package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"libbot/internal/catalog"
	"libbot/internal/models"
	"libbot/internal/parser"
)

// DocumentSource возвращает текущий текст документа серий.
type DocumentSource interface {
	Text(ctx context.Context) (string, error)
}

// Library отвечает на запросы пользователей. Книги ищутся в кэшированном
// каталоге, а документ серий скачивается и разбирается при каждом запросе.
type Library struct {
	cache    *catalog.Cache
	document DocumentSource
	log      zerolog.Logger
}

func NewLibrary(cache *catalog.Cache, document DocumentSource, log zerolog.Logger) *Library {
	return &Library{
		cache:    cache,
		document: document,
		log:      log.With().Str("component", "library").Logger(),
	}
}

// FindBook: ok == false значит "ничего не найдено", это не ошибка.
func (l *Library) FindBook(ctx context.Context, keywords []string) (models.BookEntry, bool, error) {
	c, err := l.cache.Get(ctx)
	if err != nil {
		return models.BookEntry{}, false, err
	}

	entry, ok := FindBook(keywords, c)
	l.log.Debug().Strs("keywords", keywords).Bool("found", ok).Msg("book lookup")
	return entry, ok, nil
}

func (l *Library) FindSeries(ctx context.Context, query string) (SeriesResult, error) {
	index, err := l.seriesIndex(ctx)
	if err != nil {
		return SeriesResult{}, err
	}

	result := FindSeries(query, index)
	l.log.Debug().Str("query", query).Int("matches", len(result.Matches)).Msg("series lookup")
	return result, nil
}

func (l *Library) ListAll(ctx context.Context) (*models.SeriesIndex, error) {
	index, err := l.seriesIndex(ctx)
	if err != nil {
		return nil, err
	}
	return ListAll(index), nil
}

// Reload сбрасывает каталог, следующий поиск книги загрузит его заново.
func (l *Library) Reload() {
	l.cache.Invalidate()
	l.log.Info().Msg("catalog invalidated")
}

func (l *Library) seriesIndex(ctx context.Context) (*models.SeriesIndex, error) {
	text, err := l.document.Text(ctx)
	if err != nil {
		return nil, fmt.Errorf("series document: %w", err)
	}
	return parser.ParseSeriesDocument(text), nil
}
