// Package catalog держит каталог книг, собранный из листинга upstream-директории.
// Каталог загружается при первом обращении и дальше отдается из памяти,
// пока его не сбросят или (если задан TTL) пока он не устареет.
package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"libbot/internal/models"
)

// ListingSource возвращает файлы директории с книгами.
type ListingSource interface {
	List(ctx context.Context) ([]models.ListingEntry, error)
}

// Shortener превращает ссылку на скачивание в короткую.
type Shortener interface {
	Shorten(ctx context.Context, longURL string) (string, error)
}

const defaultConcurrency = 8

type Cache struct {
	listing     ListingSource
	shortener   Shortener
	ttl         time.Duration
	concurrency int
	now         func() time.Time
	log         zerolog.Logger

	mu       sync.Mutex
	catalog  *models.Catalog
	loadedAt time.Time
}

type Option func(*Cache)

// WithShortener при загрузке заменяет каждую ссылку на короткую.
func WithShortener(s Shortener) Option {
	return func(c *Cache) {
		c.shortener = s
	}
}

// WithTTL перечитывает каталог старше ttl. Ноль: хранить вечно.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// WithConcurrency ограничивает число параллельных запросов к сокращателю.
func WithConcurrency(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *Cache) {
		c.log = log.With().Str("component", "catalog").Logger()
	}
}

func withClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

func New(listing ListingSource, opts ...Option) *Cache {
	c := &Cache{
		listing:     listing,
		concurrency: defaultConcurrency,
		now:         time.Now,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get возвращает каталог, загружая его при первом вызове. Параллельные
// вызовы ждут одну загрузку. После ошибки кэш остается пустым.
func (c *Cache) Get(ctx context.Context) (*models.Catalog, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.catalog != nil && !c.expired() {
		return c.catalog, nil
	}

	catalog, err := c.load(ctx)
	if err != nil {
		return nil, err
	}

	c.catalog = catalog
	c.loadedAt = c.now()
	c.log.Info().Int("books", catalog.Len()).Msg("catalog loaded")

	return catalog, nil
}

// Invalidate сбрасывает каталог, следующий Get загрузит свежий.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.catalog = nil
	c.loadedAt = time.Time{}
}

// Loaded сообщает, есть ли актуальный каталог.
func (c *Cache) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.catalog != nil && !c.expired()
}

func (c *Cache) expired() bool {
	return c.ttl > 0 && c.now().Sub(c.loadedAt) >= c.ttl
}

func (c *Cache) load(ctx context.Context) (*models.Catalog, error) {
	listed, err := c.listing.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}

	// Сабмодули и симлинки приходят без ссылки на скачивание.
	records := make([]models.ListingEntry, 0, len(listed))
	for _, rec := range listed {
		if rec.DownloadURL == "" {
			c.log.Debug().Str("name", rec.Name).Msg("skip entry without download url")
			continue
		}
		records = append(records, rec)
	}

	locators := make([]string, len(records))
	for i, rec := range records {
		locators[i] = rec.DownloadURL
	}

	if c.shortener != nil {
		if err := c.shorten(ctx, locators); err != nil {
			return nil, fmt.Errorf("shorten links: %w", err)
		}
	}

	catalog := models.NewCatalog()
	for i, rec := range records {
		catalog.Put(models.NewBookEntry(rec, locators[i]))
	}
	return catalog, nil
}

// shorten переписывает ссылки на месте. Первая ошибка отменяет остальные запросы.
func (c *Cache) shorten(ctx context.Context, links []string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i := range links {
		i := i
		long := links[i]
		if long == "" {
			continue
		}
		g.Go(func() error {
			short, err := c.shortener.Shorten(gctx, long)
			if err != nil {
				return fmt.Errorf("%s: %w", long, err)
			}
			links[i] = short
			return nil
		})
	}

	return g.Wait()
}
