package catalog

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libbot/internal/fetch"
	"libbot/internal/models"
)

type fakeListing struct {
	mu      sync.Mutex
	calls   int
	records []models.ListingEntry
	err     error
	wait    time.Duration
}

func (f *fakeListing) List(ctx context.Context) ([]models.ListingEntry, error) {
	f.mu.Lock()
	f.calls++
	records, err := f.records, f.err
	f.mu.Unlock()

	if f.wait > 0 {
		time.Sleep(f.wait)
	}
	return records, err
}

func (f *fakeListing) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeShortener struct {
	calls atomic.Int32
	fail  string
}

func (f *fakeShortener) Shorten(ctx context.Context, longURL string) (string, error) {
	f.calls.Add(1)
	if f.fail != "" && strings.Contains(longURL, f.fail) {
		return "", &fetch.ExhaustedError{URL: longURL, Attempts: 3, Err: errors.New("503")}
	}
	return "https://short/" + longURL[strings.LastIndex(longURL, "/")+1:], nil
}

func books() []models.ListingEntry {
	return []models.ListingEntry{
		{Name: "Trading_101.pdf", DownloadURL: "https://raw/Lib/Trading_101.pdf"},
		{Name: "Options_Basics.epub", DownloadURL: "https://raw/Lib/Options_Basics.epub"},
	}
}

func TestGetLoadsOnceAndMemoizes(t *testing.T) {
	listing := &fakeListing{records: books()}
	cache := New(listing)

	first, err := cache.Get(context.Background())
	require.NoError(t, err)
	second, err := cache.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, listing.Calls())
	assert.Same(t, first, second)
	assert.True(t, cache.Loaded())

	entry, ok := first.Get("Trading 101")
	require.True(t, ok)
	assert.Equal(t, models.BookEntry{
		DisplayName: "Trading 101",
		FileName:    "Trading_101.pdf",
		Locator:     "https://raw/Lib/Trading_101.pdf",
	}, entry)
}

func TestGetIgnoresUpstreamChangesAfterLoad(t *testing.T) {
	listing := &fakeListing{records: books()}
	cache := New(listing)

	_, err := cache.Get(context.Background())
	require.NoError(t, err)

	listing.mu.Lock()
	listing.records = append(listing.records, models.ListingEntry{Name: "New.pdf"})
	listing.mu.Unlock()

	c, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
}

func TestConcurrentFirstCallsLoadOnce(t *testing.T) {
	listing := &fakeListing{records: books(), wait: 20 * time.Millisecond}
	cache := New(listing)

	var wg sync.WaitGroup
	results := make([]*models.Catalog, 8)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := cache.Get(context.Background())
			assert.NoError(t, err)
			results[i] = c
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, listing.Calls())
	for _, c := range results {
		assert.Same(t, results[0], c)
	}
}

func TestFailedLoadLeavesCacheEmpty(t *testing.T) {
	listing := &fakeListing{err: &fetch.ExhaustedError{URL: "x", Attempts: 3, Err: errors.New("boom")}}
	cache := New(listing)

	_, err := cache.Get(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, fetch.ErrExhausted))
	assert.False(t, cache.Loaded())

	listing.mu.Lock()
	listing.err = nil
	listing.records = books()
	listing.mu.Unlock()

	c, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 2, listing.Calls())
}

func TestShortenerRewritesLocators(t *testing.T) {
	listing := &fakeListing{records: books()}
	shortener := &fakeShortener{}
	cache := New(listing, WithShortener(shortener), WithConcurrency(1))

	c, err := cache.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), shortener.calls.Load())
	entry, ok := c.Get("Options Basics")
	require.True(t, ok)
	assert.Equal(t, "https://short/Options_Basics.epub", entry.Locator)
	assert.Equal(t, "Options_Basics.epub", entry.FileName)

	_, err = cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), shortener.calls.Load())
}

func TestShortenerFailureFailsWholeLoad(t *testing.T) {
	listing := &fakeListing{records: books()}
	cache := New(listing, WithShortener(&fakeShortener{fail: "Options"}))

	_, err := cache.Get(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, fetch.ErrExhausted))
	assert.False(t, cache.Loaded())
}

func TestInvalidateForcesReload(t *testing.T) {
	listing := &fakeListing{records: books()}
	cache := New(listing)

	_, err := cache.Get(context.Background())
	require.NoError(t, err)

	cache.Invalidate()
	assert.False(t, cache.Loaded())

	_, err = cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, listing.Calls())
}

func TestTTLExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	listing := &fakeListing{records: books()}
	cache := New(listing, WithTTL(time.Hour), withClock(func() time.Time { return now }))

	_, err := cache.Get(context.Background())
	require.NoError(t, err)

	now = now.Add(59 * time.Minute)
	_, err = cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, listing.Calls())

	now = now.Add(time.Minute)
	assert.False(t, cache.Loaded())
	_, err = cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, listing.Calls())
}

func TestDuplicateDisplayNamesOverwrite(t *testing.T) {
	listing := &fakeListing{records: []models.ListingEntry{
		{Name: "A_B.pdf", DownloadURL: "https://raw/1"},
		{Name: "A B.epub", DownloadURL: "https://raw/2"},
	}}

	c, err := New(listing).Get(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, c.Len())
	entry, _ := c.Get("A B")
	assert.Equal(t, "https://raw/2", entry.Locator)
}

func TestGetSkipsEntriesWithoutDownloadURL(t *testing.T) {
	records := append(books(), models.ListingEntry{Name: "vendored-lib", DownloadURL: ""})
	cache := New(&fakeListing{records: records})

	c, err := cache.Get(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("vendored-lib")
	assert.False(t, ok)
	for _, entry := range c.Entries() {
		assert.NotEmpty(t, entry.Locator)
	}
}
