package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libbot/internal/catalog"
	"libbot/internal/fetch"
	"libbot/internal/models"
)

type stubListing struct {
	calls   int
	records []models.ListingEntry
	err     error
}

func (s *stubListing) List(ctx context.Context) ([]models.ListingEntry, error) {
	s.calls++
	return s.records, s.err
}

type stubDocument struct {
	calls int
	text  string
	err   error
}

func (s *stubDocument) Text(ctx context.Context) (string, error) {
	s.calls++
	return s.text, s.err
}

func newLibrary(listing *stubListing, document *stubDocument) *Library {
	return NewLibrary(catalog.New(listing), document, zerolog.Nop())
}

func TestLibraryFindBook(t *testing.T) {
	listing := &stubListing{records: []models.ListingEntry{
		{Name: "Trading_101.pdf", DownloadURL: "https://raw/Trading_101.pdf"},
		{Name: "Options_Basics.pdf", DownloadURL: "https://raw/Options_Basics.pdf"},
	}}
	lib := newLibrary(listing, &stubDocument{})

	entry, ok, err := lib.FindBook(context.Background(), []string{"trad"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Trading_101.pdf", entry.FileName)

	_, ok, err = lib.FindBook(context.Background(), []string{"zzz"})
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 1, listing.calls)
}

func TestLibraryReloadRefetchesCatalog(t *testing.T) {
	listing := &stubListing{}
	lib := newLibrary(listing, &stubDocument{})

	_, _, err := lib.FindBook(context.Background(), []string{"x"})
	require.NoError(t, err)
	lib.Reload()
	_, _, err = lib.FindBook(context.Background(), []string{"x"})
	require.NoError(t, err)

	assert.Equal(t, 2, listing.calls)
}

func TestLibraryFindBookPropagatesUpstreamError(t *testing.T) {
	listing := &stubListing{err: &fetch.ExhaustedError{URL: "x", Attempts: 3, Err: errors.New("503")}}
	lib := newLibrary(listing, &stubDocument{})

	_, ok, err := lib.FindBook(context.Background(), []string{"x"})

	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, fetch.ErrExhausted))
}

func TestLibrarySeriesRefetchesEveryCall(t *testing.T) {
	document := &stubDocument{text: "### A\n|《X》|link|\n### B\n|《Y》|link|"}
	lib := newLibrary(&stubListing{}, document)

	result, err := lib.FindSeries(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []models.Series{{Title: "A", Books: []string{"《X》"}}}, result.Matches)

	all, err := lib.ListAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, all.Titles())

	assert.Equal(t, 2, document.calls)
}

func TestLibrarySeriesPropagatesDecodeError(t *testing.T) {
	document := &stubDocument{err: &fetch.DecodeError{URL: "x", Err: errors.New("bad base64")}}
	lib := newLibrary(&stubListing{}, document)

	_, err := lib.FindSeries(context.Background(), "a")
	require.Error(t, err)
	assert.True(t, errors.Is(err, fetch.ErrDecode))

	_, err = lib.ListAll(context.Background())
	require.Error(t, err)
	assert.True(t, fetch.IsUpstream(err))
}
