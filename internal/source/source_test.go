package source

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libbot/internal/fetch"
	"libbot/internal/models"
)

func testFetcher() *fetch.Fetcher {
	return fetch.New(http.DefaultClient, fetch.RetryPolicy{MaxAttempts: 2}, zerolog.Nop())
}

func TestGitHubListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/owner/lib/contents/Lib", r.URL.Path)
		assert.Equal(t, "main", r.URL.Query().Get("ref"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))

		fmt.Fprint(w, `[
			{"name":"Trading_101.pdf","type":"file","download_url":"https://raw.example/Lib/Trading_101.pdf"},
			{"name":"old","type":"dir","download_url":null},
			{"name":"Options_Basics.epub","type":"file","download_url":"https://raw.example/Lib/Options_Basics.epub"}
		]`)
	}))
	defer srv.Close()

	gh := NewGitHub(testFetcher(), "owner/lib", "main", WithAPIURL(srv.URL+"/"), WithToken("tok"))

	entries, err := gh.Listing("Lib").List(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []models.ListingEntry{
		{Name: "Trading_101.pdf", DownloadURL: "https://raw.example/Lib/Trading_101.pdf"},
		{Name: "Options_Basics.epub", DownloadURL: "https://raw.example/Lib/Options_Basics.epub"},
	}, entries)
}

func TestGitHubListingWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	entries, err := NewGitHub(testFetcher(), "owner/lib", "main", WithAPIURL(srv.URL)).Listing("Lib").List(context.Background())

	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGitHubDocumentBase64(t *testing.T) {
	doc := "### A\n|《X》|link|\n"
	encoded := base64.StdEncoding.EncodeToString([]byte(doc))
	// GitHub переносит base64 по строкам.
	wrapped := encoded[:8] + "\n" + encoded[8:]

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/owner/lib/contents/docs/README.md", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"name":     "README.md",
			"type":     "file",
			"encoding": "base64",
			"content":  wrapped,
		})
	}))
	defer srv.Close()

	text, err := NewGitHub(testFetcher(), "owner/lib", "main", WithAPIURL(srv.URL)).Document("/docs/README.md").Text(context.Background())

	require.NoError(t, err)
	assert.Equal(t, doc, text)
}

func TestGitHubDocumentPlain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"content":"### A","encoding":""}`)
	}))
	defer srv.Close()

	text, err := NewGitHub(testFetcher(), "owner/lib", "", WithAPIURL(srv.URL)).Document("README.md").Text(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "### A", text)
}

func TestGitHubDocumentBadBase64(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"content":"!!!not base64!!!","encoding":"base64"}`)
	}))
	defer srv.Close()

	_, err := NewGitHub(testFetcher(), "owner/lib", "main", WithAPIURL(srv.URL)).Document("README.md").Text(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, fetch.ErrDecode))
}

func TestGitHubListingExhausted(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewGitHub(testFetcher(), "owner/lib", "main", WithAPIURL(srv.URL)).Listing("Lib").List(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, fetch.ErrExhausted))
	assert.Equal(t, int32(2), hits.Load())
}

func TestRawDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "### Raw\n")
	}))
	defer srv.Close()

	text, err := NewRawDocument(testFetcher(), srv.URL+"/README.md").Text(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "### Raw\n", text)
}

func TestHTMLIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<pre><a href="../">../</a><a href="Trading_101.pdf">Trading_101.pdf</a></pre>`)
	}))
	defer srv.Close()

	entries, err := NewHTMLIndex(testFetcher(), srv.URL+"/Lib/").List(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []models.ListingEntry{
		{Name: "Trading_101.pdf", DownloadURL: srv.URL + "/Lib/Trading_101.pdf"},
	}, entries)
}

func TestTinyURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "https://raw.example/Lib/a b.pdf", r.URL.Query().Get("url"))
		fmt.Fprint(w, "https://tinyurl.com/xyz\n")
	}))
	defer srv.Close()

	short, err := NewTinyURL(testFetcher(), srv.URL, 0).Shorten(context.Background(), "https://raw.example/Lib/a b.pdf")

	require.NoError(t, err)
	assert.Equal(t, "https://tinyurl.com/xyz", short)
}

func TestTinyURLGarbageReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "Error")
	}))
	defer srv.Close()

	_, err := NewTinyURL(testFetcher(), srv.URL, 100).Shorten(context.Background(), "https://raw.example/a.pdf")

	require.Error(t, err)
	assert.True(t, errors.Is(err, fetch.ErrDecode))
	assert.True(t, strings.Contains(err.Error(), "Error"))
}
