package source

import (
	"context"
	"net/url"
	"strings"

	"libbot/internal/fetch"
	"libbot/internal/models"
	"libbot/internal/parser"
)

// RawDocument берет документ по прямой ссылке (raw.githubusercontent.com, gist и т.п.).
type RawDocument struct {
	fetcher *fetch.Fetcher
	url     string
}

func NewRawDocument(fetcher *fetch.Fetcher, u string) *RawDocument {
	return &RawDocument{fetcher: fetcher, url: u}
}

func (d *RawDocument) Text(ctx context.Context) (string, error) {
	return d.fetcher.FetchText(ctx, fetch.Request{URL: d.url})
}

// HTMLIndex достает список файлов из HTML-страницы с индексом директории.
type HTMLIndex struct {
	fetcher *fetch.Fetcher
	url     string
}

func NewHTMLIndex(fetcher *fetch.Fetcher, u string) *HTMLIndex {
	return &HTMLIndex{fetcher: fetcher, url: u}
}

func (h *HTMLIndex) List(ctx context.Context) ([]models.ListingEntry, error) {
	page, err := h.fetcher.FetchText(ctx, fetch.Request{URL: h.url})
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(h.url)
	if err != nil {
		return nil, &fetch.DecodeError{URL: h.url, Err: err}
	}

	entries, err := parser.ParseDirectoryIndex(strings.NewReader(page), base)
	if err != nil {
		return nil, &fetch.DecodeError{URL: h.url, Err: err}
	}
	return entries, nil
}
