package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/ratelimit"

	"libbot/internal/fetch"
)

const tinyURLEndpoint = "https://tinyurl.com/api-create.php"

// TinyURL сокращает ссылки на скачивание. Каталог сокращает все файлы разом,
// поэтому запросы идут с ограничением частоты.
type TinyURL struct {
	fetcher  *fetch.Fetcher
	endpoint string
	limiter  ratelimit.Limiter
}

// NewTinyURL создает сокращатель. perSecond <= 0 снимает ограничение.
func NewTinyURL(fetcher *fetch.Fetcher, endpoint string, perSecond int) *TinyURL {
	if endpoint == "" {
		endpoint = tinyURLEndpoint
	}

	limiter := ratelimit.NewUnlimited()
	if perSecond > 0 {
		limiter = ratelimit.New(perSecond)
	}

	return &TinyURL{
		fetcher:  fetcher,
		endpoint: endpoint,
		limiter:  limiter,
	}
}

func (t *TinyURL) Shorten(ctx context.Context, longURL string) (string, error) {
	t.limiter.Take()

	reqURL := t.endpoint + "?url=" + url.QueryEscape(longURL)
	text, err := t.fetcher.FetchText(ctx, fetch.Request{URL: reqURL})
	if err != nil {
		return "", err
	}

	short := strings.TrimSpace(text)
	if !strings.HasPrefix(short, "http") {
		return "", &fetch.DecodeError{URL: reqURL, Err: fmt.Errorf("unexpected shortener reply %q", short)}
	}
	return short, nil
}
