// Package fetch делает запросы к upstream с ограниченным числом попыток
// и постоянной паузой между ними.
//
// Пауза не растет и не содержит случайной составляющей.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog"
)

const userAgent = "libbot"

// RetryPolicy общая для всех вызовов одного Fetcher.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultPolicy: 3 попытки с интервалом в 1 секунду.
var DefaultPolicy = RetryPolicy{MaxAttempts: 3, Delay: time.Second}

func (p RetryPolicy) normalize() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	return p
}

// Request описывает удаленный объект и параметры запроса.
type Request struct {
	URL    string
	Header http.Header
}

type Fetcher struct {
	client *http.Client
	policy RetryPolicy
	log    zerolog.Logger
}

// New создает Fetcher. Нулевая policy означает DefaultPolicy.
func New(client *http.Client, policy RetryPolicy, log zerolog.Logger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if policy == (RetryPolicy{}) {
		policy = DefaultPolicy
	}
	return &Fetcher{
		client: client,
		policy: policy.normalize(),
		log:    log.With().Str("component", "fetch").Logger(),
	}
}

func (f *Fetcher) Policy() RetryPolicy {
	return f.policy
}

// FetchJSON декодирует тело ответа в v.
func (f *Fetcher) FetchJSON(ctx context.Context, req Request, v any) error {
	return f.do(ctx, req, func(body []byte) error {
		return json.Unmarshal(body, v)
	})
}

// FetchText возвращает тело ответа строкой.
func (f *Fetcher) FetchText(ctx context.Context, req Request) (string, error) {
	var text string
	err := f.do(ctx, req, func(body []byte) error {
		text = string(body)
		return nil
	})
	return text, err
}

func (f *Fetcher) do(ctx context.Context, req Request, decode func([]byte) error) error {
	httpReq, err := newRequest(ctx, req)
	if err != nil {
		return err
	}

	attempts := 0
	err = retry.Do(func() error {
		attempts++

		body, err := f.roundTrip(httpReq)
		if err != nil {
			return err
		}

		// Ответ получен, повторять смысла нет.
		if err := decode(body); err != nil {
			return retry.Unrecoverable(&DecodeError{URL: req.URL, Err: err})
		}
		return nil
	},
		retry.Context(ctx),
		retry.Attempts(uint(f.policy.MaxAttempts)),
		retry.Delay(f.policy.Delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			f.log.Warn().Err(err).Str("url", req.URL).Msgf("attempt %d/%d failed", n+1, f.policy.MaxAttempts)
		}),
	)
	if err == nil {
		return nil
	}

	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return decodeErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("fetch %s: %w", req.URL, err)
	}

	return &ExhaustedError{URL: req.URL, Attempts: attempts, Err: err}
}

func newRequest(ctx context.Context, req Request) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", req.URL, err)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", userAgent)
	}
	return httpReq, nil
}

func (f *Fetcher) roundTrip(httpReq *http.Request) ([]byte, error) {
	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("server returned %s", resp.Status)
	}

	// Читаем тело целиком, чтобы обрыв соединения считался сбоем попытки.
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return buf.Bytes(), nil
}
