package source

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"libbot/internal/fetch"
	"libbot/internal/models"
)

const githubAPI = "https://api.github.com"

// GitHub читает директорию с книгами и документ серий через contents API репозитория.
type GitHub struct {
	fetcher *fetch.Fetcher
	apiURL  string
	repo    string
	branch  string
	token   string
}

type GitHubOption func(*GitHub)

// WithAPIURL направляет запросы на другой хост API (GitHub Enterprise, тесты).
func WithAPIURL(u string) GitHubOption {
	return func(g *GitHub) {
		if u != "" {
			g.apiURL = strings.TrimRight(u, "/")
		}
	}
}

// WithToken добавляет авторизацию: у анонимных запросов лимит намного ниже.
func WithToken(token string) GitHubOption {
	return func(g *GitHub) {
		g.token = token
	}
}

func NewGitHub(fetcher *fetch.Fetcher, repo, branch string, opts ...GitHubOption) *GitHub {
	g := &GitHub{
		fetcher: fetcher,
		apiURL:  githubAPI,
		repo:    repo,
		branch:  branch,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type githubContent struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"`
	DownloadURL string `json:"download_url"`
	Content     string `json:"content"`
	Encoding    string `json:"encoding"`
}

// Listing возвращает источник листинга для одной директории репозитория.
func (g *GitHub) Listing(dir string) *GitHubListing {
	return &GitHubListing{gh: g, dir: dir}
}

// Document возвращает источник документа для одного файла репозитория.
func (g *GitHub) Document(file string) *GitHubDocument {
	return &GitHubDocument{gh: g, file: file}
}

func (g *GitHub) contentsRequest(p string) fetch.Request {
	var escaped []string
	for _, seg := range strings.Split(strings.Trim(p, "/"), "/") {
		escaped = append(escaped, url.PathEscape(seg))
	}

	u := fmt.Sprintf("%s/repos/%s/contents/%s", g.apiURL, g.repo, strings.Join(escaped, "/"))
	if g.branch != "" {
		u += "?ref=" + url.QueryEscape(g.branch)
	}

	header := http.Header{}
	header.Set("Accept", "application/vnd.github+json")
	if g.token != "" {
		header.Set("Authorization", "Bearer "+g.token)
	}

	return fetch.Request{URL: u, Header: header}
}

type GitHubListing struct {
	gh  *GitHub
	dir string
}

// List возвращает файлы директории. Поддиректории пропускаются.
func (l *GitHubListing) List(ctx context.Context) ([]models.ListingEntry, error) {
	var contents []githubContent
	if err := l.gh.fetcher.FetchJSON(ctx, l.gh.contentsRequest(l.dir), &contents); err != nil {
		return nil, err
	}

	entries := make([]models.ListingEntry, 0, len(contents))
	for _, c := range contents {
		if c.Type == "dir" {
			continue
		}
		entries = append(entries, models.ListingEntry{
			Name:        c.Name,
			DownloadURL: c.DownloadURL,
		})
	}
	return entries, nil
}

type GitHubDocument struct {
	gh   *GitHub
	file string
}

// Text возвращает содержимое файла, при необходимости декодируя base64.
func (d *GitHubDocument) Text(ctx context.Context) (string, error) {
	req := d.gh.contentsRequest(d.file)

	var content githubContent
	if err := d.gh.fetcher.FetchJSON(ctx, req, &content); err != nil {
		return "", err
	}

	if content.Encoding != "base64" {
		return content.Content, nil
	}

	text, err := decodeBase64(content.Content)
	if err != nil {
		return "", &fetch.DecodeError{URL: req.URL, Err: err}
	}
	return text, nil
}

// GitHub режет base64 на строки по 60 символов.
func decodeBase64(s string) (string, error) {
	s = strings.NewReplacer("\n", "", "\r", "").Replace(s)
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("base64: %w", err)
	}
	return string(raw), nil
}
