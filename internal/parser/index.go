package parser

import (
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"libbot/internal/models"
)

// ParseDirectoryIndex принимает HTML страницу листинга директории
// (nginx/apache autoindex, GitHub Pages и т.п.) и возвращает файлы из нее.
// Ссылки на родительскую директорию, поддиректории и сортировку пропускаются.
func ParseDirectoryIndex(body io.Reader, base *url.URL) ([]models.ListingEntry, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("read HTML: %w", err)
	}

	var entries []models.ListingEntry
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if skipIndexLink(href) {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}

		abs := ref
		if base != nil {
			abs = base.ResolveReference(ref)
		}

		name := path.Base(abs.EscapedPath())
		if name == "" || name == "." || name == "/" {
			return
		}

		link := abs.String()
		if seen[link] {
			return
		}
		seen[link] = true

		entries = append(entries, models.ListingEntry{
			Name:        name,
			DownloadURL: link,
		})
	})

	return entries, nil
}

func skipIndexLink(href string) bool {
	switch {
	case href == "", href == "/":
		return true
	case strings.HasPrefix(href, "#"), strings.HasPrefix(href, "?"):
		return true
	case strings.HasPrefix(href, "../"), href == "..":
		return true
	case strings.HasPrefix(href, "mailto:"), strings.HasPrefix(href, "javascript:"):
		return true
	case strings.HasSuffix(href, "/"):
		return true
	}
	return false
}
