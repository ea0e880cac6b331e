package models

import (
	"fmt"
	"net/url"
	"strings"
)

// BookEntry — одна книга из каталога.
type BookEntry struct {
	DisplayName string
	FileName    string
	Locator     string
}

// String — метод для красивого вывода в консоль.
func (b BookEntry) String() string {
	return fmt.Sprintf("📚 %s\n   Файл: %s\n   Ссылка: %s\n", b.DisplayName, b.FileName, b.Locator)
}

// ListingEntry описывает один файл из листинга директории.
type ListingEntry struct {
	Name        string `json:"name"`
	DownloadURL string `json:"download_url"`
}

// NewBookEntry собирает книгу из записи листинга и ссылки, которую получит пользователь.
func NewBookEntry(rec ListingEntry, locator string) BookEntry {
	fileName := rec.Name
	if unescaped, err := url.PathUnescape(fileName); err == nil {
		fileName = unescaped
	}

	return BookEntry{
		DisplayName: DisplayName(fileName),
		FileName:    fileName,
		Locator:     locator,
	}
}

// DisplayName превращает "Trading_101.pdf" в "Trading 101".
func DisplayName(fileName string) string {
	name := strings.ReplaceAll(fileName, "_", " ")

	dot := strings.LastIndexByte(name, '.')
	if dot < 0 || dot == len(name)-1 {
		return name
	}
	if strings.ContainsRune(name[dot+1:], '/') {
		return name
	}
	return name[:dot]
}
