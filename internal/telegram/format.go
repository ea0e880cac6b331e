package telegram

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"libbot/internal/models"
)

// Telegram режет сообщения длиннее 4096 символов, оставляем запас.
const maxMessageLen = 4000

const (
	helpText = "👋 Привет! Я помогаю искать книги в библиотеке.\n\n" +
		"<b>/book</b> слово+слово — найти книгу по ключевым словам\n" +
		"<b>/series</b> название — показать книги серии\n" +
		"<b>/list</b> — все серии\n\n" +
		"Можно просто написать ключевые слова, например: <code>trading+101</code>"
	bookUsageText      = "Использование: <code>/book слово+слово</code>"
	seriesUsageText    = "Использование: <code>/series название</code>"
	unknownCommandText = "Неизвестная команда. Напиши /help"
	upstreamErrorText  = "❌ Библиотека сейчас недоступна, попробуй позже."
	emptyLibraryText   = "📭 Список серий пуст."
	staleListText      = "Список устарел, отправь /list еще раз."
	reloadedText       = "🔄 Каталог будет перечитан при следующем запросе."
)

func formatBookFound(entry models.BookEntry) string {
	return fmt.Sprintf("🌟 Нашел! Нажми на ссылку, чтобы скачать:\n\n📚 <b>%s</b>\n👉 <a href=\"%s\">%s</a>",
		html.EscapeString(entry.DisplayName),
		html.EscapeString(entry.Locator),
		html.EscapeString(entry.FileName),
	)
}

func formatBookNotFound(query string) string {
	return fmt.Sprintf("😔 По запросу <b>%s</b> ничего не найдено.\nПопробуй другие ключевые слова или напиши администратору.",
		html.EscapeString(strings.TrimSpace(query)))
}

// formatSeries выводит одну серию со списком книг.
func formatSeries(s models.Series) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📖 <b>%s</b>\n", html.EscapeString(s.Title))
	if len(s.Books) == 0 {
		sb.WriteString("   (книг пока нет)\n")
		return sb.String()
	}
	for i, book := range s.Books {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, html.EscapeString(book))
	}
	return sb.String()
}

func formatSeriesMatches(matches []models.Series) string {
	parts := make([]string, 0, len(matches))
	for _, s := range matches {
		parts = append(parts, formatSeries(s))
	}
	return strings.Join(parts, "\n")
}

func formatAvailableSeries(query string, titles []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "😔 Серия <b>%s</b> не найдена.\n", html.EscapeString(query))
	if len(titles) == 0 {
		sb.WriteString(emptyLibraryText)
		return sb.String()
	}

	sb.WriteString("\nДоступные серии:\n")
	for _, title := range titles {
		fmt.Fprintf(&sb, "• %s\n", html.EscapeString(title))
	}
	return sb.String()
}

func totalPages(n, pageSize int) int {
	if pageSize <= 0 || n == 0 {
		return 1
	}
	return (n + pageSize - 1) / pageSize
}

func clampPage(page, pages int) int {
	if page < 0 {
		return 0
	}
	if page >= pages {
		return pages - 1
	}
	return page
}

// renderSeriesPage строит текст и клавиатуру одной страницы /list.
// Возвращает номер страницы после ограничения диапазона.
func renderSeriesPage(series []models.Series, page, pageSize int) (string, tgbotapi.InlineKeyboardMarkup, int) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	pages := totalPages(len(series), pageSize)
	page = clampPage(page, pages)

	start := page * pageSize
	end := start + pageSize
	if end > len(series) {
		end = len(series)
	}

	text := fmt.Sprintf("📚 Серии (%d), страница %d/%d.\nВыбери серию:", len(series), page+1, pages)

	var rows [][]tgbotapi.InlineKeyboardButton
	for i := start; i < end; i++ {
		s := series[i]
		label := fmt.Sprintf("%s (%d)", truncate(s.Title, 48), len(s.Books))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("%s%d", cbSeriesPrefix, i)),
		))
	}

	var nav []tgbotapi.InlineKeyboardButton
	if page > 0 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅️ Назад", fmt.Sprintf("%s%d", cbPagePrefix, page-1)))
	}
	if page < pages-1 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Вперед ➡️", fmt.Sprintf("%s%d", cbPagePrefix, page+1)))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}

	return text, tgbotapi.NewInlineKeyboardMarkup(rows...), page
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}

// splitMessage режет текст по строкам так, чтобы каждая часть была не длиннее limit рун.
// Строку длиннее limit режет splitHTMLLine.
func splitMessage(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var parts []string
	var cur strings.Builder
	curLen := 0

	flush := func() {
		if part := strings.TrimRight(cur.String(), "\n"); part != "" {
			parts = append(parts, part)
		}
		cur.Reset()
		curLen = 0
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		n := utf8.RuneCountInString(line)
		if curLen+n > limit {
			flush()
		}
		if n > limit {
			body := strings.TrimSuffix(line, "\n")
			chunks := splitHTMLLine(body, limit)
			parts = append(parts, chunks[:len(chunks)-1]...)
			line = chunks[len(chunks)-1] + line[len(body):]
			n = utf8.RuneCountInString(line)
		}
		cur.WriteString(line)
		curLen += n
	}
	flush()
	return parts
}

// splitHTMLLine режет одну строку HTML на куски не длиннее limit рун.
// Резать можно только между тегами и сущностями (&amp; и т.п.): иначе Telegram
// не примет разметку. Теги, открытые на месте разреза, закрываются в конце куска
// и открываются заново в начале следующего.
func splitHTMLLine(line string, limit int) []string {
	r := []rune(line)

	var parts []string
	var open []string
	for start := 0; start < len(r); {
		prefix := strings.Join(open, "")
		budget := limit - utf8.RuneCountInString(prefix)

		stack := open
		end := start
		for end < len(r) {
			next := htmlTokenEnd(r, end)
			candidate := applyTag(stack, string(r[end:next]))
			if next-start+closersLen(candidate) > budget && end > start {
				break
			}
			stack = candidate
			end = next
		}

		parts = append(parts, prefix+string(r[start:end])+closers(stack))
		open = stack
		start = end
	}
	return parts
}

// htmlTokenEnd возвращает конец тега, сущности или одиночной руны, начинающейся в i.
func htmlTokenEnd(r []rune, i int) int {
	switch r[i] {
	case '<':
		for j := i + 1; j < len(r); j++ {
			if r[j] == '>' {
				return j + 1
			}
		}
		return len(r)
	case '&':
		for j := i + 1; j < len(r) && j-i <= 10; j++ {
			if r[j] == ';' {
				return j + 1
			}
		}
	}
	return i + 1
}

// applyTag обновляет стек открытых тегов. Стек не меняется на месте.
func applyTag(stack []string, tok string) []string {
	if !strings.HasPrefix(tok, "<") || strings.HasSuffix(tok, "/>") {
		return stack
	}
	if strings.HasPrefix(tok, "</") {
		if len(stack) == 0 {
			return stack
		}
		return stack[:len(stack)-1:len(stack)-1]
	}
	out := make([]string, len(stack), len(stack)+1)
	copy(out, stack)
	return append(out, tok)
}

func tagName(open string) string {
	name := strings.TrimPrefix(open, "<")
	if i := strings.IndexAny(name, " >"); i >= 0 {
		name = name[:i]
	}
	return name
}

func closers(stack []string) string {
	var sb strings.Builder
	for i := len(stack) - 1; i >= 0; i-- {
		sb.WriteString("</" + tagName(stack[i]) + ">")
	}
	return sb.String()
}

func closersLen(stack []string) int {
	return utf8.RuneCountInString(closers(stack))
}
