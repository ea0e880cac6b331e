package parser

import (
	"strings"

	"libbot/internal/models"
)

const (
	headingMarker = "### "
	bookRowMarker = "|《"
)

type lineKind int

const (
	lineOther lineKind = iota
	lineHeading
	lineBookRow
)

func classify(line string) lineKind {
	switch {
	case strings.HasPrefix(line, headingMarker):
		return lineHeading
	case strings.HasPrefix(line, bookRowMarker):
		return lineBookRow
	default:
		return lineOther
	}
}

// seriesState: либо "серия не начата" (active == false), либо "внутри серии title".
type seriesState struct {
	active bool
	title  string
}

// ParseSeriesDocument строит индекс серий по markdown-документу.
//
// Переходы, построчно:
//
//	заголовок "### T"  любое состояние -> внутри T, список книг T сброшен
//	строка "|《..."    серия не начата -> отброшена
//	строка "|《..."    внутри T        -> название добавлено в T
//	все остальное      любое состояние -> пропущено
//
// Документ правят руками, поэтому незнакомые строки молча пропускаются.
func ParseSeriesDocument(text string) *models.SeriesIndex {
	index := models.NewSeriesIndex()
	var state seriesState

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")

		switch classify(line) {
		case lineHeading:
			state = seriesState{active: true, title: strings.TrimSpace(line[len(headingMarker):])}
			index.Start(state.title)

		case lineBookRow:
			if !state.active {
				continue
			}
			if label, ok := bookLabel(line); ok {
				index.Add(state.title, label)
			}
		}
	}

	return index
}

// bookLabel возвращает ячейку между первой и второй вертикальной чертой.
func bookLabel(line string) (string, bool) {
	parts := strings.SplitN(line, "|", 3)
	if len(parts) < 2 {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
