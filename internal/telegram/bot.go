package telegram

import (
	"context"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"libbot/internal/db"
	"libbot/internal/models"
	"libbot/internal/service"
)

// Library отвечает на запросы пользователей.
type Library interface {
	FindBook(ctx context.Context, keywords []string) (models.BookEntry, bool, error)
	FindSeries(ctx context.Context, query string) (service.SeriesResult, error)
	ListAll(ctx context.Context) (*models.SeriesIndex, error)
	Reload()
}

// QueryLog запоминает, кто что искал. Необязателен.
type QueryLog interface {
	EnsureUser(ctx context.Context, telegramID int64, username string) error
	LogQuery(ctx context.Context, rec db.QueryRecord) error
}

type Bot struct {
	bot        *tgbotapi.BotAPI
	library    Library
	store      QueryLog
	isAdmin    func(id int64) bool
	log        zerolog.Logger
	sessions   map[int64]*listSession
	sessionsMu sync.Mutex
}

// listSession хранит снимок /list, чтобы кнопки страниц и серий
// совпадали с тем, что видел пользователь.
type listSession struct {
	series   []models.Series
	page     int
	pageSize int
}

const (
	defaultPageSize = 10
	cbPagePrefix    = "page:"
	cbSeriesPrefix  = "series:"
)

// NewBot авторизуется в Telegram. isAdmin решает, кому доступен /reload (nil: никому).
func NewBot(token string, library Library, store QueryLog, isAdmin func(id int64) bool, log zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	api.Debug = false
	return newBot(api, library, store, isAdmin, log), nil
}

func newBot(api *tgbotapi.BotAPI, library Library, store QueryLog, isAdmin func(id int64) bool, log zerolog.Logger) *Bot {
	log = log.With().Str("component", "telegram").Logger()
	log.Info().Msgf("Авторизован как %s", api.Self.UserName)

	if isAdmin == nil {
		isAdmin = func(int64) bool { return false }
	}

	return &Bot{
		bot:      api,
		library:  library,
		store:    store,
		isAdmin:  isAdmin,
		log:      log,
		sessions: make(map[int64]*listSession),
	}
}

// Start крутит главный цикл, пока ctx не отменен.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.bot.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	log := b.log.With().Str("request_id", uuid.NewString()).Int("update_id", update.UpdateID).Logger()
	ctx = log.WithContext(ctx)

	// 1. Текстовое сообщение (команды и поиск)
	if update.Message != nil {
		b.handleMessage(ctx, update.Message)
	}

	// 2. Нажатие на кнопку (страницы и серии)
	if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	// Служебные сообщения, фото и стикеры приходят без текста.
	if strings.TrimSpace(msg.Text) == "" {
		return
	}

	if !msg.IsCommand() {
		// В группах отвечаем только на команды, иначе бот встревает в каждый разговор.
		if msg.Chat.IsPrivate() {
			b.handleBook(ctx, msg, msg.Text)
		}
		return
	}

	args := msg.CommandArguments()
	switch msg.Command() {
	case "start", "help":
		b.sendHTML(chatID, helpText)
	case "book":
		b.handleBook(ctx, msg, args)
	case "series":
		b.handleSeries(ctx, msg, args)
	case "list":
		b.handleList(ctx, msg)
	case "reload":
		b.handleReload(ctx, msg)
	default:
		b.sendHTML(chatID, unknownCommandText)
	}
}

func (b *Bot) handleBook(ctx context.Context, msg *tgbotapi.Message, query string) {
	chatID := msg.Chat.ID

	keywords := service.ParseKeywords(query)
	if len(keywords) == 0 {
		b.sendHTML(chatID, bookUsageText)
		return
	}

	entry, found, err := b.library.FindBook(ctx, keywords)
	b.recordQuery(ctx, msg.From, db.KindBook, query, found, err != nil)
	if err != nil {
		b.replyUpstreamError(ctx, chatID, "book lookup", err)
		return
	}

	if !found {
		b.sendHTML(chatID, formatBookNotFound(query))
		return
	}
	b.sendHTML(chatID, formatBookFound(entry))
}

func (b *Bot) handleSeries(ctx context.Context, msg *tgbotapi.Message, query string) {
	chatID := msg.Chat.ID

	query = strings.TrimSpace(query)
	if query == "" {
		b.sendHTML(chatID, seriesUsageText)
		return
	}

	result, err := b.library.FindSeries(ctx, query)
	b.recordQuery(ctx, msg.From, db.KindSeries, query, result.Found(), err != nil)
	if err != nil {
		b.replyUpstreamError(ctx, chatID, "series lookup", err)
		return
	}

	if !result.Found() {
		b.sendHTML(chatID, formatAvailableSeries(query, result.Available))
		return
	}
	b.sendHTML(chatID, formatSeriesMatches(result.Matches))
}

func (b *Bot) handleList(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	index, err := b.library.ListAll(ctx)
	b.recordQuery(ctx, msg.From, db.KindList, "", index.Len() > 0, err != nil)
	if err != nil {
		b.replyUpstreamError(ctx, chatID, "list", err)
		return
	}

	if index.Len() == 0 {
		b.sendHTML(chatID, emptyLibraryText)
		return
	}

	b.storeSession(chatID, index.All())
	b.sendSeriesPage(chatID, 0)
}

func (b *Bot) handleReload(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || !b.isAdmin(msg.From.ID) {
		b.sendHTML(msg.Chat.ID, unknownCommandText)
		return
	}

	b.library.Reload()
	zerolog.Ctx(ctx).Info().Int64("user_id", msg.From.ID).Msg("catalog reload requested")
	b.sendHTML(msg.Chat.ID, reloadedText)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}

	chatID := cb.Message.Chat.ID
	data := cb.Data

	// Пагинация
	if strings.HasPrefix(data, cbPagePrefix) {
		b.answerCallback(cb.ID, "Листаю…")

		page, err := strconv.Atoi(strings.TrimPrefix(data, cbPagePrefix))
		if err != nil {
			zerolog.Ctx(ctx).Warn().Str("data", data).Msg("invalid page callback")
			return
		}

		b.editSeriesPage(ctx, chatID, cb.Message.MessageID, page)
		return
	}

	// Выбор серии из списка
	if strings.HasPrefix(data, cbSeriesPrefix) {
		b.answerCallback(cb.ID, "Открываю…")

		i, err := strconv.Atoi(strings.TrimPrefix(data, cbSeriesPrefix))
		if err != nil {
			zerolog.Ctx(ctx).Warn().Str("data", data).Msg("invalid series callback")
			return
		}

		series, ok := b.seriesFromSession(chatID, i)
		if !ok {
			b.sendHTML(chatID, staleListText)
			return
		}
		b.sendHTML(chatID, formatSeries(series))
	}
}

func (b *Bot) storeSession(chatID int64, series []models.Series) {
	b.sessionsMu.Lock()
	defer b.sessionsMu.Unlock()

	b.sessions[chatID] = &listSession{
		series:   series,
		page:     0,
		pageSize: defaultPageSize,
	}
}

func (b *Bot) getSession(chatID int64) (*listSession, bool) {
	b.sessionsMu.Lock()
	defer b.sessionsMu.Unlock()

	session, ok := b.sessions[chatID]
	return session, ok
}

func (b *Bot) seriesFromSession(chatID int64, i int) (models.Series, bool) {
	session, ok := b.getSession(chatID)
	if !ok || i < 0 || i >= len(session.series) {
		return models.Series{}, false
	}
	return session.series[i], true
}

func (b *Bot) buildPage(chatID int64, page int) (string, tgbotapi.InlineKeyboardMarkup, bool) {
	session, ok := b.getSession(chatID)
	if !ok || len(session.series) == 0 {
		return "", tgbotapi.InlineKeyboardMarkup{}, false
	}

	text, markup, page := renderSeriesPage(session.series, page, session.pageSize)

	b.sessionsMu.Lock()
	session.page = page
	b.sessionsMu.Unlock()

	return text, markup, true
}

func (b *Bot) sendSeriesPage(chatID int64, page int) {
	text, markup, ok := b.buildPage(chatID, page)
	if !ok {
		b.sendHTML(chatID, staleListText)
		return
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	b.send(msg)
}

func (b *Bot) editSeriesPage(ctx context.Context, chatID int64, messageID int, page int) {
	text, markup, ok := b.buildPage(chatID, page)
	if !ok {
		b.sendHTML(chatID, staleListText)
		return
	}

	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	edit.ReplyMarkup = &markup
	if _, err := b.bot.Send(edit); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("edit message")
	}
}

func (b *Bot) replyUpstreamError(ctx context.Context, chatID int64, op string, err error) {
	zerolog.Ctx(ctx).Error().Err(err).Str("op", op).Msg("library unavailable")
	b.sendHTML(chatID, upstreamErrorText)
}

func (b *Bot) recordQuery(ctx context.Context, from *tgbotapi.User, kind, query string, found, failed bool) {
	if b.store == nil || from == nil {
		return
	}

	log := zerolog.Ctx(ctx)
	if err := b.store.EnsureUser(ctx, from.ID, from.UserName); err != nil {
		log.Error().Err(err).Msg("EnsureUser")
		return
	}

	rec := db.QueryRecord{UserID: from.ID, Kind: kind, Query: query, Found: found, Failed: failed}
	if err := b.store.LogQuery(ctx, rec); err != nil {
		log.Error().Err(err).Msg("LogQuery")
	}
}

func (b *Bot) answerCallback(id, text string) {
	if _, err := b.bot.Request(tgbotapi.NewCallback(id, text)); err != nil {
		b.log.Warn().Err(err).Msg("answer callback")
	}
}

// sendHTML режет длинный ответ на части и отправляет их по очереди.
func (b *Bot) sendHTML(chatID int64, text string) {
	for _, part := range splitMessage(text, maxMessageLen) {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		b.send(msg)
	}
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.bot.Send(c); err != nil {
		b.log.Error().Err(err).Msg("send message")
	}
}
