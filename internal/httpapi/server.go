package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"libbot/internal/db"
)

// Store описывает часть db.Store, которую читает API.
type Store interface {
	EnsureUser(ctx context.Context, telegramID int64, username string) error
	RecentQueries(ctx context.Context, userID int64, limit int) ([]db.QueryRecord, error)
	Stats(ctx context.Context) (db.Stats, error)
}

// CatalogState сообщает, загружен ли каталог книг.
type CatalogState interface {
	Loaded() bool
}

type Server struct {
	store    Store
	catalog  CatalogState
	botToken string
	log      zerolog.Logger
	now      func() time.Time
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func New(store Store, catalog CatalogState, botToken string, log zerolog.Logger) *Server {
	return &Server{
		store:    store,
		catalog:  catalog,
		botToken: botToken,
		log:      log.With().Str("component", "httpapi").Logger(),
		now:      time.Now,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/history", s.handleHistory)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		mux.ServeHTTP(rec, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Hello, world!"))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	loaded := false
	if s.catalog != nil {
		loaded = s.catalog.Loaded()
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "catalog_loaded": loaded})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("stats")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "db error"})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	s.withUser(w, r, func(ctx context.Context, user TelegramUser) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		items, err := s.store.RecentQueries(ctx, user.ID, limit)
		if err != nil {
			s.log.Error().Err(err).Int64("user_id", user.ID).Msg("history")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "db error"})
			return
		}
		if items == nil {
			items = []db.QueryRecord{}
		}
		writeJSON(w, http.StatusOK, items)
	})
}

func (s *Server) withUser(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, user TelegramUser)) {
	initData := extractInitData(r)
	if initData == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "initData required"})
		return
	}

	user, err := ValidateInitData(initData, s.botToken, s.now())
	if err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("auth: invalid initData")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid initData"})
		return
	}

	if err := s.store.EnsureUser(r.Context(), user.ID, user.Username); err != nil {
		s.log.Error().Err(err).Msg("EnsureUser")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "db error"})
		return
	}

	fn(r.Context(), user)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func extractInitData(r *http.Request) string {
	if v := r.Header.Get("X-Telegram-InitData"); v != "" {
		return v
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		if strings.HasPrefix(strings.ToLower(auth), "tma ") {
			return strings.TrimSpace(auth[4:])
		}
	}
	return r.URL.Query().Get("initData")
}
