package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"libbot/internal/db"
	"libbot/internal/httpapi"
	"libbot/internal/logger"
	"libbot/internal/telegram"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Telegram bot and the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Config.RequireBot(); err != nil {
			return err
		}

		log.Info().Str("version", Version).Msg("=== LIBRARY BOT STARTING ===")

		// уровень логов меняется без перезапуска, если есть config.yaml
		cfg.DynamicReload(logger.SetLevel)

		a, err := newApp(cfg, log)
		if err != nil {
			return err
		}

		store, err := db.Open(cfg.Config.SQLitePath)
		if err != nil {
			return err
		}
		defer store.Close()
		log.Info().Str("path", cfg.Config.SQLitePath).Msg("SQLite")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// HTTP API для Mini App и health-check
		srv := &http.Server{
			Addr:              cfg.Config.HTTPAddr,
			Handler:           httpapi.New(store, a.cache, cfg.Config.TelegramToken, log).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Info().Str("addr", srv.Addr).Msg("HTTP API запущен")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("HTTP API")
				stop()
			}
		}()

		bot, err := telegram.NewBot(cfg.Config.TelegramToken, a.library, store, cfg.Config.IsAdmin, log)
		if err != nil {
			_ = srv.Close()
			return err
		}

		log.Info().Msg("Бот запущен! Открой Telegram и напиши /start или ключевые слова книги.")
		bot.Start(ctx)

		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}
