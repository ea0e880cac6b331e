package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store хранит, кто что спрашивал у бота. Сам каталог в БД не попадает.
type Store struct {
	db *sql.DB
}

// Типы запросов.
const (
	KindBook   = "book"
	KindSeries = "series"
	KindList   = "list"
)

type QueryRecord struct {
	UserID    int64     `json:"user_id"`
	Kind      string    `json:"kind"`
	Query     string    `json:"query"`
	Found     bool      `json:"found"`
	Failed    bool      `json:"failed"`
	CreatedAt time.Time `json:"created_at"`
}

type Stats struct {
	Users    int64 `json:"users"`
	Queries  int64 `json:"queries"`
	Found    int64 `json:"found"`
	Failures int64 `json:"failures"`
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("путь к SQLite пустой")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию БД: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия БД: %w", err)
	}

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragma := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	}

	for _, stmt := range pragma {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("ошибка PRAGMA: %w", err)
		}
	}
	return nil
}

func migrate(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS users (
	telegram_id INTEGER PRIMARY KEY,
	username TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS queries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	kind TEXT NOT NULL,
	query TEXT,
	found INTEGER NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	FOREIGN KEY(user_id) REFERENCES users(telegram_id)
);

CREATE INDEX IF NOT EXISTS idx_queries_user_id ON queries(user_id);
`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("ошибка миграции: %w", err)
	}
	return nil
}

func (s *Store) EnsureUser(ctx context.Context, telegramID int64, username string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO users (telegram_id, username)
VALUES (?, ?)
ON CONFLICT(telegram_id) DO UPDATE SET username = excluded.username
`, telegramID, username)
	if err != nil {
		return fmt.Errorf("ошибка сохранения пользователя: %w", err)
	}
	return nil
}

// LogQuery записывает один запрос. Пользователь должен существовать (см. EnsureUser).
func (s *Store) LogQuery(ctx context.Context, rec QueryRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO queries (user_id, kind, query, found, failed, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`, rec.UserID, rec.Kind, rec.Query, rec.Found, rec.Failed, rec.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("ошибка записи запроса: %w", err)
	}
	return nil
}

// RecentQueries возвращает запросы пользователя, новые первыми.
func (s *Store) RecentQueries(ctx context.Context, userID int64, limit int) ([]QueryRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT user_id, kind, query, found, failed, created_at
FROM queries
WHERE user_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?
`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения истории: %w", err)
	}
	defer rows.Close()

	var items []QueryRecord
	for rows.Next() {
		var rec QueryRecord
		var query sql.NullString
		if err := rows.Scan(&rec.UserID, &rec.Kind, &query, &rec.Found, &rec.Failed, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка скана истории: %w", err)
		}
		if query.Valid {
			rec.Query = query.String
		}
		items = append(items, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка rows: %w", err)
	}
	return items, nil
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
SELECT
	(SELECT COUNT(*) FROM users),
	COUNT(*),
	COALESCE(SUM(found), 0),
	COALESCE(SUM(failed), 0)
FROM queries
`).Scan(&st.Users, &st.Queries, &st.Found, &st.Failures)
	if err != nil {
		return Stats{}, fmt.Errorf("ошибка подсчета статистики: %w", err)
	}
	return st, nil
}
