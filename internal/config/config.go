package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config — структура, хранящая все настройки приложения.
type Config struct {
	TelegramToken string  `mapstructure:"telegram_token"`
	AdminIDs      []int64 `mapstructure:"admin_ids"`

	GitHubRepo    string `mapstructure:"github_repo"`
	GitHubBranch  string `mapstructure:"github_branch"`
	GitHubToken   string `mapstructure:"github_token"`
	GitHubAPIURL  string `mapstructure:"github_api_url"`
	LibraryPath   string `mapstructure:"library_path"`
	SeriesDocPath string `mapstructure:"series_doc_path"`
	SeriesDocURL  string `mapstructure:"series_doc_url"`

	// "github" или "html"
	ListingSource string `mapstructure:"listing_source"`
	ListingURL    string `mapstructure:"listing_url"`

	ShortenLinks       bool   `mapstructure:"shorten_links"`
	ShortenerURL       string `mapstructure:"shortener_url"`
	ShortenConcurrency int    `mapstructure:"shorten_concurrency"`
	ShortenRate        int    `mapstructure:"shorten_rate"`

	ProxyAddr     string        `mapstructure:"proxy_addr"`
	HTTPTimeout   time.Duration `mapstructure:"http_timeout"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	CatalogTTL    time.Duration `mapstructure:"catalog_ttl"`

	HTTPAddr   string `mapstructure:"http_addr"`
	SQLitePath string `mapstructure:"sqlite_path"`

	LogLevel      string `mapstructure:"log_level"`
	LogPath       string `mapstructure:"log_path"`
	LogMaxSize    int    `mapstructure:"log_max_size"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`
}

// AppConfig держит Config вместе с viper, чтобы можно было следить за файлом конфигурации.
type AppConfig struct {
	Config *Config

	v *viper.Viper
	m sync.Mutex
}

// Load считывает .env файл, необязательный YAML файл и переменные окружения.
// Пустой envFile означает ".env" в текущей директории.
func Load(envFile, configFile string) (*AppConfig, error) {
	// Если файла нет, ничего страшного (вдруг мы запустили в Docker и передали env напрямую).
	if envFile == "" {
		_ = godotenv.Load()
	} else if err := godotenv.Load(envFile); err != nil {
		return nil, errors.Wrapf(err, "load env file %s", envFile)
	}

	v := viper.New()
	defaults(v)
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", configFile)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "read config file")
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}

	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":" + withDefault(os.Getenv("PORT"), "8080")
	}
	cfg.SQLitePath = resolvePath(cfg.SQLitePath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &AppConfig{Config: cfg, v: v}, nil
}

func defaults(v *viper.Viper) {
	v.SetDefault("telegram_token", "")
	v.SetDefault("admin_ids", []int64{})
	v.SetDefault("github_repo", "Lens-lzy/trading-learning-lib")
	v.SetDefault("github_branch", "main")
	v.SetDefault("github_token", "")
	v.SetDefault("github_api_url", "https://api.github.com")
	v.SetDefault("library_path", "Lib")
	v.SetDefault("series_doc_path", "README.md")
	v.SetDefault("series_doc_url", "")
	v.SetDefault("listing_source", "github")
	v.SetDefault("listing_url", "")
	v.SetDefault("shorten_links", false)
	v.SetDefault("shortener_url", "https://tinyurl.com/api-create.php")
	v.SetDefault("shorten_concurrency", 8)
	v.SetDefault("shorten_rate", 5)
	v.SetDefault("proxy_addr", "")
	v.SetDefault("http_timeout", 30*time.Second)
	v.SetDefault("retry_attempts", 3)
	v.SetDefault("retry_delay", time.Second)
	v.SetDefault("catalog_ttl", time.Duration(0))
	v.SetDefault("http_addr", "")
	v.SetDefault("sqlite_path", "data/app.db")
	v.SetDefault("log_level", "DEBUG")
	v.SetDefault("log_path", "")
	v.SetDefault("log_max_size", 50)
	v.SetDefault("log_max_backups", 3)
}

// Validate проверяет, что настройки не противоречат друг другу.
// TELEGRAM_TOKEN проверяется отдельно: CLI-запросы работают и без бота.
func (c *Config) Validate() error {
	if !strings.Contains(c.GitHubRepo, "/") && c.ListingSource == "github" {
		return fmt.Errorf("GITHUB_REPO должен иметь вид owner/repo, получено %q", c.GitHubRepo)
	}

	switch c.ListingSource {
	case "github":
	case "html":
		if c.ListingURL == "" {
			return fmt.Errorf("LISTING_URL обязателен для LISTING_SOURCE=html")
		}
	default:
		return fmt.Errorf("неизвестный LISTING_SOURCE %q", c.ListingSource)
	}

	if c.RetryAttempts < 1 {
		return fmt.Errorf("RETRY_ATTEMPTS должен быть >= 1, получено %d", c.RetryAttempts)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("RETRY_DELAY не может быть отрицательным")
	}
	if c.CatalogTTL < 0 {
		return fmt.Errorf("CATALOG_TTL не может быть отрицательным")
	}
	return nil
}

// RequireBot проверяет настройки, без которых бот не стартует.
func (c *Config) RequireBot() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("переменная TELEGRAM_TOKEN не задана")
	}
	return nil
}

func (c *Config) IsAdmin(id int64) bool {
	for _, admin := range c.AdminIDs {
		if admin == id {
			return true
		}
	}
	return false
}

// DynamicReload следит за файлом конфигурации и применяет новый уровень логов.
// Без файла конфигурации ничего не делает.
func (c *AppConfig) DynamicReload(onLogLevel func(level string)) {
	if c.v.ConfigFileUsed() == "" {
		return
	}

	c.v.OnConfigChange(func(_ fsnotify.Event) {
		c.m.Lock()
		defer c.m.Unlock()

		level := c.v.GetString("log_level")
		c.Config.LogLevel = level
		onLogLevel(level)
	})
	c.v.WatchConfig()
}

func withDefault(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func resolvePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return p
	}
	if filepath.IsAbs(p) {
		return p
	}

	if cwd, err := os.Getwd(); err == nil {
		return filepath.Clean(filepath.Join(cwd, p))
	}

	return p
}
