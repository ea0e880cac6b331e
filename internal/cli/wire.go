package cli

import (
	"fmt"

	"github.com/rs/zerolog"

	"libbot/internal/catalog"
	"libbot/internal/config"
	"libbot/internal/fetch"
	"libbot/internal/logger"
	"libbot/internal/network"
	"libbot/internal/service"
	"libbot/internal/source"
)

// app собирает все, что нужно команде для ответа на запросы к библиотеке.
type app struct {
	cfg     *config.AppConfig
	log     zerolog.Logger
	cache   *catalog.Cache
	library *service.Library
}

func loadConfig() (*config.AppConfig, zerolog.Logger, error) {
	cfg, err := config.Load(envFile, configFile)
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	log := logger.New(logger.Options{
		Level:      cfg.Config.LogLevel,
		Path:       cfg.Config.LogPath,
		MaxSize:    cfg.Config.LogMaxSize,
		MaxBackups: cfg.Config.LogMaxBackups,
	})
	return cfg, log, nil
}

func newApp(cfg *config.AppConfig, log zerolog.Logger) (*app, error) {
	c := cfg.Config

	client, err := network.NewClient(c.ProxyAddr, c.HTTPTimeout)
	if err != nil {
		return nil, fmt.Errorf("http client: %w", err)
	}

	fetcher := fetch.New(client, fetch.RetryPolicy{MaxAttempts: c.RetryAttempts, Delay: c.RetryDelay}, log)

	gh := source.NewGitHub(fetcher, c.GitHubRepo, c.GitHubBranch,
		source.WithAPIURL(c.GitHubAPIURL),
		source.WithToken(c.GitHubToken),
	)

	var listing catalog.ListingSource
	switch c.ListingSource {
	case "html":
		listing = source.NewHTMLIndex(fetcher, c.ListingURL)
	default:
		listing = gh.Listing(c.LibraryPath)
	}

	var document service.DocumentSource
	if c.SeriesDocURL != "" {
		document = source.NewRawDocument(fetcher, c.SeriesDocURL)
	} else {
		document = gh.Document(c.SeriesDocPath)
	}

	opts := []catalog.Option{
		catalog.WithTTL(c.CatalogTTL),
		catalog.WithLogger(log),
	}
	if c.ShortenLinks {
		opts = append(opts,
			catalog.WithShortener(source.NewTinyURL(fetcher, c.ShortenerURL, c.ShortenRate)),
			catalog.WithConcurrency(c.ShortenConcurrency),
		)
	}

	cache := catalog.New(listing, opts...)

	log.Debug().
		Str("listing", c.ListingSource).
		Bool("shorten", c.ShortenLinks).
		Int("retry_attempts", c.RetryAttempts).
		Dur("retry_delay", c.RetryDelay).
		Msg("library wired")

	return &app{
		cfg:     cfg,
		log:     log,
		cache:   cache,
		library: service.NewLibrary(cache, document, log),
	}, nil
}
