package service

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/okian/earnsignal/internal/adapters/ai"
	"github.com/okian/earnsignal/internal/adapters/cache"
	"github.com/okian/earnsignal/internal/adapters/fetcher"
	"github.com/okian/earnsignal/internal/adapters/fmp"
	"github.com/okian/earnsignal/internal/adapters/ratelimit"
	"github.com/okian/earnsignal/internal/config"
	"github.com/okian/earnsignal/pkg/logger"
)

// caches opens the HTTP and AI response caches for cfg. The returned closers
// must be closed when the service stops.
func caches(cfg *config.Config, l logger.Logger) (httpCache, aiCache cache.Store, closers []io.Closer, err error) {
	if !cfg.UseCache {
		return cache.Nop{}, cache.Nop{}, nil, nil
	}
	switch cfg.CacheBackend {
	case config.CacheBadger:
		db, err := cache.OpenBadger(filepath.Join(cfg.CacheDir, "badger"))
		if err != nil {
			return nil, nil, nil, err
		}
		httpCache = db.Store(cache.WithNamespace(cache.NamespaceHTTP), cache.WithLogger(l))
		aiCache = db.Store(cache.WithNamespace(cache.NamespaceAI), cache.WithLogger(l))
		return httpCache, aiCache, []io.Closer{httpCache, aiCache, db}, nil
	default:
		hs, err := cache.NewFileStore(cfg.CacheDir, cache.WithNamespace(cache.NamespaceHTTP), cache.WithLogger(l))
		if err != nil {
			return nil, nil, nil, err
		}
		as, err := cache.NewFileStore(cfg.CacheDir, cache.WithNamespace(cache.NamespaceAI), cache.WithLogger(l))
		if err != nil {
			return nil, nil, nil, err
		}
		return hs, as, []io.Closer{hs, as}, nil
	}
}

func newDataSource(cfg *config.Config, store cache.Store, l logger.Logger) *fmp.Client {
	f := fetcher.New(
		fetcher.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		fetcher.WithCache(store),
		fetcher.WithAdmission(ratelimit.NewAdmission("data_api", cfg.DataConcurrency)),
		fetcher.WithMaxRetries(cfg.FetchMaxRetries),
		fetcher.WithBackoffUnit(cfg.FetchBackoff),
		fetcher.WithLogger(l.Named("fetcher")),
	)
	return fmp.New(f, cfg.DataAPIKey, fmp.WithBaseURL(cfg.DataBaseURL), fmp.WithLogger(l.Named("fmp")))
}

func newAnalyst(cfg *config.Config, store cache.Store, l logger.Logger) (*ai.Analyst, error) {
	client, err := ai.NewOpenAIClient(ai.ClientConfig{
		Provider:    cfg.AIProvider,
		Endpoint:    cfg.AIEndpoint,
		Key:         cfg.AIKey,
		Model:       cfg.AIModel,
		MaxTokens:   cfg.AIMaxTokens,
		Temperature: cfg.AITemperature,
		TopP:        cfg.AITopP,
	}, l.Named("ai"))
	if err != nil {
		return nil, err
	}
	gateway := ai.NewGateway(client,
		ai.WithCache(store),
		ai.WithTokenBucket(ratelimit.NewTokenBucket(cfg.AITokensPerSecond, cfg.AIBurst)),
		ai.WithAdmission(ratelimit.NewAdmission("ai_api", cfg.AIConcurrency)),
		ai.WithMaxRetries(cfg.AIMaxRetries),
		ai.WithLogger(l.Named("ai-gateway")),
	)
	prompts, err := ai.LoadPrompts(cfg.PromptsDir)
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	opts := []ai.AnalystOption{ai.WithAnalystLogger(l.Named("analyst"))}
	if cfg.Constrained() {
		opts = append(opts, ai.WithTranscriptLimit(cfg.AITranscriptLimit))
	}
	return ai.NewAnalyst(gateway, prompts, opts...), nil
}
