// Command coderd serves the survey-coder pipeline over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	surveycoder "github.com/ferro-labs/survey-coder"
	"github.com/ferro-labs/survey-coder/brandcheck"
	"github.com/ferro-labs/survey-coder/internal/cache/sqlstore"
	"github.com/ferro-labs/survey-coder/internal/logging"
	"github.com/ferro-labs/survey-coder/internal/ratelimit"
	"github.com/ferro-labs/survey-coder/internal/requestlog"
	"github.com/ferro-labs/survey-coder/internal/search"
	"github.com/ferro-labs/survey-coder/internal/translate"
	"github.com/ferro-labs/survey-coder/internal/version"
	"github.com/ferro-labs/survey-coder/providers"
)

func main() {
	logging.Setup(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	if err := run(); err != nil {
		slog.Error("coderd exited", "error", err.Error())
		os.Exit(1)
	}
}

func run() error {
	cfgPath := os.Getenv("SURVEYCODER_CONFIG")
	if cfgPath == "" {
		return errors.New("SURVEYCODER_CONFIG must point to a config file")
	}
	cfg, err := surveycoder.LoadConfig(cfgPath)
	if err != nil {
		return err
	}
	if err := surveycoder.ValidateConfig(*cfg); err != nil {
		return err
	}
	slog.Info("config loaded", "path", cfgPath, "models", len(cfg.Models), "routes", len(cfg.Routes))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := providers.NewRegistry()
	if err := registerProviders(ctx, registry, os.Getenv); err != nil {
		return err
	}
	if registry.Len() == 0 {
		return errors.New("no providers configured: set at least one of OPENAI_API_KEY, ANTHROPIC_API_KEY, GEMINI_API_KEY, BEDROCK_ENABLED or OLLAMA_HOST")
	}

	var enricher search.Enricher
	if cfg.Search.Backend == "duckduckgo" {
		enricher = search.NewDuckDuckGo(cfg.Search.URL)
	}

	opts, closers, err := pipelineOptions(*cfg, registry, enricher)
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()
	if err != nil {
		return err
	}

	coord, err := surveycoder.New(*cfg, opts...)
	if err != nil {
		return err
	}
	if err := coord.Validate(); err != nil {
		return err
	}

	if cfg.RequestLog.Driver != "" {
		w, err := requestlog.Open(cfg.RequestLog.Driver, cfg.RequestLog.DSN)
		if err != nil {
			return err
		}
		closers = append(closers, w)
		coord.AddHook(surveycoder.RequestLogHook(w))
	}
	if err := coord.Cache().StartSweeper(ctx, cfg.SweepInterval()); err != nil {
		return err
	}

	limiter := ratelimit.NewStore(envFloat("RATE_LIMIT_RPS", 10), envFloat("RATE_LIMIT_BURST", 20))
	go pruneLimiter(ctx, limiter)

	var corsOrigins []string
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		corsOrigins = strings.Split(origins, ",")
	}

	handler := newRouter(&server{
		coord:    coord,
		brands:   brandcheck.New(coord, enricher),
		registry: registry,
		limiter:  limiter,
	}, corsOrigins)

	addr := ":8080"
	if p := os.Getenv("PORT"); p != "" {
		addr = ":" + p
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err.Error())
		}
	}()

	slog.Info("coderd listening", "version", version.Short(), "addr", addr, "providers", registry.Len())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

// pipelineOptions builds the durable tier and the translation backend named
// in cfg. The returned closers must be closed on exit, even on error.
func pipelineOptions(cfg surveycoder.Config, registry *providers.Registry, enricher search.Enricher) ([]surveycoder.Option, []io.Closer, error) {
	var (
		opts    []surveycoder.Option
		closers []io.Closer
	)
	for _, name := range registry.List() {
		opts = append(opts, surveycoder.WithProviders(registry.MustGet(name)))
	}

	if d := cfg.Cache.Durable; d.Driver != "" {
		store, err := sqlstore.Open(d.Driver, d.DSN)
		if err != nil {
			return nil, closers, err
		}
		closers = append(closers, store)
		opts = append(opts, surveycoder.WithDurable(store))
	}

	switch cfg.Translation.Backend {
	case "libretranslate":
		opts = append(opts, surveycoder.WithTranslator(translate.NewLibreTranslate(cfg.Translation.URL, cfg.Translation.APIKey)))
	case "model":
		m, _ := cfg.Model(cfg.Translation.Model)
		p, ok := registry.Get(m.Provider)
		if !ok {
			return nil, closers, fmt.Errorf("translation model %s: provider %q is not registered", m.ID, m.Provider)
		}
		opts = append(opts, surveycoder.WithTranslator(translate.NewProviderTranslator(p, m)))
	}

	if enricher != nil {
		opts = append(opts, surveycoder.WithEnricher(enricher))
	}
	return opts, closers, nil
}

func pruneLimiter(ctx context.Context, store *ratelimit.Store) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := store.Prune(10 * time.Minute); n > 0 {
				slog.Debug("pruned idle rate limiters", "count", n)
			}
		}
	}
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		slog.Warn("ignoring invalid env value", "key", key, "value", v)
		return def
	}
	return f
}
