package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"retouch/internal/http/handlers"
	httpapi "retouch/internal/http/httpapi"
	"retouch/internal/infra"
	"retouch/internal/infra/geoip"
	mw "retouch/internal/middleware"
	"retouch/internal/studio"
)

func main() {
	// .env is optional
	_ = godotenv.Load()
	os.Exit(run())
}

// run returns the process exit code so deferred log sinks flush before exit.
func run() int {
	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	sinks, closeSinks, err := infra.OpenLogSinks(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "log sinks: %v\n", err)
		return 1
	}
	defer closeSinks()
	logger := infra.NewLogger(cfg.AppEnv, sinks...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, cleanup, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to build dependencies")
		return 1
	}
	defer cleanup()

	svc := studio.New(studio.Options{
		Validator:          deps.validator,
		Cache:              deps.cache,
		Limiter:            deps.limiter,
		Credits:            deps.credits,
		Moderator:          deps.moderator,
		Analyzer:           deps.analyzer,
		Editor:             deps.chain,
		Direct:             deps.direct,
		Store:              deps.store,
		Registry:           deps.registry,
		Tracker:            deps.tracker,
		WatermarkEnabled:   cfg.WatermarkEnabled,
		WatermarkText:      cfg.WatermarkText,
		PrivacyMode:        cfg.PrivacyMode,
		AnalysisCacheTTL:   cfg.AnalysisCacheTTL,
		GenerationCacheTTL: cfg.GenerationCacheTTL,
		EditTimeout:        cfg.EditTimeout,
		Logger:             logger,
	})

	app := &handlers.App{
		Studio:    svc,
		Moderator: deps.moderator,
		Fetcher:   deps.validator,
		Resizer:   deps.resizer,
		Credits:   deps.credits,
		Registry:  deps.registry,
		Store:     deps.store,
		Metrics:   deps.tracker,
		Cache:     deps.cache,
		Env: handlers.EnvPresence{
			GeminiAPIKey:     cfg.GeminiAPIKey != "",
			GeminiRESTURL:    cfg.GeminiRESTURL != "",
			NanoBananaURL:    cfg.NanoBananaURL != "",
			NanoBananaAPIKey: cfg.NanoBananaAPIKey != "" || cfg.GeminiAPIKey != "",
			VisionAPIKey:     cfg.VisionAPIKey != "",
			Redis:            cfg.RedisURL != "",
			Database:         cfg.DatabaseURL != "",
		},
		Production:     cfg.IsProduction(),
		MaxUploadBytes: deps.validator.MaxBytes(),
		Logger:         logger,
	}

	var country mw.CountryLookup
	if cfg.GeoIPDBPath != "" {
		res, err := geoip.Open(cfg.GeoIPDBPath)
		if err != nil {
			logger.Warn().Err(err).Str("path", cfg.GeoIPDBPath).Msg("geoip disabled")
		} else {
			defer res.Close()
			country = geoip.Lookup(res)
		}
	}

	ipLimiter := mw.NewIPLimiterStore(cfg.IPRatePerSecond, cfg.IPRateBurst, 10*time.Minute)
	ipLimiter.StartJanitor(ctx, time.Minute)

	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:      logger,
		CORSOrigins: cfg.CORSOrigins,
		AdminToken:  cfg.AdminToken,
		Country:     country,
		IPLimiter:   ipLimiter,
		UploadDir:   cfg.UploadDir,
		Production:  cfg.IsProduction(),
	})

	server := infra.NewHTTPServer(cfg, router)

	logger.Info().
		Str("addr", server.Addr()).
		Str("storage", deps.store.Name()).
		Int("editors", deps.chain.Len()).
		Bool("credits_enforced", deps.credits.Enforced()).
		Msg("API listening")
	if err := server.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("http server failed")
		return 1
	}
	logger.Info().Msg("server stopped")
	return 0
}
