package main

import (
	"context"
	"net/http"
	"time"

	"retouch/internal/analyzer"
	"retouch/internal/cache"
	"retouch/internal/credits"
	"retouch/internal/imaging"
	"retouch/internal/infra"
	"retouch/internal/metrics"
	"retouch/internal/moderation"
	"retouch/internal/providers/gemini"
	editor "retouch/internal/providers/image"
	"retouch/internal/providers/vision"
	"retouch/internal/ratelimit"
	"retouch/internal/registry"
	"retouch/internal/storage"
)

type deps struct {
	validator *imaging.Validator
	resizer   *imaging.Resizer
	cache     cache.Cache
	limiter   ratelimit.Limiter
	credits   *credits.Service
	moderator *moderation.Moderator
	analyzer  *analyzer.Analyzer
	chain     *editor.Chain
	direct    editor.Editor
	store     storage.Store
	registry  *registry.Registry
	tracker   *metrics.Tracker
}

// buildDeps connects optional backends. Redis and Postgres replace the
// in-memory cache, limiter and ledger when configured.
func buildDeps(ctx context.Context, cfg *infra.Config, logger infra.Logger) (*deps, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*deps, func(), error) {
		cleanup()
		return nil, func() {}, err
	}

	httpClient := &http.Client{Timeout: cfg.AnalysisTimeout}
	d := &deps{
		validator: imaging.NewValidator(imaging.ValidatorOptions{
			MaxSizeMB:    cfg.MaxImageSizeMB,
			MinDimension: cfg.MinImageDimension,
			HTTPClient:   &http.Client{Timeout: 30 * time.Second},
		}),
		registry: registry.New(cfg.RegistryPath),
		tracker:  metrics.NewTracker(logger),
	}
	d.resizer = imaging.NewResizer(d.validator, cfg.ResizeCacheDir)

	if cfg.RedisURL != "" {
		client, err := infra.NewRedisClient(ctx, cfg)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() { _ = client.Close() })
		d.cache = cache.NewRedis(client)
		d.limiter = ratelimit.NewRedis(client, cfg.SessionRateLimitMax, cfg.SessionRateLimitWindow)
	} else {
		mem := cache.NewMemory(time.Minute)
		closers = append(closers, func() { _ = mem.Close() })
		d.cache = mem
		lim := ratelimit.NewMemory(cfg.SessionRateLimitMax, cfg.SessionRateLimitWindow)
		go sweep(ctx, lim, time.Minute)
		d.limiter = lim
	}

	var ledger credits.Ledger = credits.NewMemoryLedger(cfg.StartingCredits)
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, pool.Close)
		pg := credits.NewPostgresLedger(infra.NewSQLRunner(pool, logger), cfg.StartingCredits)
		if err := pg.EnsureSchema(ctx); err != nil {
			return fail(err)
		}
		ledger = pg
	}
	d.credits = credits.NewService(ledger, credits.Options{
		Enforce:        cfg.EnforceCredits,
		CostAnalysis:   cfg.CreditCostAnalysis,
		CostGeneration: cfg.CreditCostGeneration,
	})

	store, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	d.store = store

	visionClient := vision.NewClient(vision.Options{
		APIKey:     cfg.VisionAPIKey,
		BaseURL:    cfg.VisionBaseURL,
		HTTPClient: httpClient,
		Logger:     &logger,
	})
	d.moderator = moderation.New(cfg.ModerationEnabled, visionClient, d.validator, logger)

	rest := gemini.NewRESTClient(gemini.RESTOptions{
		Endpoint:   cfg.GeminiRESTURL,
		APIKey:     cfg.GeminiAPIKey,
		HTTPClient: &http.Client{Timeout: cfg.EditTimeout},
		Logger:     &logger,
	})

	analyzerOpts := analyzer.Options{
		Vision:  visionClient,
		Advisor: rest,
		Fetch:   d.validator,
		Timeout: cfg.AnalysisTimeout,
		Logger:  logger,
	}
	var editors []editor.Editor
	if cfg.GeminiAPIKey != "" {
		gc, err := gemini.NewClient(ctx, gemini.Options{
			APIKey:     cfg.GeminiAPIKey,
			Model:      cfg.GeminiModel,
			ImageModel: cfg.GeminiImageModel,
			HTTPClient: &http.Client{Timeout: cfg.EditTimeout},
			Logger:     &logger,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("gemini sdk disabled")
		} else {
			analyzerOpts.Model = gc
			ge := editor.NewGeminiEditor(gc, d.validator)
			editors = append(editors, ge)
			d.direct = ge
		}
	}
	if cfg.NanoBananaURL != "" {
		key := cfg.NanoBananaAPIKey
		if key == "" {
			key = cfg.GeminiAPIKey
		}
		editors = append(editors, editor.NewNanoBanana(cfg.NanoBananaURL, key, &http.Client{Timeout: cfg.EditTimeout}))
	}
	if rest.Enabled() {
		editors = append(editors, editor.NewGeminiRESTEditor(rest))
	}
	d.analyzer = analyzer.New(analyzerOpts)
	d.chain = editor.NewChain(editor.ChainOptions{Logger: logger}, editors...)

	return d, cleanup, nil
}

func sweep(ctx context.Context, lim *ratelimit.Memory, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			lim.Sweep()
		}
	}
}
