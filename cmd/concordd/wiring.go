package main

import (
	"context"
	"fmt"

	"github.com/concordhq/concord/internal/auth"
	"github.com/concordhq/concord/internal/config"
	"github.com/concordhq/concord/internal/consensus"
	"github.com/concordhq/concord/internal/httpapi"
	"github.com/concordhq/concord/internal/observability"
	"github.com/concordhq/concord/internal/providers"
	"github.com/concordhq/concord/internal/ratelimit"
	"github.com/concordhq/concord/internal/realtime"
	"github.com/concordhq/concord/internal/session"
	"github.com/concordhq/concord/internal/storage"
	"github.com/concordhq/concord/internal/tools"
	"github.com/concordhq/concord/internal/tools/drive"
	"github.com/concordhq/concord/internal/toolloop"
	"github.com/concordhq/concord/pkg/models"
)

// app bundles everything built from config, for runServe to start and
// stop in one place.
type app struct {
	server  *httpapi.Server
	stores  storage.StoreSet
	tracer  *observability.Tracer
	closers []func() error
}

func buildApp(cfg config.Config, logger *observability.Logger) (*app, error) {
	metrics := observability.NewMetrics()

	stores, storesCloser, err := buildStores(cfg, metrics)
	if err != nil {
		return nil, fmt.Errorf("build stores: %w", err)
	}

	registry := providers.NewRegistry(buildProviderCredentials(cfg))

	toolRegistry := tools.NewRegistry()
	driveTokens := newMemoryDriveTokenStore()
	var driveFacadeFor drive.FacadeFor
	var driveFacadesForHTTP func(userID string) (drive.Facade, error)
	if cfg.Google.ClientID != "" && cfg.Google.ClientSecret != "" {
		driveFacadeFor = newDriveFacadeFor(cfg.Google.ClientID, cfg.Google.ClientSecret, driveTokens)
		if err := drive.RegisterAll(toolRegistry, driveFacadeFor); err != nil {
			return nil, fmt.Errorf("register drive tools: %w", err)
		}
		driveFacadesForHTTP = newHTTPDriveFacadeFor(driveFacadeFor)
	}

	executor := tools.NewExecutor(toolRegistry, tools.DefaultExecutorConfig()).WithMetrics(metrics)
	loopConfig := toolloop.DefaultConfig()
	if cfg.ToolLoop.MaxIterations > 0 {
		loopConfig.MaxIterations = cfg.ToolLoop.MaxIterations
	}
	if cfg.ToolLoop.CallDeadline > 0 {
		loopConfig.ToolTimeout = cfg.ToolLoop.CallDeadline
	}
	loopFactory := func(a providers.Adapter) *toolloop.Loop {
		return toolloop.New(a, toolRegistry, executor, loopConfig)
	}
	tracer, shutdownTracer := observability.NewTracer(observability.TraceConfig{
		ServiceName:    cfg.Observability.Tracing.ServiceName,
		ServiceVersion: version,
		Endpoint:       cfg.Observability.Tracing.Endpoint,
	})

	judge := consensus.NewJudge(registry)
	providerLimiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerSecond: 5.0, BurstSize: 10, Enabled: true})
	engine := consensus.New(registry, toolRegistry, loopFactory, judge).
		WithMetrics(metrics).
		WithTracer(tracer).
		WithProviderRateLimiter(providerLimiter)

	hub := realtime.NewHub()
	coordinator := session.New(stores, engine, hub, session.Config{
		JudgeModel:           cfg.JudgeModel,
		GenerationTimeout:    cfg.ToolLoop.CallDeadline,
		DefaultContextWindow: cfg.Context.MaxChars,
	}, logger.Underlying()).WithTracer(tracer)

	authSvc := auth.NewService(auth.Config{
		JWTSecret:   cfg.Auth.JWTSecretKey,
		TokenExpiry: cfg.Auth.TokenExpiry,
	})
	authSvc.SetUserStore(&oauthUserStore{users: stores.Users})

	var googleProvider auth.OAuthProvider
	if cfg.Google.ClientID != "" && cfg.Google.ClientSecret != "" {
		googleProvider = auth.NewGoogleProvider(auth.OAuthProviderConfig{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURI,
			Scopes: []string{
				"openid", "email", "profile",
				"https://www.googleapis.com/auth/drive",
				"https://www.googleapis.com/auth/documents",
				"https://www.googleapis.com/auth/spreadsheets",
				"https://www.googleapis.com/auth/presentations",
			},
		})
		authSvc.RegisterProvider("google", googleProvider)
	}

	limiter := ratelimit.NewLimiter(ratelimit.DefaultConfig())

	server := httpapi.NewServer(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port), httpapi.Deps{
		Auth:         authSvc,
		Coordinator:  coordinator,
		Stores:       stores,
		Providers:    registry,
		DriveFacades: driveFacadesForHTTP,
		DriveTokens:  driveTokens,
		GoogleOAuth:  googleProvider,
		Logger:       logger,
		Metrics:      metrics,
		RateLimiter:  limiter,
	})

	closers := []func() error{storesCloser, func() error { return shutdownTracer(context.Background()) }}
	return &app{server: server, stores: stores, tracer: tracer, closers: closers}, nil
}

func buildStores(cfg config.Config, metrics *observability.Metrics) (storage.StoreSet, func() error, error) {
	if cfg.Database.URL == "" {
		stores := storage.NewMemoryStores()
		return stores, func() error { return nil }, nil
	}
	poolConfig := storage.DefaultPostgresConfig()
	if cfg.Database.MaxOpenConns > 0 {
		poolConfig.MaxOpenConns = cfg.Database.MaxOpenConns
	}
	if cfg.Database.MaxIdleConns > 0 {
		poolConfig.MaxIdleConns = cfg.Database.MaxIdleConns
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		poolConfig.ConnMaxLifetime = cfg.Database.ConnMaxLifetime
	}
	stores, err := storage.NewInstrumentedPostgresStoresFromDSN(cfg.Database.URL, poolConfig, metrics)
	if err != nil {
		return storage.StoreSet{}, nil, err
	}
	return stores, stores.Close, nil
}

func buildProviderCredentials(cfg config.Config) []models.ProviderCredentials {
	return []models.ProviderCredentials{
		{Provider: models.ProviderOpenAI, APIKey: cfg.Providers.OpenAI.APIKey},
		{Provider: models.ProviderGrok, APIKey: cfg.Providers.Grok.APIKey},
		{Provider: models.ProviderAnthropic, APIKey: cfg.Providers.Anthropic.APIKey},
		{Provider: models.ProviderDeepSeek, APIKey: cfg.Providers.DeepSeek.APIKey},
	}
}
