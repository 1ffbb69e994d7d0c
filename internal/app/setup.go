package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cliolabs/clio/db"
	"github.com/cliolabs/clio/internal/api"
	"github.com/cliolabs/clio/internal/auth"
	"github.com/cliolabs/clio/internal/chat"
	"github.com/cliolabs/clio/internal/config"
	"github.com/cliolabs/clio/internal/conversation"
	"github.com/cliolabs/clio/internal/document"
	"github.com/cliolabs/clio/internal/log"
	"github.com/cliolabs/clio/internal/retrieval"
	"github.com/cliolabs/clio/internal/tools"
)

// Setup creates and initializes the application. Call Close to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	// On error, release everything already initialized.
	defer func() {
		if retErr != nil {
			a.Close()
		}
	}()

	pool, err := providePool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	a.Chats = conversation.NewStore(pool, logger)
	a.Documents = document.NewStore(pool, logger)

	retriever, err := retrieval.New(ctx, retrieval.Config{
		Endpoint:          cfg.RetrievalEndpoint,
		Session:           cfg.RetrievalSession,
		CredentialsBase64: cfg.RetrievalCredentials,
		CredentialsFile:   cfg.RetrievalCredentialsFile,
		PageSize:          cfg.RetrievalPageSize,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating retrieval client: %w", err)
	}
	a.Retrieval = retriever

	registry := tools.Register(g, tools.NewHandler(g, a.Documents, logger))

	agent, err := chat.New(chat.Config{
		Genkit:    g,
		Retriever: retriever,
		Chats:     a.Chats,
		Tools:     registry,
		Provider:  cfg.Provider,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating chat agent: %w", err)
	}
	a.Agent = agent

	authenticator, err := auth.NewTokenAuthenticator([]byte(cfg.AuthSecret))
	if err != nil {
		return nil, fmt.Errorf("creating authenticator: %w", err)
	}
	a.Auth = authenticator

	server, err := api.NewServer(api.ServerConfig{
		Logger:      logger,
		Agent:       agent,
		Auth:        authenticator,
		Chats:       a.Chats,
		Suggestions: a.Documents,
		Pool:        pool,
		CORSOrigins: cfg.CORSOrigins,
		TrustProxy:  cfg.TrustProxy,
		RateBurst:   cfg.RateBurst,
		IsDev:       cfg.Dev,
	})
	if err != nil {
		return nil, fmt.Errorf("creating API server: %w", err)
	}
	a.Server = server

	return a, nil
}

// provideGenkit initializes genkit with the configured AI provider plugin.
// API keys are read by the plugins from the environment.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	var g *genkit.Genkit

	switch cfg.Provider {
	case config.ProviderGoogleAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with googleai provider")
		}
		logger.Info("initialized genkit with googleai provider")

	default: // openai
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		logger.Info("initialized genkit with openai provider")
	}

	return g, nil
}

// providePool runs migrations and creates the PostgreSQL connection pool.
func providePool(ctx context.Context, cfg *config.Config, logger log.Logger) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.DatabaseURL, logger); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}
