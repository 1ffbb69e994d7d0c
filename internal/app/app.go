// Package app wires the application together: configuration, logging,
// database, genkit, retrieval, stores, the chat agent, and the HTTP server.
package app

import (
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cliolabs/clio/internal/api"
	"github.com/cliolabs/clio/internal/auth"
	"github.com/cliolabs/clio/internal/chat"
	"github.com/cliolabs/clio/internal/config"
	"github.com/cliolabs/clio/internal/conversation"
	"github.com/cliolabs/clio/internal/document"
	"github.com/cliolabs/clio/internal/log"
	"github.com/cliolabs/clio/internal/retrieval"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit    *genkit.Genkit
	Pool      *pgxpool.Pool
	Chats     *conversation.Store
	Documents *document.Store
	Retrieval *retrieval.Client
	Agent     *chat.Agent
	Auth      *auth.TokenAuthenticator
	Server    *api.Server
}

// Close releases all resources.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Info("database pool closed")
	}
}
