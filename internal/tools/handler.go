package tools

import (
	"context"
	"net/http"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"

	"github.com/cliolabs/clio/internal/document"
	"github.com/cliolabs/clio/internal/log"
)

// DocumentStore is the persistence surface the canvas tools need.
type DocumentStore interface {
	Save(ctx context.Context, doc document.Document) error
	ByID(ctx context.Context, id uuid.UUID) (document.Document, error)
	SaveSuggestions(ctx context.Context, suggestions []document.Suggestion) error
}

// DocumentResult is the structured outcome a canvas tool hands back to the
// model. Failures are carried in Error rather than as Go errors, so the
// model can read them and correct itself on the next turn.
type DocumentResult struct {
	ID      string `json:"id,omitempty"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Handler carries the dependencies of all tool executions. Genkit tool
// closures are thin adapters over its methods.
type Handler struct {
	g          *genkit.Genkit
	docs       DocumentStore
	weatherURL string
	client     *http.Client
	logger     log.Logger
}

// NewHandler creates a Handler. docs may be nil only when the canvas tools
// are never registered.
func NewHandler(g *genkit.Genkit, docs DocumentStore, logger log.Logger) *Handler {
	return &Handler{
		g:          g,
		docs:       docs,
		weatherURL: DefaultWeatherURL,
		client:     &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}
