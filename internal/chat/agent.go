// Package chat orchestrates one grounded chat turn: retrieval, generation
// with tools, event streaming, and transcript persistence.
package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/cliolabs/clio/internal/auth"
	"github.com/cliolabs/clio/internal/conversation"
	"github.com/cliolabs/clio/internal/log"
	"github.com/cliolabs/clio/internal/model"
	"github.com/cliolabs/clio/internal/prompt"
	"github.com/cliolabs/clio/internal/retrieval"
	"github.com/cliolabs/clio/internal/stream"
	"github.com/cliolabs/clio/internal/tools"
)

// groundedAnswerPrefix introduces the retrieved answer in the transcript.
const groundedAnswerPrefix = "Here is the document-based answer:\n"

// defaultMaxTurns bounds tool-call rounds per turn.
const defaultMaxTurns = 5

// Retriever supplies the grounding answer for a query. Implementations
// must not fail the turn; they return a sentinel answer instead.
type Retriever interface {
	Answer(ctx context.Context, query string) string
}

// ChatStore persists finished transcripts.
type ChatStore interface {
	Save(ctx context.Context, chat conversation.Chat) error
}

// ToolSelector yields the tool refs active for a model.
type ToolSelector interface {
	ForModel(m model.Model) []ai.ToolRef
}

// Config holds Agent dependencies.
type Config struct {
	Genkit    *genkit.Genkit
	Retriever Retriever
	Chats     ChatStore
	Tools     ToolSelector
	// Provider prefixes catalog model names into full genkit names,
	// e.g. "openai" turns gpt-4o into openai/gpt-4o.
	Provider string
	// MaxTurns bounds tool-call rounds. Default 5.
	MaxTurns int
	// Retry configures backoff for transient generation failures.
	Retry RetryConfig
	// RateLimiter throttles generation attempts. Optional.
	RateLimiter *rate.Limiter
	Logger      log.Logger
}

func (c *Config) validate() error {
	if c.Genkit == nil {
		return errors.New("chat: genkit instance is required")
	}
	if c.Retriever == nil {
		return errors.New("chat: retriever is required")
	}
	if c.Chats == nil {
		return errors.New("chat: chat store is required")
	}
	if c.Tools == nil {
		return errors.New("chat: tool selector is required")
	}
	if c.Provider == "" {
		return errors.New("chat: provider is required")
	}
	if c.Logger == nil {
		return errors.New("chat: logger is required")
	}
	return nil
}

// Agent runs chat turns.
type Agent struct {
	g           *genkit.Genkit
	retriever   Retriever
	chats       ChatStore
	tools       ToolSelector
	provider    string
	maxTurns    int
	retryConfig RetryConfig
	rateLimiter *rate.Limiter
	logger      log.Logger
}

// New creates an Agent from cfg.
func New(cfg Config) (*Agent, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	retryConfig := cfg.Retry
	if retryConfig.MaxRetries == 0 && retryConfig.InitialInterval == 0 {
		retryConfig = DefaultRetryConfig()
	}

	return &Agent{
		g:           cfg.Genkit,
		retriever:   cfg.Retriever,
		chats:       cfg.Chats,
		tools:       cfg.Tools,
		provider:    cfg.Provider,
		maxTurns:    maxTurns,
		retryConfig: retryConfig,
		rateLimiter: cfg.RateLimiter,
		logger:      cfg.Logger,
	}, nil
}

// Request is one inbound chat turn.
type Request struct {
	ChatID   string
	Messages []*ai.Message
	Model    model.Model
	User     *auth.User
}

// Run executes the turn, writing every event onto s in production order,
// and closes s when done. Persistence is best-effort: its failures are
// logged, never surfaced.
func (a *Agent) Run(ctx context.Context, req Request, s *stream.Stream) error {
	defer s.Close()

	retrieved := a.retrieve(ctx, req.Messages)

	// The retrieved answer joins the transcript as a model message so the
	// follow-up generation and the persisted chat both carry it.
	history := deepCopyMessages(req.Messages)
	history = append(history, ai.NewModelMessage(
		ai.NewTextPart(groundedAnswerPrefix+retrieved),
	))

	system := prompt.Grounded(retrieved)
	if req.Model.Canvas {
		system += "\n\n" + prompt.CanvasGuide
	}

	fullModelName := a.provider + "/" + req.Model.APIModel
	ctx = tools.ContextWithStream(ctx, s)
	ctx = tools.ContextWithGenerationModel(ctx, fullModelName)
	if req.User != nil {
		ctx = tools.ContextWithUserID(ctx, req.User.ID)
	}

	opts := []ai.GenerateOption{
		ai.WithModelName(fullModelName),
		ai.WithSystem(system),
		ai.WithMessages(history...),
		ai.WithTools(a.tools.ForModel(req.Model)...),
		ai.WithMaxTurns(a.maxTurns),
		ai.WithStreaming(func(_ context.Context, chunk *ai.ModelResponseChunk) error {
			if delta := chunk.Text(); delta != "" {
				s.Emit(stream.Event{Type: stream.TypeText, Content: delta})
			}
			return nil
		}),
	}

	resp, err := a.generateWithRetry(ctx, opts)
	if err != nil {
		a.logger.Error("chat generation failed",
			"chat_id", req.ChatID,
			"model", req.Model.ID,
			"error", err,
		)
		return fmt.Errorf("running chat turn: %w", err)
	}

	a.persist(ctx, req, history, resp)
	return nil
}

// retrieve grounds the turn on the first user message. An empty query
// skips the index round trip.
func (a *Agent) retrieve(ctx context.Context, messages []*ai.Message) string {
	query := firstUserText(messages)
	if query == "" {
		return retrieval.NoInformation
	}
	return a.retriever.Answer(ctx, query)
}

// persist saves the full transcript when the request carries a user.
func (a *Agent) persist(ctx context.Context, req Request, history []*ai.Message, resp *ai.ModelResponse) {
	if req.User == nil || req.User.ID == "" {
		return
	}

	transcript := append(history, sanitizeResponseMessages(responseMessages(history, resp))...)
	err := a.chats.Save(ctx, conversation.Chat{
		ID:       req.ChatID,
		UserID:   req.User.ID,
		Messages: transcript,
	})
	if err != nil {
		a.logger.Error("saving chat", "chat_id", req.ChatID, "error", err)
	}
}

// responseMessages extracts the messages the generation added beyond the
// inbound history: intermediate tool rounds from the final request plus the
// final model message. The system message genkit prepends is skipped.
func responseMessages(history []*ai.Message, resp *ai.ModelResponse) []*ai.Message {
	var out []*ai.Message
	if resp.Request != nil {
		msgs := resp.Request.Messages
		if len(msgs) > 0 && msgs[0].Role == ai.RoleSystem {
			msgs = msgs[1:]
		}
		if len(msgs) > len(history) {
			out = append(out, msgs[len(history):]...)
		}
	}
	if resp.Message != nil {
		out = append(out, resp.Message)
	}
	return out
}

// firstUserText returns the text of the first user-role message.
func firstUserText(messages []*ai.Message) string {
	for _, m := range messages {
		if m.Role != ai.RoleUser {
			continue
		}
		return messageText(m)
	}
	return ""
}

// messageText concatenates the text parts of a message.
func messageText(m *ai.Message) string {
	var text string
	for _, p := range m.Content {
		if p.Kind == ai.PartText {
			text += p.Text
		}
	}
	return text
}

// deepCopyMessages copies messages and their part slices. The generation
// loop mutates message content in place, so shared inbound slices must not
// reach it.
func deepCopyMessages(messages []*ai.Message) []*ai.Message {
	out := make([]*ai.Message, len(messages))
	for i, m := range messages {
		cp := &ai.Message{
			Role:     m.Role,
			Metadata: m.Metadata,
			Content:  make([]*ai.Part, len(m.Content)),
		}
		for j, p := range m.Content {
			pc := *p
			cp.Content[j] = &pc
		}
		out[i] = cp
	}
	return out
}
