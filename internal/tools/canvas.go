package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"

	"github.com/cliolabs/clio/internal/document"
	"github.com/cliolabs/clio/internal/stream"
)

// CreateDocumentInput defines input for the createDocument tool.
type CreateDocumentInput struct {
	Title string `json:"title" jsonschema_description:"Title of the document to create"`
}

// UpdateDocumentInput defines input for the updateDocument tool.
type UpdateDocumentInput struct {
	ID          string `json:"id" jsonschema_description:"The ID of the document to update"`
	Description string `json:"description" jsonschema_description:"The description of changes that need to be made"`
}

const (
	draftSystemPrompt  = "Write about the given topic. Markdown is supported. Use headings wherever appropriate."
	reviseSystemPrompt = "You are a helpful writing assistant. Based on the description, please update the piece of writing."

	resultNotFound = "Document not found"
)

// CreateDocument drafts a new document on the canvas. The draft is streamed
// delta by delta onto the event stream while it accumulates, then persisted
// when a user identity is present.
func (h *Handler) CreateDocument(ctx context.Context, in CreateDocumentInput) (DocumentResult, error) {
	id := uuid.New()

	emit(ctx, stream.Event{Type: stream.TypeID, Content: id.String()})
	emit(ctx, stream.Event{Type: stream.TypeTitle, Content: in.Title})
	emit(ctx, stream.Event{Type: stream.TypeClear, Content: ""})

	draft, err := h.streamDraft(ctx,
		ai.WithSystem(draftSystemPrompt),
		ai.WithPrompt(in.Title),
	)
	if err != nil {
		h.logger.Error("drafting document", "id", id, "error", err)
		return DocumentResult{Error: "Failed to draft the document"}, nil
	}

	emit(ctx, stream.Event{Type: stream.TypeFinish, Content: ""})

	if userID := UserIDFromContext(ctx); userID != "" {
		doc := document.Document{ID: id, Title: in.Title, Content: draft, UserID: userID}
		if err := h.docs.Save(ctx, doc); err != nil {
			h.logger.Error("saving document", "id", id, "error", err)
			return DocumentResult{Error: "Failed to save the document"}, nil
		}
	}

	return DocumentResult{
		ID:      id.String(),
		Title:   in.Title,
		Content: "A document was created and is now visible to the user.",
	}, nil
}

// UpdateDocument rewrites an existing document per the model's description,
// streaming the replacement content as it is generated.
func (h *Handler) UpdateDocument(ctx context.Context, in UpdateDocumentInput) (DocumentResult, error) {
	id, err := uuid.Parse(in.ID)
	if err != nil {
		return DocumentResult{Error: resultNotFound}, nil
	}

	doc, err := h.docs.ByID(ctx, id)
	if err != nil {
		h.logger.Warn("looking up document for update", "id", in.ID, "error", err)
		return DocumentResult{Error: resultNotFound}, nil
	}

	emit(ctx, stream.Event{Type: stream.TypeClear, Content: doc.Title})

	draft, err := h.streamDraft(ctx,
		ai.WithSystem(reviseSystemPrompt),
		ai.WithMessages(
			ai.NewUserMessage(ai.NewTextPart(in.Description)),
			ai.NewUserMessage(ai.NewTextPart(doc.Content)),
		),
	)
	if err != nil {
		h.logger.Error("revising document", "id", in.ID, "error", err)
		return DocumentResult{Error: "Failed to update the document"}, nil
	}

	emit(ctx, stream.Event{Type: stream.TypeFinish, Content: ""})

	if userID := UserIDFromContext(ctx); userID != "" {
		doc.Content = draft
		doc.UserID = userID
		if err := h.docs.Save(ctx, doc); err != nil {
			h.logger.Error("saving updated document", "id", in.ID, "error", err)
			return DocumentResult{Error: "Failed to save the document"}, nil
		}
	}

	return DocumentResult{
		ID:      doc.ID.String(),
		Title:   doc.Title,
		Content: "The document has been updated successfully.",
	}, nil
}

// streamDraft runs a nested generation, re-emitting every text delta as a
// text-delta event and returning the accumulated content.
func (h *Handler) streamDraft(ctx context.Context, opts ...ai.GenerateOption) (string, error) {
	var draft strings.Builder

	genOpts := make([]ai.GenerateOption, 0, len(opts)+2)
	if name := GenerationModelFromContext(ctx); name != "" {
		genOpts = append(genOpts, ai.WithModelName(name))
	}
	genOpts = append(genOpts, opts...)
	genOpts = append(genOpts, ai.WithStreaming(func(_ context.Context, chunk *ai.ModelResponseChunk) error {
		delta := chunk.Text()
		if delta == "" {
			return nil
		}
		draft.WriteString(delta)
		emit(ctx, stream.Event{Type: stream.TypeTextDelta, Content: delta})
		return nil
	}))

	if _, err := genkit.Generate(ctx, h.g, genOpts...); err != nil {
		return "", fmt.Errorf("generating draft: %w", err)
	}
	return draft.String(), nil
}
