package tools

import (
	"context"
	"encoding/json"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"

	"github.com/cliolabs/clio/internal/document"
	"github.com/cliolabs/clio/internal/stream"
)

// RequestSuggestionsInput defines input for the requestSuggestions tool.
type RequestSuggestionsInput struct {
	DocumentID string `json:"documentId" jsonschema_description:"The ID of the document to request edits"`
}

// suggestionDraft is one element of the model's structured output.
type suggestionDraft struct {
	OriginalSentence  string `json:"originalSentence" jsonschema_description:"The original sentence"`
	SuggestedSentence string `json:"suggestedSentence" jsonschema_description:"The suggested sentence"`
	Description       string `json:"description" jsonschema_description:"The description of the suggestion"`
}

const suggestSystemPrompt = "You are a helpful writing assistant. Given a piece of writing, " +
	"please offer suggestions to improve the piece of writing and describe the change. " +
	"It is very important for the edits to contain full sentences instead of just words."

// RequestSuggestions asks the model for edit suggestions on a document.
// Each suggestion is emitted on the event stream the moment its array
// element completes; the whole batch is persisted afterwards when a user
// identity is present.
func (h *Handler) RequestSuggestions(ctx context.Context, in RequestSuggestionsInput) (DocumentResult, error) {
	id, err := uuid.Parse(in.DocumentID)
	if err != nil {
		return DocumentResult{Error: resultNotFound}, nil
	}

	doc, err := h.docs.ByID(ctx, id)
	if err != nil || doc.Content == "" {
		if err != nil {
			h.logger.Warn("looking up document for suggestions", "id", in.DocumentID, "error", err)
		}
		return DocumentResult{Error: resultNotFound}, nil
	}

	var suggestions []document.Suggestion
	collect := func(draft suggestionDraft) {
		sg := document.Suggestion{
			ID:                uuid.New(),
			DocumentID:        doc.ID,
			DocumentCreatedAt: doc.CreatedAt,
			OriginalText:      draft.OriginalSentence,
			SuggestedText:     draft.SuggestedSentence,
			Description:       draft.Description,
			IsResolved:        false,
		}
		emit(ctx, stream.Event{Type: stream.TypeSuggestion, Content: sg})
		suggestions = append(suggestions, sg)
	}

	scanner := newElementScanner()
	genOpts := []ai.GenerateOption{
		ai.WithSystem(suggestSystemPrompt),
		ai.WithPrompt(doc.Content),
		ai.WithOutputType([]suggestionDraft{}),
		ai.WithStreaming(func(_ context.Context, chunk *ai.ModelResponseChunk) error {
			for _, raw := range scanner.feed(chunk.Text()) {
				var draft suggestionDraft
				if err := json.Unmarshal([]byte(raw), &draft); err != nil {
					h.logger.Warn("skipping malformed suggestion element", "error", err)
					continue
				}
				collect(draft)
			}
			return nil
		}),
	}
	if name := GenerationModelFromContext(ctx); name != "" {
		genOpts = append([]ai.GenerateOption{ai.WithModelName(name)}, genOpts...)
	}

	resp, err := genkit.Generate(ctx, h.g, genOpts...)
	if err != nil {
		h.logger.Error("generating suggestions", "id", in.DocumentID, "error", err)
		return DocumentResult{Error: "Failed to generate suggestions"}, nil
	}

	// Models that do not stream deliver the whole array in the final
	// response; fall back to parsing it when no element arrived in chunks.
	if len(suggestions) == 0 {
		var drafts []suggestionDraft
		if err := json.Unmarshal([]byte(resp.Text()), &drafts); err == nil {
			for _, draft := range drafts {
				collect(draft)
			}
		}
	}

	if userID := UserIDFromContext(ctx); userID != "" && len(suggestions) > 0 {
		for i := range suggestions {
			suggestions[i].UserID = userID
		}
		if err := h.docs.SaveSuggestions(ctx, suggestions); err != nil {
			h.logger.Error("saving suggestions", "id", in.DocumentID, "error", err)
			return DocumentResult{Error: "Failed to save suggestions"}, nil
		}
	}

	return DocumentResult{
		ID:      doc.ID.String(),
		Title:   doc.Title,
		Message: "Suggestions have been added to the document",
	}, nil
}

// elementScanner incrementally extracts completed top-level objects from a
// streamed JSON array. Feeding it arbitrary slices of
// `[{"a":1}, {"b":2}]` yields each object exactly once, as soon as its
// closing brace arrives.
type elementScanner struct {
	buf      []byte
	pos      int
	inArray  bool
	inString bool
	escaped  bool
	depth    int
	start    int
}

func newElementScanner() *elementScanner {
	return &elementScanner{start: -1}
}

// feed appends text and returns the raw JSON of every element completed by
// it, in order.
func (s *elementScanner) feed(text string) []string {
	s.buf = append(s.buf, text...)

	var out []string
	for ; s.pos < len(s.buf); s.pos++ {
		c := s.buf[s.pos]

		if s.inString {
			if s.escaped {
				s.escaped = false
				continue
			}
			switch c {
			case '\\':
				s.escaped = true
			case '"':
				s.inString = false
			}
			continue
		}

		switch c {
		case '"':
			if s.start >= 0 {
				s.inString = true
			}
		case '[':
			if !s.inArray {
				s.inArray = true
			} else if s.start >= 0 {
				s.depth++
			}
		case '{':
			if s.start < 0 {
				s.start = s.pos
			}
			s.depth++
		case '}', ']':
			if s.start < 0 {
				continue
			}
			s.depth--
			if s.depth == 0 {
				out = append(out, string(s.buf[s.start:s.pos+1]))
				s.start = -1
			}
		}
	}
	return out
}
