package tools

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/cliolabs/clio/internal/model"
)

// Registered tool names.
const (
	WeatherToolName            = "getWeather"
	CreateDocumentToolName     = "createDocument"
	UpdateDocumentToolName     = "updateDocument"
	RequestSuggestionsToolName = "requestSuggestions"
)

// Registry holds the registered tools grouped by mode. A request gets
// either the canvas set or the weather set, never both.
type Registry struct {
	weather []ai.Tool
	canvas  []ai.Tool
}

// Register defines all chat tools with genkit and returns the Registry.
// The genkit closures are thin adapters over Handler methods.
func Register(g *genkit.Genkit, h *Handler) *Registry {
	weather := genkit.DefineTool(
		g, WeatherToolName, "Get the current weather at a location",
		func(ctx *ai.ToolContext, in WeatherInput) (map[string]any, error) {
			return h.GetWeather(ctx.Context, in)
		},
	)

	create := genkit.DefineTool(
		g, CreateDocumentToolName, "Create a document for a writing activity",
		func(ctx *ai.ToolContext, in CreateDocumentInput) (DocumentResult, error) {
			return h.CreateDocument(ctx.Context, in)
		},
	)

	update := genkit.DefineTool(
		g, UpdateDocumentToolName, "Update a document with the given description",
		func(ctx *ai.ToolContext, in UpdateDocumentInput) (DocumentResult, error) {
			return h.UpdateDocument(ctx.Context, in)
		},
	)

	suggest := genkit.DefineTool(
		g, RequestSuggestionsToolName, "Request suggestions for a document",
		func(ctx *ai.ToolContext, in RequestSuggestionsInput) (DocumentResult, error) {
			return h.RequestSuggestions(ctx.Context, in)
		},
	)

	return &Registry{
		weather: []ai.Tool{weather},
		canvas:  []ai.Tool{create, update, suggest},
	}
}

// ForModel returns the tool refs active for the requested model: the canvas
// set for canvas models, the weather set otherwise.
func (r *Registry) ForModel(m model.Model) []ai.ToolRef {
	src := r.weather
	if m.Canvas {
		src = r.canvas
	}
	refs := make([]ai.ToolRef, len(src))
	for i, t := range src {
		refs[i] = t
	}
	return refs
}
