// Package model holds the catalog of chat models a client may request.
package model

// Model describes one selectable chat model.
type Model struct {
	// ID is the identifier clients send in chat requests.
	ID string `json:"id"`
	// Label is the human-readable name.
	Label string `json:"label"`
	// Description is shown in model pickers.
	Description string `json:"description"`
	// APIModel is the provider-side model name the ID maps to.
	APIModel string `json:"-"`
	// Canvas selects the document tool set instead of the utility tools.
	Canvas bool `json:"-"`
}

// DefaultID is used when a client does not specify a model.
const DefaultID = "gpt-4o-mini"

var catalog = []Model{
	{
		ID:          "gpt-4o-mini",
		Label:       "Small model",
		Description: "Fast model for lightweight questions",
		APIModel:    "gpt-4o-mini",
	},
	{
		ID:          "gpt-4o",
		Label:       "Large model",
		Description: "Stronger model for complex questions",
		APIModel:    "gpt-4o",
	},
	{
		ID:          "gpt-4o-canvas",
		Label:       "Canvas model",
		Description: "Writing model with side-panel documents",
		APIModel:    "gpt-4o",
		Canvas:      true,
	},
}

// Lookup returns the catalog entry for id. The second result is false when
// id is not in the catalog.
func Lookup(id string) (Model, bool) {
	for _, m := range catalog {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// All returns the catalog in display order.
func All() []Model {
	out := make([]Model, len(catalog))
	copy(out, catalog)
	return out
}
