package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/cliolabs/clio/internal/auth"
	"github.com/cliolabs/clio/internal/document"
	"github.com/cliolabs/clio/internal/log"
)

// SuggestionLister is the suggestion read surface the handler needs.
type SuggestionLister interface {
	SuggestionsByDocument(ctx context.Context, documentID uuid.UUID) ([]document.Suggestion, error)
}

// suggestionsHandler serves GET /api/suggestions.
type suggestionsHandler struct {
	docs   SuggestionLister
	auth   auth.Authenticator
	logger log.Logger
}

// list returns the suggestions for a document, owner only.
func (h *suggestionsHandler) list(w http.ResponseWriter, r *http.Request) {
	session := h.auth.Session(r)
	if session == nil || session.User == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", h.logger)
		return
	}

	raw := r.URL.Query().Get("documentId")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing_document_id", "documentId is required", h.logger)
		return
	}
	documentID, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_document_id", "documentId must be a uuid", h.logger)
		return
	}

	suggestions, err := h.docs.SuggestionsByDocument(r.Context(), documentID)
	if err != nil {
		h.logger.Error("listing suggestions", "document_id", documentID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list suggestions", h.logger)
		return
	}

	if len(suggestions) > 0 && suggestions[0].UserID != session.User.ID {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not the suggestion owner", h.logger)
		return
	}
	if suggestions == nil {
		suggestions = []document.Suggestion{}
	}

	writeJSON(w, http.StatusOK, suggestions, h.logger)
}
