package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/firebase/genkit/go/ai"

	"github.com/cliolabs/clio/internal/auth"
	"github.com/cliolabs/clio/internal/chat"
	"github.com/cliolabs/clio/internal/conversation"
	"github.com/cliolabs/clio/internal/log"
	"github.com/cliolabs/clio/internal/model"
	"github.com/cliolabs/clio/internal/stream"
)

// streamBuffer bounds pending events per turn. Canvas tools can emit many
// text deltas before the client catches up.
const streamBuffer = 64

// maxRequestBody limits chat request size to 1MB.
const maxRequestBody = 1 << 20

// SSE terminal event types. Data events use the stream event type names.
const (
	eventDone  = "done"
	eventError = "error"
)

// TurnRunner executes one chat turn, emitting events onto the stream.
type TurnRunner interface {
	Run(ctx context.Context, req chat.Request, s *stream.Stream) error
}

// ChatStore is the chat persistence surface the handlers need.
type ChatStore interface {
	ByID(ctx context.Context, id string) (conversation.Chat, error)
	Delete(ctx context.Context, id string) error
}

// chatHandler serves the chat endpoints.
type chatHandler struct {
	agent  TurnRunner
	chats  ChatStore
	auth   auth.Authenticator
	logger log.Logger
}

// chatRequest is the POST /api/chat body.
type chatRequest struct {
	ID       string       `json:"id"`
	Messages []apiMessage `json:"messages"`
	ModelID  string       `json:"modelId"`
}

// apiMessage is the wire shape of a transcript message.
type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the GET /api/chat/{id} body.
type chatResponse struct {
	ID        string       `json:"id"`
	Messages  []apiMessage `json:"messages"`
	CreatedAt time.Time    `json:"createdAt"`
}

// errorPayload is the SSE data payload for the error event.
type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// send handles POST /api/chat: runs a turn and streams its events as SSE.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	session := h.auth.Session(r)
	if session == nil || session.User == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", h.logger)
		return
	}

	var in chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}
	if in.ID == "" {
		writeError(w, http.StatusBadRequest, "missing_chat_id", "id is required", h.logger)
		return
	}
	if len(in.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "missing_messages", "messages are required", h.logger)
		return
	}

	m, ok := model.Lookup(in.ModelID)
	if !ok {
		writeError(w, http.StatusNotFound, "model_not_found", "model not found", h.logger)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming not supported", h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	req := chat.Request{
		ChatID:   in.ID,
		Messages: toMessages(in.Messages),
		Model:    m,
		User:     session.User,
	}

	st := stream.New(streamBuffer)
	errCh := make(chan error, 1)

	// The turn runs on a context detached from the request so a client
	// disconnect does not abort generation or transcript persistence.
	go func() {
		errCh <- h.agent.Run(context.WithoutCancel(r.Context()), req, st)
	}()

	h.logger.Debug("chat stream started", "chat_id", in.ID, "model", m.ID)

	for {
		select {
		case ev := <-st.Events():
			if err := writeEvent(w, flusher, string(ev.Type), ev.Content); err != nil {
				st.Close()
				h.logger.Debug("writing stream event", "chat_id", in.ID, "error", err)
				return
			}

		case <-st.Done():
			h.drain(w, flusher, st, in.ID)
			if err := <-errCh; err != nil {
				_ = writeEvent(w, flusher, eventError, errorPayload{
					Code:    "generation_failed",
					Message: "chat generation failed",
				})
				return
			}
			_ = writeEvent(w, flusher, eventDone, struct{}{})
			h.logger.Debug("chat stream completed", "chat_id", in.ID)
			return

		case <-r.Context().Done():
			// Closing the stream unblocks the producer; the turn finishes
			// and persists on its detached context with emits dropped.
			st.Close()
			h.logger.Info("client disconnected", "chat_id", in.ID)
			return
		}
	}
}

// drain flushes events buffered before the stream closed.
func (h *chatHandler) drain(w http.ResponseWriter, flusher http.Flusher, st *stream.Stream, chatID string) {
	for {
		select {
		case ev := <-st.Events():
			if err := writeEvent(w, flusher, string(ev.Type), ev.Content); err != nil {
				h.logger.Debug("writing stream event", "chat_id", chatID, "error", err)
				return
			}
		default:
			return
		}
	}
}

// get handles GET /api/chat/{id}: returns the transcript for its owner.
func (h *chatHandler) get(w http.ResponseWriter, r *http.Request) {
	session := h.auth.Session(r)
	if session == nil || session.User == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", h.logger)
		return
	}

	id := r.PathValue("id")
	c, err := h.chats.ByID(r.Context(), id)
	if errors.Is(err, conversation.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "chat not found", h.logger)
		return
	}
	if err != nil {
		h.logger.Error("fetching chat", "chat_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to fetch chat", h.logger)
		return
	}
	if c.UserID != session.User.ID {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not the chat owner", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		ID:        c.ID,
		Messages:  fromMessages(c.Messages),
		CreatedAt: c.CreatedAt,
	}, h.logger)
}

// delete handles DELETE /api/chat?id=: removes the chat for its owner.
func (h *chatHandler) delete(w http.ResponseWriter, r *http.Request) {
	session := h.auth.Session(r)
	if session == nil || session.User == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", h.logger)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusNotFound, "not_found", "chat not found", h.logger)
		return
	}

	c, err := h.chats.ByID(r.Context(), id)
	if errors.Is(err, conversation.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "chat not found", h.logger)
		return
	}
	if err != nil {
		h.logger.Error("fetching chat", "chat_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to delete chat", h.logger)
		return
	}
	if c.UserID != session.User.ID {
		writeError(w, http.StatusUnauthorized, "unauthorized", "not the chat owner", h.logger)
		return
	}

	if err := h.chats.Delete(r.Context(), id); err != nil {
		h.logger.Error("deleting chat", "chat_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to delete chat", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Chat deleted"}, h.logger)
}

// toMessages converts wire messages to transcript messages. Unknown roles
// default to user.
func toMessages(in []apiMessage) []*ai.Message {
	out := make([]*ai.Message, 0, len(in))
	for _, m := range in {
		switch m.Role {
		case "assistant", "model":
			out = append(out, ai.NewModelMessage(ai.NewTextPart(m.Content)))
		case "system":
			out = append(out, ai.NewSystemMessage(ai.NewTextPart(m.Content)))
		default:
			out = append(out, ai.NewUserMessage(ai.NewTextPart(m.Content)))
		}
	}
	return out
}

// fromMessages converts transcript messages to wire messages. Tool rounds
// carry no text and are dropped.
func fromMessages(in []*ai.Message) []apiMessage {
	out := make([]apiMessage, 0, len(in))
	for _, m := range in {
		var text string
		for _, p := range m.Content {
			if p.Kind == ai.PartText {
				text += p.Text
			}
		}
		if text == "" {
			continue
		}
		role := "user"
		if m.Role == ai.RoleModel {
			role = "assistant"
		}
		out = append(out, apiMessage{Role: role, Content: text})
	}
	return out
}

// writeEvent writes one SSE event with a JSON data payload and flushes it.
func writeEvent[T any](w io.Writer, flusher http.Flusher, event string, data T) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	flusher.Flush()
	return nil
}
