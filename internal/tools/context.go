// Package tools implements the chat tools the model may invoke during a
// turn: a weather lookup and the canvas document tools.
package tools

import (
	"context"

	"github.com/cliolabs/clio/internal/stream"
)

// Context keys use empty structs for zero-allocation type safety.
type streamKey struct{}
type userIDKey struct{}
type generationModelKey struct{}

// ContextWithStream binds the per-request event stream. Tool executions
// retrieve it to publish side-channel events.
func ContextWithStream(ctx context.Context, s *stream.Stream) context.Context {
	return context.WithValue(ctx, streamKey{}, s)
}

// StreamFromContext retrieves the event stream. Returns nil if not set;
// tools then run without emitting events.
func StreamFromContext(ctx context.Context) *stream.Stream {
	s, _ := ctx.Value(streamKey{}).(*stream.Stream)
	return s
}

// ContextWithUserID stores the authenticated user identity. Canvas tools
// persist artifacts only when a user is present.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext retrieves the user identity. Returns empty string if
// not set.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}

// ContextWithGenerationModel stores the full model name (provider/model)
// nested tool generations should run on. The orchestrator sets it per
// request so document drafts use the same model as the conversation.
func ContextWithGenerationModel(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, generationModelKey{}, name)
}

// GenerationModelFromContext retrieves the nested-generation model name.
// Returns empty string if not set, letting genkit fall back to its default
// model.
func GenerationModelFromContext(ctx context.Context) string {
	name, _ := ctx.Value(generationModelKey{}).(string)
	return name
}

// emit publishes e on the request stream, if one is bound.
func emit(ctx context.Context, e stream.Event) {
	if s := StreamFromContext(ctx); s != nil {
		s.Emit(e)
	}
}
