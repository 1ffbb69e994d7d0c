// Package conversation persists chat transcripts.
package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cliolabs/clio/internal/log"
)

// ErrNotFound is returned when no chat exists for the given id.
var ErrNotFound = errors.New("conversation: chat not found")

// Chat is one persisted conversation. Messages holds the full transcript in
// generation order and is stored as JSONB.
type Chat struct {
	ID        string
	UserID    string
	Messages  []*ai.Message
	CreatedAt time.Time
}

// DB is the subset of pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads and writes chats.
type Store struct {
	db     DB
	logger log.Logger
}

// NewStore creates a Store backed by db.
func NewStore(db DB, logger log.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Save upserts the chat, replacing the stored message list. The original
// created_at and owner survive replacement.
func (s *Store) Save(ctx context.Context, chat Chat) error {
	messages, err := encodeMessages(chat.Messages)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO chats (id, user_id, messages, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE SET messages = EXCLUDED.messages`,
		chat.ID, chat.UserID, messages,
	)
	if err != nil {
		return fmt.Errorf("saving chat %s: %w", chat.ID, err)
	}
	return nil
}

// ByID fetches a chat. Returns ErrNotFound when id is unknown.
func (s *Store) ByID(ctx context.Context, id string) (Chat, error) {
	var (
		chat Chat
		raw  []byte
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, messages, created_at
		FROM chats WHERE id = $1`, id,
	).Scan(&chat.ID, &chat.UserID, &raw, &chat.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Chat{}, ErrNotFound
	}
	if err != nil {
		return Chat{}, fmt.Errorf("fetching chat %s: %w", id, err)
	}

	chat.Messages, err = decodeMessages(raw)
	if err != nil {
		return Chat{}, err
	}
	return chat, nil
}

// Delete removes a chat. Returns ErrNotFound when id is unknown.
func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM chats WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting chat %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeMessages(messages []*ai.Message) ([]byte, error) {
	if messages == nil {
		messages = []*ai.Message{}
	}
	data, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("encoding messages: %w", err)
	}
	return data, nil
}

func decodeMessages(raw []byte) ([]*ai.Message, error) {
	var messages []*ai.Message
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, fmt.Errorf("decoding messages: %w", err)
	}
	return messages, nil
}
