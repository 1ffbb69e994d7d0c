// Package document persists canvas documents and writing suggestions.
package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cliolabs/clio/internal/log"
)

// ErrNotFound is returned when no document exists for the given id.
var ErrNotFound = errors.New("document: not found")

// Document is one canvas document. Save replaces Content in place; the
// original created_at survives.
type Document struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Suggestion is one proposed edit to a document.
type Suggestion struct {
	ID                uuid.UUID `json:"id"`
	DocumentID        uuid.UUID `json:"documentId"`
	DocumentCreatedAt time.Time `json:"documentCreatedAt"`
	OriginalText      string    `json:"originalText"`
	SuggestedText     string    `json:"suggestedText"`
	Description       string    `json:"description"`
	IsResolved        bool      `json:"isResolved"`
	UserID            string    `json:"userId"`
	CreatedAt         time.Time `json:"createdAt"`
}

// DB is the subset of pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store reads and writes documents and their suggestions.
type Store struct {
	db     DB
	logger log.Logger
}

// NewStore creates a Store backed by db.
func NewStore(db DB, logger log.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Save upserts the document by id, replacing title and content.
func (s *Store) Save(ctx context.Context, doc Document) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO documents (id, title, content, user_id, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, content = EXCLUDED.content`,
		doc.ID, doc.Title, doc.Content, doc.UserID,
	)
	if err != nil {
		return fmt.Errorf("saving document %s: %w", doc.ID, err)
	}
	return nil
}

// ByID fetches a document. Returns ErrNotFound when id is unknown.
func (s *Store) ByID(ctx context.Context, id uuid.UUID) (Document, error) {
	var doc Document
	err := s.db.QueryRow(ctx, `
		SELECT id, title, content, user_id, created_at
		FROM documents WHERE id = $1`, id,
	).Scan(&doc.ID, &doc.Title, &doc.Content, &doc.UserID, &doc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("fetching document %s: %w", id, err)
	}
	return doc, nil
}

// SaveSuggestions persists suggestions in a single transaction, so a batch
// lands completely or not at all.
func (s *Store) SaveSuggestions(ctx context.Context, suggestions []Suggestion) error {
	if len(suggestions) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning suggestion batch: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.logger.Warn("rolling back suggestion batch", "error", err)
		}
	}()

	for _, sg := range suggestions {
		_, err := tx.Exec(ctx, `
			INSERT INTO suggestions
				(id, document_id, document_created_at, original_text,
				 suggested_text, description, is_resolved, user_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())`,
			sg.ID, sg.DocumentID, sg.DocumentCreatedAt, sg.OriginalText,
			sg.SuggestedText, sg.Description, sg.IsResolved, sg.UserID,
		)
		if err != nil {
			return fmt.Errorf("inserting suggestion %s: %w", sg.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing suggestion batch: %w", err)
	}
	return nil
}

// SuggestionsByDocument lists suggestions for a document, oldest first.
func (s *Store) SuggestionsByDocument(ctx context.Context, documentID uuid.UUID) ([]Suggestion, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, document_id, document_created_at, original_text,
		       suggested_text, description, is_resolved, user_id, created_at
		FROM suggestions WHERE document_id = $1
		ORDER BY created_at`, documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing suggestions for %s: %w", documentID, err)
	}
	defer rows.Close()

	var out []Suggestion
	for rows.Next() {
		var sg Suggestion
		if err := rows.Scan(
			&sg.ID, &sg.DocumentID, &sg.DocumentCreatedAt, &sg.OriginalText,
			&sg.SuggestedText, &sg.Description, &sg.IsResolved, &sg.UserID, &sg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning suggestion: %w", err)
		}
		out = append(out, sg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing suggestions for %s: %w", documentID, err)
	}
	return out, nil
}
