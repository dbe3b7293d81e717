// Package store persists users, journal entries and evidence in SQLite.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/havenlog/havenlog/export"
	"github.com/havenlog/havenlog/internal/auth"
)

//go:embed schema.sql
var schema string

// Store handles database operations
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and applies the schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateUser inserts a user and returns its id.
func (s *Store) CreateUser(ctx context.Context, name, token, tier string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, name, token, tier, created_at) VALUES (?, ?, ?, ?, ?)",
		id, name, token, tier, time.Now(),
	)
	if err != nil {
		return "", fmt.Errorf("insert user: %w", err)
	}
	return id, nil
}

// IdentityByToken resolves a bearer token to the identity it belongs to.
func (s *Store) IdentityByToken(ctx context.Context, token string) (auth.Identity, error) {
	var ident auth.Identity
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, tier FROM users WHERE token = ?", token,
	).Scan(&ident.UserID, &ident.Name, &ident.Tier)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	if err != nil {
		return auth.Identity{}, fmt.Errorf("lookup token: %w", err)
	}
	return ident, nil
}

// CreateEntry inserts an entry for ownerID and returns the new id.
// view.ID is ignored.
func (s *Store) CreateEntry(ctx context.Context, ownerID string, view export.EntryView) (string, error) {
	id := uuid.New().String()
	tags, err := json.Marshal(view.Tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entries
			(id, owner_id, title, description, occurred_at, location,
			 safety_rating, mood_rating, tags, state_before, state_after, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, ownerID, view.Title, view.Description, view.OccurredAt, view.Location,
		view.SafetyRating, view.MoodRating, string(tags), view.StateBefore, view.StateAfter, time.Now(),
	)
	if err != nil {
		return "", fmt.Errorf("insert entry: %w", err)
	}
	return id, nil
}

// Entry loads one entry scoped to its owner. A missing row and a row
// owned by someone else are indistinguishable to the caller.
func (s *Store) Entry(ctx context.Context, ownerID, entryID string) (export.EntryView, error) {
	var (
		view export.EntryView
		tags string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, occurred_at, location,
		       safety_rating, mood_rating, tags, state_before, state_after
		FROM entries WHERE id = ? AND owner_id = ?`,
		entryID, ownerID,
	).Scan(&view.ID, &view.Title, &view.Description, &view.OccurredAt, &view.Location,
		&view.SafetyRating, &view.MoodRating, &tags, &view.StateBefore, &view.StateAfter)
	if errors.Is(err, sql.ErrNoRows) {
		return export.EntryView{}, export.ErrNotFound
	}
	if err != nil {
		return export.EntryView{}, fmt.Errorf("get entry: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &view.Tags); err != nil {
		return export.EntryView{}, fmt.Errorf("decode tags: %w", err)
	}
	return view, nil
}

// ListEntries returns the owner's entries, most recent first.
func (s *Store) ListEntries(ctx context.Context, ownerID string) ([]export.EntryView, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, occurred_at, location,
		       safety_rating, mood_rating, tags, state_before, state_after
		FROM entries WHERE owner_id = ? ORDER BY occurred_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var views []export.EntryView
	for rows.Next() {
		var (
			view export.EntryView
			tags string
		)
		if err := rows.Scan(&view.ID, &view.Title, &view.Description, &view.OccurredAt, &view.Location,
			&view.SafetyRating, &view.MoodRating, &tags, &view.StateBefore, &view.StateAfter); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &view.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
		views = append(views, view)
	}
	return views, rows.Err()
}

// AddEvidence attaches a file record to an entry and returns the new id.
// ev.ID and ev.UploadedAt are ignored.
func (s *Store) AddEvidence(ctx context.Context, entryID string, ev export.Evidence) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO evidence
			(id, entry_id, file_name, mime_type, caption, transcript, blob_ref, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, entryID, ev.FileName, ev.MIMEType, ev.Caption, ev.Transcript, ev.Ref, time.Now(),
	)
	if err != nil {
		return "", fmt.Errorf("insert evidence: %w", err)
	}
	return id, nil
}

// EvidenceByEntry returns an entry's evidence in upload order.
func (s *Store) EvidenceByEntry(ctx context.Context, entryID string) ([]export.Evidence, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_name, mime_type, caption, transcript, blob_ref, uploaded_at
		FROM evidence WHERE entry_id = ? ORDER BY uploaded_at, id`,
		entryID,
	)
	if err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	defer rows.Close()

	var evs []export.Evidence
	for rows.Next() {
		var ev export.Evidence
		if err := rows.Scan(&ev.ID, &ev.FileName, &ev.MIMEType, &ev.Caption,
			&ev.Transcript, &ev.Ref, &ev.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan evidence: %w", err)
		}
		evs = append(evs, ev)
	}
	return evs, rows.Err()
}
