// Package bookmarks persists saved archive items so users can queue
// transfers for them later without re-searching.
package bookmarks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound indicates no bookmark exists for the identifier.
var ErrNotFound = errors.New("bookmark not found")

// Bookmark is one saved archive item.
type Bookmark struct {
	ID         int64     `json:"id"`
	Identifier string    `json:"identifier"`
	Title      string    `json:"title,omitempty"`
	MediaType  string    `json:"mediatype,omitempty"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store reads and writes bookmark rows. It shares the jobs database.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Add saves an item. Adding an identifier twice refreshes title, mediatype,
// and note rather than failing.
func (s *Store) Add(ctx context.Context, mark Bookmark) error {
	identifier := strings.TrimSpace(mark.Identifier)
	if identifier == "" {
		return errors.New("bookmark identifier is required")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO bookmarks (identifier, title, mediatype, note, created_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(identifier) DO UPDATE SET
             title = excluded.title,
             mediatype = excluded.mediatype,
             note = excluded.note`,
		identifier,
		mark.Title,
		mark.MediaType,
		mark.Note,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save bookmark %q: %w", identifier, err)
	}
	return nil
}

// List returns all bookmarks, newest first.
func (s *Store) List(ctx context.Context) ([]Bookmark, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, identifier, title, mediatype, note, created_at
         FROM bookmarks ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	defer rows.Close()

	var out []Bookmark
	for rows.Next() {
		var (
			mark      Bookmark
			title     sql.NullString
			mediatype sql.NullString
			note      sql.NullString
			created   string
		)
		if err := rows.Scan(&mark.ID, &mark.Identifier, &title, &mediatype, &note, &created); err != nil {
			return nil, err
		}
		mark.Title = title.String
		mark.MediaType = mediatype.String
		mark.Note = note.String
		if parsed, err := time.Parse(time.RFC3339Nano, created); err == nil {
			mark.CreatedAt = parsed
		}
		out = append(out, mark)
	}
	return out, rows.Err()
}

// Remove deletes a bookmark by identifier.
func (s *Store) Remove(ctx context.Context, identifier string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM bookmarks WHERE identifier = ?`, identifier)
	if err != nil {
		return fmt.Errorf("remove bookmark %q: %w", identifier, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
