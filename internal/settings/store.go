package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Known setting keys. Values are stored JSON-encoded so the table can hold
// booleans, numbers, and strings uniformly.
const (
	KeyMaxConcurrentTransfers = "max_concurrent_transfers"
	KeySkipExisting           = "skip_existing"
	KeyVerifyChecksum         = "verify_checksum"
	KeyRetries                = "retries"
	KeyTimeoutSeconds         = "timeout_seconds"
	KeyPreserveTimestamps     = "preserve_timestamps"
	KeyIncludeDerivatives     = "include_derivatives"
	KeyLastDestination        = "last_destination"
)

// DefaultMaxConcurrentTransfers applies when nothing is persisted.
const DefaultMaxConcurrentTransfers = 3

// ErrUnknownKey rejects writes to keys the application does not define.
var ErrUnknownKey = errors.New("unknown setting key")

var knownKeys = map[string]struct{}{
	KeyMaxConcurrentTransfers: {},
	KeySkipExisting:           {},
	KeyVerifyChecksum:         {},
	KeyRetries:                {},
	KeyTimeoutSeconds:         {},
	KeyPreserveTimestamps:     {},
	KeyIncludeDerivatives:     {},
	KeyLastDestination:        {},
}

// TransferDefaults carries the persisted transfer-option overlay. A nil
// field means the key has never been persisted and the built-in default
// applies.
type TransferDefaults struct {
	SkipExisting       *bool
	VerifyChecksum     *bool
	Retries            *int
	TimeoutSeconds     *int
	PreserveTimestamps *bool
	IncludeDerivatives *bool
}

// Store reads and writes settings rows. It shares the jobs database.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Set persists one setting. The value is JSON-encoded.
func (s *Store) Set(ctx context.Context, key string, value any) error {
	if _, ok := knownKeys[key]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode setting %q: %w", key, err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO app_settings (key, value, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key,
		string(encoded),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("write setting %q: %w", key, err)
	}
	return nil
}

// Raw returns the JSON-encoded value for a key, or ok=false when the key
// has never been persisted.
func (s *Store) Raw(ctx context.Context, key string) (json.RawMessage, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM app_settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read setting %q: %w", key, err)
	}
	return json.RawMessage(value), true, nil
}

// Int reads an integer setting, falling back to the provided default.
func (s *Store) Int(ctx context.Context, key string, fallback int) (int, error) {
	raw, ok, err := s.Raw(ctx, key)
	if err != nil || !ok {
		return fallback, err
	}
	var value int
	if err := json.Unmarshal(raw, &value); err != nil {
		return fallback, nil
	}
	return value, nil
}

// All returns every persisted setting keyed by name, values still
// JSON-encoded, sorted for stable iteration by callers that render them.
func (s *Store) All(ctx context.Context) (map[string]json.RawMessage, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM app_settings`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		out[key] = json.RawMessage(value)
	}
	return out, rows.Err()
}

// Keys returns the known setting keys sorted alphabetically.
func Keys() []string {
	out := make([]string, 0, len(knownKeys))
	for key := range knownKeys {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// MaxConcurrent reads the persisted transfer concurrency, falling back to
// the built-in default when unset or nonsense.
func (s *Store) MaxConcurrent(ctx context.Context) int {
	value, err := s.Int(ctx, KeyMaxConcurrentTransfers, DefaultMaxConcurrentTransfers)
	if err != nil || value < 1 {
		return DefaultMaxConcurrentTransfers
	}
	return value
}

// TransferDefaultsOverlay loads the persisted transfer-option subset.
func (s *Store) TransferDefaultsOverlay(ctx context.Context) (TransferDefaults, error) {
	var overlay TransferDefaults
	all, err := s.All(ctx)
	if err != nil {
		return overlay, err
	}
	decodeBool := func(key string) *bool {
		raw, ok := all[key]
		if !ok {
			return nil
		}
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil
		}
		return &v
	}
	decodeInt := func(key string) *int {
		raw, ok := all[key]
		if !ok {
			return nil
		}
		var v int
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil
		}
		return &v
	}
	overlay.SkipExisting = decodeBool(KeySkipExisting)
	overlay.VerifyChecksum = decodeBool(KeyVerifyChecksum)
	overlay.Retries = decodeInt(KeyRetries)
	overlay.TimeoutSeconds = decodeInt(KeyTimeoutSeconds)
	overlay.PreserveTimestamps = decodeBool(KeyPreserveTimestamps)
	overlay.IncludeDerivatives = decodeBool(KeyIncludeDerivatives)
	return overlay, nil
}

// RecordSearch upserts a query into search history with the current time.
// Blank queries are ignored.
func (s *Store) RecordSearch(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO search_history (query, last_searched_at) VALUES (?, ?)
         ON CONFLICT(query) DO UPDATE SET last_searched_at = excluded.last_searched_at`,
		query,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record search: %w", err)
	}
	return nil
}

// RecentSearches lists the most recently used queries, newest first.
func (s *Store) RecentSearches(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT query FROM search_history ORDER BY last_searched_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list search history: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var query string
		if err := rows.Scan(&query); err != nil {
			return nil, err
		}
		out = append(out, query)
	}
	return out, rows.Err()
}
