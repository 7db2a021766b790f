package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/scribe-labs/scribe/internal/couch"
)

// ErrInvalidKey is returned when a config key contains invalid characters.
var ErrInvalidKey = errors.New("invalid config key")

// SettingsDatabase is the CouchDB database holding runtime settings.
const SettingsDatabase = "settings"

// ValidateKey checks if a config key contains only allowed characters.
// Valid keys contain: letters, digits, dots, underscores, and hyphens.
// This protects against typos and malformed keys.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}
	for i, r := range key {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '_' && r != '-' {
			return fmt.Errorf("%w: invalid character %q at position %d", ErrInvalidKey, r, i)
		}
	}
	// Don't allow keys starting or ending with dots
	if key[0] == '.' || key[len(key)-1] == '.' {
		return fmt.Errorf("%w: key cannot start or end with a dot", ErrInvalidKey)
	}
	return nil
}

// Store provides access to runtime settings the UI can change without a
// restart. No caching - reads fresh from the backend each time.
type Store interface {
	// Get returns a single settings entry by key, nil when absent.
	Get(ctx context.Context, key string) (*Entry, error)

	// Set creates or updates a settings entry.
	Set(ctx context.Context, key string, value any, description string) error

	// GetAll returns all settings entries.
	GetAll(ctx context.Context) (map[string]Entry, error)

	// GetByPrefix returns settings entries matching the prefix.
	GetByPrefix(ctx context.Context, prefix string) (map[string]Entry, error)

	// Delete removes a settings entry.
	Delete(ctx context.Context, key string) error
}

// Entry represents a single settings entry.
type Entry struct {
	Key         string `json:"key"`
	Value       any    `json:"value"`
	Description string `json:"description"`
}

// CouchStore implements Store using CouchDB, one document per key.
type CouchStore struct {
	client *couch.Client
	db     string
}

// NewCouchStore creates a CouchDB-backed settings store, creating the
// settings database if needed.
func NewCouchStore(ctx context.Context, client *couch.Client) (*CouchStore, error) {
	if err := client.EnsureDatabase(ctx, SettingsDatabase); err != nil {
		return nil, err
	}
	return &CouchStore{client: client, db: SettingsDatabase}, nil
}

// Get returns a single settings entry by key.
func (s *CouchStore) Get(ctx context.Context, key string) (*Entry, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	body, _, err := s.client.GetDoc(ctx, s.db, key)
	if errors.Is(err, couch.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get setting %q: %w", key, err)
	}

	entry, err := decodeEntry(key, body)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Set creates or updates a settings entry.
func (s *CouchStore) Set(ctx context.Context, key string, value any, description string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	// Fresh rev so updates win over the previous write.
	_, rev, err := s.client.GetDoc(ctx, s.db, key)
	if err != nil && !errors.Is(err, couch.ErrNotFound) {
		return fmt.Errorf("failed to check setting %q: %w", key, err)
	}

	doc := map[string]any{
		"value":       value,
		"description": description,
	}
	if _, err := s.client.PutDoc(ctx, s.db, key, doc, rev); err != nil {
		return fmt.Errorf("failed to set %q: %w", key, err)
	}
	return nil
}

// GetAll returns all settings entries.
func (s *CouchStore) GetAll(ctx context.Context) (map[string]Entry, error) {
	ids, err := s.client.ListDocIDs(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}

	result := make(map[string]Entry, len(ids))
	for _, id := range ids {
		body, _, err := s.client.GetDoc(ctx, s.db, id)
		if errors.Is(err, couch.ErrNotFound) {
			continue // deleted between list and read
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get setting %q: %w", id, err)
		}
		entry, err := decodeEntry(id, body)
		if err != nil {
			return nil, err
		}
		result[id] = entry
	}
	return result, nil
}

// GetByPrefix returns settings entries matching the prefix.
func (s *CouchStore) GetByPrefix(ctx context.Context, prefix string) (map[string]Entry, error) {
	all, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	result := make(map[string]Entry)
	for key, entry := range all {
		if strings.HasPrefix(key, prefix) {
			result[key] = entry
		}
	}
	return result, nil
}

// Delete removes a settings entry by key.
func (s *CouchStore) Delete(ctx context.Context, key string) error {
	_, rev, err := s.client.GetDoc(ctx, s.db, key)
	if errors.Is(err, couch.ErrNotFound) {
		return nil // Already doesn't exist
	}
	if err != nil {
		return fmt.Errorf("failed to find setting %q: %w", key, err)
	}
	if err := s.client.DeleteDoc(ctx, s.db, key, rev); err != nil {
		return fmt.Errorf("failed to delete setting %q: %w", key, err)
	}
	return nil
}

func decodeEntry(key string, body []byte) (Entry, error) {
	var doc struct {
		Value       any    `json:"value"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return Entry{}, fmt.Errorf("failed to decode setting %q: %w", key, err)
	}
	return Entry{Key: key, Value: doc.Value, Description: doc.Description}, nil
}
