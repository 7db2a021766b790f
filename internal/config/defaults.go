package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrNoDefault is returned when no default value exists for a config key.
var ErrNoDefault = errors.New("no default exists")

// DefaultEntries returns the default settings entries.
// These are seeded into the settings store on first run.
func DefaultEntries() []Entry {
	return []Entry{
		// ===================
		// Editor
		// ===================
		{
			Key:         "editor.autosave_delay_seconds",
			Value:       3,
			Description: "Debounce window before an edited document is saved",
		},
		{
			Key:         "editor.default_title",
			Value:       "My Thesis",
			Description: "Title given to newly created documents",
		},

		// ===================
		// Export
		// ===================
		{
			Key:         "export.document_class",
			Value:       "report",
			Description: "LaTeX document class used by the exporter",
		},
		{
			Key:         "export.bibliography_style",
			Value:       "plain",
			Description: "BibTeX style passed to \\bibliographystyle",
		},
		{
			Key:         "export.image_fetch_timeout_seconds",
			Value:       30,
			Description: "Per-image timeout when assembling the export bundle",
		},

		// ===================
		// Images
		// ===================
		{
			Key:         "images.max_upload_mb",
			Value:       20,
			Description: "Maximum accepted image upload size in megabytes",
		},
	}
}

// SeedDefaults seeds default settings entries into the store.
// This is idempotent - existing entries are not overwritten.
func SeedDefaults(ctx context.Context, store Store, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	defaults := DefaultEntries()
	seeded := 0
	skipped := 0

	for _, entry := range defaults {
		// Check if key already exists
		existing, err := store.Get(ctx, entry.Key)
		if err != nil {
			return fmt.Errorf("failed to check key %q: %w", entry.Key, err)
		}

		if existing != nil {
			skipped++
			continue
		}

		// Create the entry
		if err := store.Set(ctx, entry.Key, entry.Value, entry.Description); err != nil {
			return fmt.Errorf("failed to seed key %q: %w", entry.Key, err)
		}
		seeded++
	}

	if seeded > 0 {
		logger.Info("seeded default settings entries", "seeded", seeded, "skipped", skipped)
	}
	return nil
}

// GetDefault returns the default value for a settings key.
// Returns nil if no default exists for the key.
func GetDefault(key string) *Entry {
	for _, entry := range DefaultEntries() {
		if entry.Key == key {
			return &entry
		}
	}
	return nil
}

// ResetToDefault resets a settings key to its default value.
// Returns ErrNoDefault if no default exists for the key.
func ResetToDefault(ctx context.Context, store Store, key string) error {
	def := GetDefault(key)
	if def == nil {
		return fmt.Errorf("%w for key %q", ErrNoDefault, key)
	}
	return store.Set(ctx, key, def.Value, def.Description)
}
