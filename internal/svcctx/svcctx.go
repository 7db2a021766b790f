// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/scribe-labs/scribe/internal/config"
	"github.com/scribe-labs/scribe/internal/home"
	"github.com/scribe-labs/scribe/internal/imagestore"
	"github.com/scribe-labs/scribe/internal/session"
	"github.com/scribe-labs/scribe/internal/store"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Sessions      *session.Manager
	Store         store.Store
	Images        imagestore.Store
	Releaser      *imagestore.Releaser
	SettingsStore config.Store
	Logger        *slog.Logger
	Home          *home.Dir
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// SessionsFrom extracts the session manager from context.
func SessionsFrom(ctx context.Context) *session.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.Sessions
	}
	return nil
}

// StoreFrom extracts the document store from context.
func StoreFrom(ctx context.Context) store.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Store
	}
	return nil
}

// ImagesFrom extracts the image store from context.
func ImagesFrom(ctx context.Context) imagestore.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Images
	}
	return nil
}

// ReleaserFrom extracts the image release queue from context.
func ReleaserFrom(ctx context.Context) *imagestore.Releaser {
	if s := ServicesFrom(ctx); s != nil {
		return s.Releaser
	}
	return nil
}

// SettingsStoreFrom extracts the settings store from context.
func SettingsStoreFrom(ctx context.Context) config.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.SettingsStore
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}
