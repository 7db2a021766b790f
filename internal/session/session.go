// Package session owns the live copy of each open document. All editing
// funnels through a per-key Session: operations apply under a lock, orphaned
// image refs go to the release queue, and saves are debounced so a burst of
// edits becomes one write.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/scribe-labs/scribe/internal/store"
	"github.com/scribe-labs/scribe/internal/thesis"
)

// DefaultSaveDelay matches the editor's autosave debounce.
const DefaultSaveDelay = 3 * time.Second

// ReleaseQueue receives the source refs of images orphaned by an edit.
// Satisfied by imagestore.Releaser.
type ReleaseQueue interface {
	Enqueue(ref string)
}

// Mutation transforms a document snapshot, returning the new snapshot and
// any side effects the caller owes (image releases).
type Mutation func(thesis.Document) (thesis.Document, []thesis.Effect)

// Manager hands out one Session per document key and flushes them all on
// shutdown.
type Manager struct {
	store     store.Store
	releases  ReleaseQueue
	logger    *slog.Logger
	saveDelay time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager over a store.
func NewManager(st store.Store, releases ReleaseQueue, logger *slog.Logger, saveDelay time.Duration) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if saveDelay <= 0 {
		saveDelay = DefaultSaveDelay
	}
	return &Manager{
		store:     st,
		releases:  releases,
		logger:    logger,
		saveDelay: saveDelay,
		sessions:  make(map[string]*Session),
	}
}

// Get returns the session for a key, loading the stored document on first
// access. A key with no stored document starts from a fresh default
// document, persisted on the first save.
func (m *Manager) Get(ctx context.Context, key string) (*Session, error) {
	m.mu.Lock()
	if s, ok := m.sessions[key]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	// Load outside the manager lock; slow backends must not serialize
	// unrelated keys.
	doc, err := m.store.Load(ctx, key)
	fresh := false
	if errors.Is(err, store.ErrNotFound) {
		doc = thesis.NewDocument()
		fresh = true
	} else if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[key]; ok {
		// Lost the race to another loader.
		return s, nil
	}
	s := &Session{
		key:       key,
		doc:       doc,
		dirty:     fresh,
		store:     m.store,
		releases:  m.releases,
		logger:    m.logger.With("key", key),
		saveDelay: m.saveDelay,
	}
	m.sessions[key] = s
	return s, nil
}

// SetSaveDelay updates the autosave debounce for new and existing sessions.
// Called on config reload.
func (m *Manager) SetSaveDelay(d time.Duration) {
	if d <= 0 {
		d = DefaultSaveDelay
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveDelay = d
	for _, s := range m.sessions {
		s.mu.Lock()
		s.saveDelay = d
		s.mu.Unlock()
	}
}

// Drop discards the session for a key without saving. Used when the stored
// document is deleted out from under the editor.
func (m *Manager) Drop(key string) {
	m.mu.Lock()
	s, ok := m.sessions[key]
	delete(m.sessions, key)
	m.mu.Unlock()

	if ok {
		s.mu.Lock()
		if s.saveTimer != nil {
			s.saveTimer.Stop()
			s.saveTimer = nil
		}
		s.dirty = false
		s.mu.Unlock()
	}
}

// Shutdown flushes every dirty session. Flush errors are logged, not
// returned; shutdown keeps going.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		if err := s.Flush(ctx); err != nil {
			m.logger.Error("failed to flush session on shutdown", "key", s.key, "error", err)
		}
	}
}

// Session is the single writer for one document. All reads and writes go
// through its lock.
type Session struct {
	key       string
	store     store.Store
	releases  ReleaseQueue
	logger    *slog.Logger
	saveDelay time.Duration

	mu        sync.Mutex
	doc       thesis.Document
	gen       uint64 // bumped on every mutation
	dirty     bool
	saveTimer *time.Timer
}

// Document returns the current snapshot.
func (s *Session) Document() thesis.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// Apply runs a mutation against the current snapshot, queues any image
// releases it produced, and schedules a debounced save. The returned
// document is the post-mutation snapshot.
func (s *Session) Apply(m Mutation) thesis.Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, effects := m(s.doc)
	s.doc = doc
	s.gen++
	s.dirty = true
	s.scheduleSaveLocked()

	for _, e := range effects {
		if e.Kind == thesis.EffectReleaseImage && e.SourceRef != "" && s.releases != nil {
			s.releases.Enqueue(e.SourceRef)
		}
	}
	return doc
}

// Replace swaps in a whole new document (import, full PUT) and schedules a
// save.
func (s *Session) Replace(doc thesis.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc
	s.gen++
	s.dirty = true
	s.scheduleSaveLocked()
}

// Flush saves immediately if dirty and cancels any pending debounce.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.saveTimer != nil {
		s.saveTimer.Stop()
		s.saveTimer = nil
	}
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	doc := s.doc
	gen := s.gen
	s.mu.Unlock()

	if err := s.store.Save(ctx, s.key, doc); err != nil {
		return err
	}

	s.mu.Lock()
	// Only clear dirty if nothing changed while we were writing.
	if s.gen == gen {
		s.dirty = false
	}
	s.mu.Unlock()
	return nil
}

// scheduleSaveLocked resets the debounce timer. Caller holds s.mu.
func (s *Session) scheduleSaveLocked() {
	if s.saveTimer != nil {
		s.saveTimer.Stop()
	}
	s.saveTimer = time.AfterFunc(s.saveDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.Flush(ctx); err != nil {
			s.logger.Warn("autosave failed", "error", err)
		}
	})
}

