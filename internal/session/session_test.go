package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/scribe-labs/scribe/internal/store"
	"github.com/scribe-labs/scribe/internal/thesis"
)

// memStore is an in-memory Store for session tests.
type memStore struct {
	mu    sync.Mutex
	docs  map[string]thesis.Document
	saves int
	fail  error
}

func newMemStore() *memStore {
	return &memStore{docs: make(map[string]thesis.Document)}
}

func (m *memStore) Load(ctx context.Context, key string) (thesis.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[key]
	if !ok {
		return thesis.Document{}, fmt.Errorf("%w: %s", store.ErrNotFound, key)
	}
	return doc, nil
}

func (m *memStore) Save(ctx context.Context, key string, doc thesis.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.docs[key] = doc
	m.saves++
	return nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, key)
	return nil
}

func (m *memStore) Keys(ctx context.Context) ([]string, error) { return nil, nil }
func (m *memStore) Ping(ctx context.Context) error             { return nil }
func (m *memStore) Close() error                               { return nil }

func (m *memStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// memQueue records enqueued release refs.
type memQueue struct {
	mu   sync.Mutex
	refs []string
}

func (q *memQueue) Enqueue(ref string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.refs = append(q.refs, ref)
}

func (q *memQueue) snapshot() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.refs...)
}

func TestManagerGetCreatesDefaultDocument(t *testing.T) {
	st := newMemStore()
	mgr := NewManager(st, nil, nil, time.Hour)

	s, err := mgr.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	doc := s.Document()
	if doc.Meta.Title != "My Thesis" || len(doc.Chapters) != 1 {
		t.Errorf("expected default document, got %+v", doc.Meta)
	}

	// Default doc is dirty so the first flush persists it.
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if st.saveCount() != 1 {
		t.Errorf("expected the fresh document to be saved, got %d saves", st.saveCount())
	}
}

func TestManagerGetReturnsSameSession(t *testing.T) {
	mgr := NewManager(newMemStore(), nil, nil, time.Hour)
	ctx := context.Background()

	a, err := mgr.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	b, err := mgr.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if a != b {
		t.Errorf("expected one session per key")
	}
}

func TestManagerGetLoadsStoredDocument(t *testing.T) {
	st := newMemStore()
	stored := thesis.SetMeta(thesis.NewDocument(), thesis.Meta{Title: "Stored"})
	st.docs["alice"] = stored

	mgr := NewManager(st, nil, nil, time.Hour)
	s, err := mgr.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s.Document().Meta.Title != "Stored" {
		t.Errorf("expected stored document, got %q", s.Document().Meta.Title)
	}

	// Loaded clean: flush should not write.
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if st.saveCount() != 0 {
		t.Errorf("expected no save for a clean session, got %d", st.saveCount())
	}
}

func TestApplyQueuesReleaseEffects(t *testing.T) {
	st := newMemStore()
	q := &memQueue{}
	mgr := NewManager(st, q, nil, time.Hour)

	s, err := mgr.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	var blockID, chapterID string
	s.Apply(func(doc thesis.Document) (thesis.Document, []thesis.Effect) {
		chapterID = doc.Chapters[0].ID
		doc = thesis.AppendBlock(doc, chapterID, thesis.NewImageBlock("file:gone.png", "gone.png", ""))
		blockID = doc.Chapters[0].Blocks[len(doc.Chapters[0].Blocks)-1].ID
		return doc, nil
	})
	s.Apply(func(doc thesis.Document) (thesis.Document, []thesis.Effect) {
		return thesis.RemoveBlock(doc, chapterID, blockID)
	})

	refs := q.snapshot()
	if len(refs) != 1 || refs[0] != "file:gone.png" {
		t.Errorf("expected the removed image ref queued for release, got %v", refs)
	}
}

func TestDebouncedSave(t *testing.T) {
	st := newMemStore()
	mgr := NewManager(st, nil, nil, 20*time.Millisecond)

	s, err := mgr.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	// A burst of edits within the debounce window collapses to one save.
	for i := 0; i < 5; i++ {
		s.Apply(func(doc thesis.Document) (thesis.Document, []thesis.Effect) {
			return thesis.AddChapter(doc), nil
		})
		time.Sleep(2 * time.Millisecond)
	}

	deadline := time.Now().Add(2 * time.Second)
	for st.saveCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := st.saveCount(); got != 1 {
		t.Errorf("expected 1 debounced save, got %d", got)
	}
	if len(st.docs["alice"].Chapters) != 6 {
		t.Errorf("expected all edits in the saved snapshot, got %d chapters", len(st.docs["alice"].Chapters))
	}
}

func TestFlushCancelsPendingSave(t *testing.T) {
	st := newMemStore()
	mgr := NewManager(st, nil, nil, 30*time.Millisecond)

	s, err := mgr.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	s.Apply(func(doc thesis.Document) (thesis.Document, []thesis.Effect) {
		return thesis.AddChapter(doc), nil
	})

	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if st.saveCount() != 1 {
		t.Fatalf("expected immediate save, got %d", st.saveCount())
	}

	// The debounce timer must not fire a second save.
	time.Sleep(60 * time.Millisecond)
	if st.saveCount() != 1 {
		t.Errorf("expected the pending debounce to be cancelled, got %d saves", st.saveCount())
	}
}

func TestFlushKeepsDirtyOnError(t *testing.T) {
	st := newMemStore()
	mgr := NewManager(st, nil, nil, time.Hour)

	s, err := mgr.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	s.Apply(func(doc thesis.Document) (thesis.Document, []thesis.Effect) {
		return thesis.AddChapter(doc), nil
	})

	st.fail = errors.New("backend down")
	if err := s.Flush(context.Background()); err == nil {
		t.Fatal("expected flush error")
	}

	st.fail = nil
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("retry Flush: %v", err)
	}
	if st.saveCount() != 1 {
		t.Errorf("expected the retry to persist, got %d saves", st.saveCount())
	}
}

func TestShutdownFlushesAllSessions(t *testing.T) {
	st := newMemStore()
	mgr := NewManager(st, nil, nil, time.Hour)
	ctx := context.Background()

	for _, key := range []string{"alice", "bob"} {
		s, err := mgr.Get(ctx, key)
		if err != nil {
			t.Fatalf("Get %s: %v", key, err)
		}
		s.Apply(func(doc thesis.Document) (thesis.Document, []thesis.Effect) {
			return thesis.AddChapter(doc), nil
		})
	}

	mgr.Shutdown(ctx)
	if st.saveCount() != 2 {
		t.Errorf("expected both sessions flushed, got %d saves", st.saveCount())
	}
}
