package couch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/_up" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			w.Write([]byte(`{"status":"ok"}`))
		}))
		defer srv.Close()

		if err := NewClient(srv.URL, "", "").HealthCheck(context.Background()); err != nil {
			t.Errorf("expected healthy, got %v", err)
		}
	})

	t.Run("unhealthy", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		err := NewClient(srv.URL, "", "").HealthCheck(context.Background())
		if !errors.Is(err, ErrUnhealthy) {
			t.Errorf("expected ErrUnhealthy, got %v", err)
		}
	})
}

func TestEnsureDatabase(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"created", http.StatusCreated, false},
		{"already exists", http.StatusPreconditionFailed, false},
		{"unauthorized", http.StatusUnauthorized, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPut || r.URL.Path != "/theses" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := NewClient(srv.URL, "admin", "secret").EnsureDatabase(context.Background(), "theses")
			if (err != nil) != tt.wantErr {
				t.Errorf("EnsureDatabase: err=%v, wantErr=%v", err, tt.wantErr)
			}
		})
	}
}

func TestGetDoc(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/theses/thesis:alice":
			w.Write([]byte(`{"_id":"thesis:alice","_rev":"3-abc","meta":{"title":"T"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"not_found"}`))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "admin", "secret")

	t.Run("found", func(t *testing.T) {
		body, rev, err := c.GetDoc(context.Background(), "theses", "thesis:alice")
		if err != nil {
			t.Fatalf("GetDoc: %v", err)
		}
		if rev != "3-abc" {
			t.Errorf("expected rev 3-abc, got %q", rev)
		}
		var doc map[string]any
		if err := json.Unmarshal(body, &doc); err != nil {
			t.Fatalf("body is not JSON: %v", err)
		}
	})

	t.Run("missing", func(t *testing.T) {
		_, _, err := c.GetDoc(context.Background(), "theses", "thesis:bob")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestPutDoc(t *testing.T) {
	t.Run("create and update", func(t *testing.T) {
		var gotRev string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var doc map[string]any
			if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
				t.Errorf("body decode: %v", err)
			}
			if rev, ok := doc["_rev"].(string); ok {
				gotRev = rev
			}
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"ok":true,"id":"thesis:alice","rev":"4-def"}`))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "", "")
		rev, err := c.PutDoc(context.Background(), "theses", "thesis:alice", map[string]any{"meta": "x"}, "3-abc")
		if err != nil {
			t.Fatalf("PutDoc: %v", err)
		}
		if rev != "4-def" {
			t.Errorf("expected new rev 4-def, got %q", rev)
		}
		if gotRev != "3-abc" {
			t.Errorf("expected _rev 3-abc in body, got %q", gotRev)
		}
	})

	t.Run("conflict", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL, "", "").PutDoc(context.Background(), "theses", "x", map[string]any{}, "1-a")
		if !errors.Is(err, ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
	})
}

func TestDeleteDoc(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("unexpected method %s", r.Method)
		}
		if r.URL.Query().Get("rev") != "2-b" {
			t.Errorf("expected rev query param, got %q", r.URL.RawQuery)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	if err := NewClient(srv.URL, "", "").DeleteDoc(context.Background(), "theses", "thesis:x", "2-b"); err != nil {
		t.Errorf("DeleteDoc: %v", err)
	}
}

func TestDeleteDocAlreadyGone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if err := NewClient(srv.URL, "", "").DeleteDoc(context.Background(), "theses", "thesis:x", "2-b"); err != nil {
		t.Errorf("expected delete of missing doc to be a no-op, got %v", err)
	}
}

func TestListDocIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/theses/_all_docs" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"total_rows":2,"rows":[{"id":"thesis:alice"},{"id":"thesis:bob"}]}`))
	}))
	defer srv.Close()

	ids, err := NewClient(srv.URL, "", "").ListDocIDs(context.Background(), "theses")
	if err != nil {
		t.Fatalf("ListDocIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != "thesis:alice" || ids[1] != "thesis:bob" {
		t.Errorf("unexpected ids: %v", ids)
	}
}
