package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/scribe-labs/scribe/internal/home"
	"github.com/scribe-labs/scribe/internal/thesis"
)

// startTestServer runs a sqlite-backed server on the given port and waits
// until /health responds. Shutdown is registered as cleanup.
func startTestServer(t *testing.T, port int) (*Server, string) {
	t.Helper()

	h, err := home.New(t.TempDir())
	if err != nil {
		t.Fatalf("home.New() error = %v", err)
	}

	srv, err := New(Config{
		Host:    "127.0.0.1",
		Port:    port,
		Backend: "sqlite",
		Home:    h,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	serverCtx, serverCancel := context.WithCancel(context.Background())
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start(serverCtx)
	}()

	t.Cleanup(func() {
		serverCancel()
		select {
		case err := <-serverErr:
			if err != nil {
				t.Logf("server returned error during shutdown: %v", err)
			}
		case <-time.After(30 * time.Second):
			t.Fatal("server did not shut down within timeout")
		}
	})

	baseURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	if err := waitForServer(serverCtx, baseURL, 15*time.Second); err != nil {
		t.Fatalf("server did not start: %v", err)
	}
	return srv, baseURL
}

func TestServer_Lifecycle(t *testing.T) {
	srv, baseURL := startTestServer(t, 18585)

	t.Run("health_endpoint", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/health")
		if err != nil {
			t.Fatalf("health check failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("health status = %d, want %d", resp.StatusCode, http.StatusOK)
		}

		var health struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if health.Status != "ok" {
			t.Errorf("health.Status = %q, want %q", health.Status, "ok")
		}
	})

	t.Run("ready_endpoint", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/ready")
		if err != nil {
			t.Fatalf("ready check failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("ready status = %d, want %d", resp.StatusCode, http.StatusOK)
		}
	})

	t.Run("is_running", func(t *testing.T) {
		if !srv.IsRunning() {
			t.Error("IsRunning() = false, want true")
		}
	})

	t.Run("double_start_fails", func(t *testing.T) {
		if err := srv.Start(t.Context()); err == nil {
			t.Error("second Start() should return error")
		}
	})

	t.Run("settings_unavailable_on_sqlite", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/api/settings")
		if err != nil {
			t.Fatalf("settings request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("settings status = %d, want %d", resp.StatusCode, http.StatusServiceUnavailable)
		}
	})
}

// TestServer_DocumentFlow drives an edit session end to end over HTTP:
// create a chapter, rename it, add blocks, then export.
func TestServer_DocumentFlow(t *testing.T) {
	_, baseURL := startTestServer(t, 18586)
	client := &http.Client{Timeout: 10 * time.Second}

	doJSON := func(t *testing.T, method, path string, body any, out any) int {
		t.Helper()
		var reader io.Reader
		if body != nil {
			data, err := json.Marshal(body)
			if err != nil {
				t.Fatalf("marshal body: %v", err)
			}
			reader = bytes.NewReader(data)
		}
		req, err := http.NewRequest(method, baseURL+path, reader)
		if err != nil {
			t.Fatalf("new request: %v", err)
		}
		if reader != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("%s %s failed: %v", method, path, err)
		}
		defer resp.Body.Close()
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				t.Fatalf("decode %s %s response: %v", method, path, err)
			}
		}
		return resp.StatusCode
	}

	var doc thesis.Document
	if code := doJSON(t, "GET", "/api/theses/demo", nil, &doc); code != http.StatusOK {
		t.Fatalf("get document status = %d", code)
	}
	if len(doc.Chapters) != 1 {
		t.Fatalf("new document has %d chapters, want 1", len(doc.Chapters))
	}

	var ch thesis.Chapter
	if code := doJSON(t, "POST", "/api/theses/demo/chapters", nil, &ch); code != http.StatusCreated {
		t.Fatalf("add chapter status = %d", code)
	}
	if ch.ID == "" {
		t.Fatal("new chapter has empty id")
	}

	if code := doJSON(t, "PATCH", "/api/theses/demo/chapters/"+ch.ID,
		map[string]string{"title": "Results"}, &ch); code != http.StatusOK {
		t.Fatalf("rename chapter status = %d", code)
	}
	if ch.Title != "Results" {
		t.Errorf("chapter title = %q, want %q", ch.Title, "Results")
	}

	var block thesis.Block
	if code := doJSON(t, "POST", "/api/theses/demo/chapters/"+ch.ID+"/blocks",
		map[string]string{"type": "text", "content": "Hello"}, &block); code != http.StatusCreated {
		t.Fatalf("append block status = %d", code)
	}

	if code := doJSON(t, "POST", "/api/theses/demo/chapters/"+ch.ID+"/blocks",
		map[string]string{"type": "equation", "content": "E=mc^2"}, nil); code != http.StatusCreated {
		t.Fatalf("append equation status = %d", code)
	}

	t.Run("export_tex", func(t *testing.T) {
		resp, err := client.Get(baseURL + "/api/theses/demo/export/tex")
		if err != nil {
			t.Fatalf("export failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("export status = %d", resp.StatusCode)
		}
		tex, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("read export: %v", err)
		}
		for _, want := range []string{"\\chapter{Results}", "Hello", "E=mc^2"} {
			if !strings.Contains(string(tex), want) {
				t.Errorf("export missing %q", want)
			}
		}
		hello := strings.Index(string(tex), "Hello")
		eq := strings.Index(string(tex), "E=mc^2")
		if hello > eq {
			t.Error("blocks rendered out of order")
		}
	})

	t.Run("export_bundle", func(t *testing.T) {
		resp, err := client.Get(baseURL + "/api/theses/demo/export/bundle")
		if err != nil {
			t.Fatalf("bundle export failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("bundle status = %d", resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "application/zip" {
			t.Errorf("bundle content type = %q", ct)
		}
	})

	t.Run("import_bad_backup_rejected", func(t *testing.T) {
		code := doJSON(t, "POST", "/api/theses/demo/import", map[string]any{"intro": 5}, nil)
		if code != http.StatusBadRequest {
			t.Errorf("import status = %d, want %d", code, http.StatusBadRequest)
		}

		// Document unchanged by the failed import.
		var after thesis.Document
		if code := doJSON(t, "GET", "/api/theses/demo", nil, &after); code != http.StatusOK {
			t.Fatalf("get after import status = %d", code)
		}
		if len(after.Chapters) != 2 {
			t.Errorf("chapters after failed import = %d, want 2", len(after.Chapters))
		}
	})

	t.Run("delete_document", func(t *testing.T) {
		if code := doJSON(t, "DELETE", "/api/theses/demo", nil, nil); code != http.StatusOK {
			t.Fatalf("delete status = %d", code)
		}
		var fresh thesis.Document
		if code := doJSON(t, "GET", "/api/theses/demo", nil, &fresh); code != http.StatusOK {
			t.Fatalf("get after delete status = %d", code)
		}
		if len(fresh.Chapters) != 1 {
			t.Errorf("chapters after delete = %d, want 1", len(fresh.Chapters))
		}
	})
}

// waitForServer polls the server until it responds or timeout.
func waitForServer(ctx context.Context, baseURL string, timeout time.Duration) error {
	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		req, err := http.NewRequestWithContext(ctx, "GET", baseURL+"/health", nil)
		if err != nil {
			return err
		}

		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}

		time.Sleep(250 * time.Millisecond)
	}

	return fmt.Errorf("server not ready after %s", timeout)
}
