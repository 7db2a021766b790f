// Package couch is a minimal CouchDB HTTP client plus the Docker lifecycle
// manager for the local CouchDB container scribe stores documents in.
package couch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Sentinel errors for the couch package.
var (
	// ErrNotFound is returned when a document or database does not exist.
	ErrNotFound = errors.New("couch document not found")

	// ErrConflict is returned when a write loses a revision race.
	ErrConflict = errors.New("couch revision conflict")

	// ErrUnhealthy is returned when the CouchDB health check fails.
	ErrUnhealthy = errors.New("couch health check failed")
)

// Client is a CouchDB HTTP client scoped to one server.
type Client struct {
	url        string
	username   string
	password   string
	httpClient *http.Client
}

// NewClient creates a CouchDB client. Credentials are sent as basic auth on
// every request.
func NewClient(serverURL, username, password string) *Client {
	return &Client{
		url:      strings.TrimSuffix(serverURL, "/"),
		username: username,
		password: password,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// URL returns the server URL the client talks to.
func (c *Client) URL() string {
	return c.url
}

// HealthCheck checks that CouchDB is up and accepting requests.
func (c *Client) HealthCheck(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/_up", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnhealthy, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

// EnsureDatabase creates the database if it does not already exist.
func (c *Client) EnsureDatabase(ctx context.Context, db string) error {
	resp, err := c.do(ctx, http.MethodPut, "/"+url.PathEscape(db), nil)
	if err != nil {
		return fmt.Errorf("failed to create database %q: %w", db, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusAccepted:
		return nil
	case http.StatusPreconditionFailed:
		// Already exists.
		return nil
	default:
		return fmt.Errorf("failed to create database %q: %s", db, readError(resp))
	}
}

// GetDoc fetches a document body and its current revision.
func (c *Client) GetDoc(ctx context.Context, db, id string) ([]byte, string, error) {
	resp, err := c.do(ctx, http.MethodGet, docPath(db, id), nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get %s/%s: %w", db, id, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, "", fmt.Errorf("%w: %s/%s", ErrNotFound, db, id)
	default:
		return nil, "", fmt.Errorf("failed to get %s/%s: %s", db, id, readError(resp))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s/%s: %w", db, id, err)
	}

	var rev struct {
		Rev string `json:"_rev"`
	}
	if err := json.Unmarshal(body, &rev); err != nil {
		return nil, "", fmt.Errorf("failed to decode %s/%s: %w", db, id, err)
	}
	return body, rev.Rev, nil
}

// PutDoc writes a document. Pass the revision from the last read to update;
// pass "" to create. Returns the new revision.
func (c *Client) PutDoc(ctx context.Context, db, id string, doc map[string]any, rev string) (string, error) {
	if rev != "" {
		doc["_rev"] = rev
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s/%s: %w", db, id, err)
	}

	resp, err := c.do(ctx, http.MethodPut, docPath(db, id), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to put %s/%s: %w", db, id, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusAccepted:
	case http.StatusConflict:
		return "", fmt.Errorf("%w: %s/%s", ErrConflict, db, id)
	default:
		return "", fmt.Errorf("failed to put %s/%s: %s", db, id, readError(resp))
	}

	var result struct {
		Rev string `json:"rev"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode put response for %s/%s: %w", db, id, err)
	}
	return result.Rev, nil
}

// DeleteDoc removes a document at the given revision. Deleting a document
// that is already gone is not an error.
func (c *Client) DeleteDoc(ctx context.Context, db, id, rev string) error {
	path := docPath(db, id) + "?rev=" + url.QueryEscape(rev)
	resp, err := c.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", db, id, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted, http.StatusNotFound:
		return nil
	case http.StatusConflict:
		return fmt.Errorf("%w: %s/%s", ErrConflict, db, id)
	default:
		return fmt.Errorf("failed to delete %s/%s: %s", db, id, readError(resp))
	}
}

// ListDocIDs returns the ids of all documents in a database.
func (c *Client) ListDocIDs(ctx context.Context, db string) ([]string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/"+url.PathEscape(db)+"/_all_docs", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", db, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: database %s", ErrNotFound, db)
	default:
		return nil, fmt.Errorf("failed to list %s: %s", db, readError(resp))
	}

	var result struct {
		Rows []struct {
			ID string `json:"id"`
		} `json:"rows"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode list response for %s: %w", db, err)
	}

	ids := make([]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	return c.httpClient.Do(req)
}

func docPath(db, id string) string {
	return "/" + url.PathEscape(db) + "/" + url.PathEscape(id)
}

// readError extracts CouchDB's error body for diagnostics.
func readError(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return fmt.Sprintf("status %d", resp.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", resp.StatusCode, msg)
}
