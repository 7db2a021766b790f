// Package imagestore is the image storage boundary: uploading image payloads,
// resolving source refs back to bytes for export, and best-effort release of
// payloads whose blocks were removed.
//
// A source ref is an opaque string carried on image blocks. Owned payloads
// use "file:<relative path>" refs into the scribe home directory; refs
// starting with http:// or https:// are remote-hosted and only fetchable.
package imagestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
)

// Sentinel errors for the imagestore package.
var (
	// ErrNotFound is returned when a ref does not resolve to a payload.
	ErrNotFound = errors.New("image not found")

	// ErrNotReleasable is returned by Release for refs the store does not
	// own (remote URLs). Callers treat it as "nothing to do".
	ErrNotReleasable = errors.New("ref is not owned by this store")
)

const ownedRefPrefix = "file:"

// Store is the image storage boundary. Upload failures are surfaced to the
// user and block the action; fetch failures during bundling mean "omit the
// image"; release is best-effort and never surfaced.
type Store interface {
	// Upload stores a payload and returns its source ref.
	Upload(ctx context.Context, name string, data []byte) (string, error)

	// Fetch resolves a source ref to its raw bytes.
	Fetch(ctx context.Context, ref string) ([]byte, error)

	// Release deletes the payload behind an owned ref.
	Release(ctx context.Context, ref string) error
}

// DiskStore keeps owned payloads as files under a root directory, one
// subdirectory per document key.
type DiskStore struct {
	root string
}

// NewDiskStore creates a disk store rooted at the given directory.
func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image root: %w", err)
	}
	return &DiskStore{root: root}, nil
}

// Upload writes the payload under a collision-proof name and returns an
// owned ref. The original filename is kept as a suffix so bundle entries
// stay recognizable.
func (s *DiskStore) Upload(ctx context.Context, name string, data []byte) (string, error) {
	base := filepath.Base(name)
	if base == "." || base == "/" || base == "" {
		base = "image"
	}
	rel := uuid.NewString()[:8] + "_" + base
	path := filepath.Join(s.root, rel)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to store image %q: %w", base, err)
	}
	return ownedRefPrefix + rel, nil
}

// Fetch reads an owned payload back.
func (s *DiskStore) Fetch(ctx context.Context, ref string) ([]byte, error) {
	rel, ok := strings.CutPrefix(ref, ownedRefPrefix)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, ref)
	}
	data, err := os.ReadFile(filepath.Join(s.root, filepath.Clean(rel)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read image %q: %w", ref, err)
	}
	return data, nil
}

// Release deletes an owned payload. Releasing a ref that is already gone is
// not an error; releasing a ref the store does not own is ErrNotReleasable.
func (s *DiskStore) Release(ctx context.Context, ref string) error {
	rel, ok := strings.CutPrefix(ref, ownedRefPrefix)
	if !ok {
		return ErrNotReleasable
	}
	err := os.Remove(filepath.Join(s.root, filepath.Clean(rel)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to release image %q: %w", ref, err)
	}
	return nil
}

// HTTPFetcher resolves remote-hosted refs. It cannot upload or release.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a fetcher for remote image refs.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Fetch downloads the payload behind a remote URL, retrying transient
// failures a few times before giving up.
func (f *HTTPFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	var data []byte
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := f.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusNotFound {
				return retry.Unrecoverable(fmt.Errorf("%w: %q", ErrNotFound, ref))
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("fetch %q: status %d", ref, resp.StatusCode)
			}
			data, err = io.ReadAll(resp.Body)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
	)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Resolver routes refs to the right backend: owned refs to the disk store,
// http(s) refs to the HTTP fetcher. It is the Store implementation the rest
// of scribe uses.
type Resolver struct {
	disk *DiskStore
	http *HTTPFetcher
}

// NewResolver combines a disk store with a remote fetcher.
func NewResolver(disk *DiskStore, fetcher *HTTPFetcher) *Resolver {
	return &Resolver{disk: disk, http: fetcher}
}

// Upload always targets owned storage.
func (r *Resolver) Upload(ctx context.Context, name string, data []byte) (string, error) {
	return r.disk.Upload(ctx, name, data)
}

// Fetch resolves owned and remote refs.
func (r *Resolver) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if isRemote(ref) {
		return r.http.Fetch(ctx, ref)
	}
	return r.disk.Fetch(ctx, ref)
}

// Release only ever touches owned storage; remote payloads are not ours to
// delete.
func (r *Resolver) Release(ctx context.Context, ref string) error {
	if isRemote(ref) {
		return ErrNotReleasable
	}
	return r.disk.Release(ctx, ref)
}

func isRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}
