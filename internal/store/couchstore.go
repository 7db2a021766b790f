package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/scribe-labs/scribe/internal/couch"
	"github.com/scribe-labs/scribe/internal/thesis"
)

const docIDPrefix = "thesis:"

// CouchStore keeps documents in a CouchDB database, one document per key
// under the id "thesis:<key>". Revisions are fetched fresh on every save so
// the editor's whole-document replace semantics win over CouchDB's MVCC.
type CouchStore struct {
	client *couch.Client
	db     string
}

// NewCouchStore creates a store against an existing CouchDB, creating the
// database if needed.
func NewCouchStore(ctx context.Context, client *couch.Client, db string) (*CouchStore, error) {
	if err := client.EnsureDatabase(ctx, db); err != nil {
		return nil, err
	}
	return &CouchStore{client: client, db: db}, nil
}

func (s *CouchStore) Load(ctx context.Context, key string) (thesis.Document, error) {
	body, _, err := s.client.GetDoc(ctx, s.db, docIDPrefix+key)
	if errors.Is(err, couch.ErrNotFound) {
		return thesis.Document{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return thesis.Document{}, err
	}
	doc, err := thesis.DecodeStored(body)
	if err != nil {
		return thesis.Document{}, fmt.Errorf("failed to decode stored document %s: %w", key, err)
	}
	return doc, nil
}

func (s *CouchStore) Save(ctx context.Context, key string, doc thesis.Document) error {
	id := docIDPrefix + key

	// Current rev, if the document exists.
	_, rev, err := s.client.GetDoc(ctx, s.db, id)
	if err != nil && !errors.Is(err, couch.ErrNotFound) {
		return err
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", key, err)
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return fmt.Errorf("failed to encode document %s: %w", key, err)
	}
	body["updated_at"] = time.Now().UTC().Format(time.RFC3339)

	_, err = s.client.PutDoc(ctx, s.db, id, body, rev)
	return err
}

func (s *CouchStore) Delete(ctx context.Context, key string) error {
	id := docIDPrefix + key
	_, rev, err := s.client.GetDoc(ctx, s.db, id)
	if errors.Is(err, couch.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.client.DeleteDoc(ctx, s.db, id, rev)
}

func (s *CouchStore) Keys(ctx context.Context) ([]string, error) {
	ids, err := s.client.ListDocIDs(ctx, s.db)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		if key, ok := strings.CutPrefix(id, docIDPrefix); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *CouchStore) Ping(ctx context.Context) error {
	return s.client.HealthCheck(ctx)
}

func (s *CouchStore) Close() error {
	return nil
}
