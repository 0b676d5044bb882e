// Package chromem adapts github.com/philippgille/chromem-go to the
// vectorstore.Store interface, generalizing the teacher's single-collection
// ChromemStore (rag/store/chromem/store.go) into a multi-collection store
// keyed by memoria index name, with tag-aware metadata flattening so
// multi-valued tags survive chromem's string-only, EQ-only metadata model.
package chromem

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/kestrelai/memoria/pipeline"
	"github.com/kestrelai/memoria/vectorstore"
)

// payloadMetadataKey stores a record's JSON-encoded payload, since
// chromem-go's metadata values are plain strings.
const payloadMetadataKey = "__payload"

// tagFlagPrefix namespaces the synthetic metadata keys used to encode
// multi-valued tags as a set of boolean flags, since chromem-go's where
// clause only supports exact string equality on a single value per key.
const tagFlagPrefix = "__tagval:"

// Store is a vectorstore.Store backed by a chromem-go database.
type Store struct {
	db *chromem.DB

	mu          sync.Mutex
	collections map[string]*chromem.Collection
}

// New opens or creates a chromem database at persistPath. An empty
// persistPath yields an in-memory-only store (teacher's same convention:
// "If persistPath is empty, the store will be in-memory only").
func New(persistPath string) (*Store, error) {
	var db *chromem.DB
	if persistPath != "" {
		var err error
		db, err = chromem.NewPersistentDB(persistPath, false)
		if err != nil {
			return nil, fmt.Errorf("chromem store: open persistent db: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}
	return &Store{db: db, collections: make(map[string]*chromem.Collection)}, nil
}

func (s *Store) collection(index string) (*chromem.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[index]; ok {
		return c, nil
	}
	// Embeddings are always supplied explicitly by the caller (save-records
	// handler, search client), so no embedding function is registered here.
	c, err := s.db.GetOrCreateCollection(index, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem store: get or create collection %q: %w", index, err)
	}
	s.collections[index] = c
	return c, nil
}

func (s *Store) EnsureIndex(_ context.Context, index string) error {
	_, err := s.collection(index)
	return err
}

func (s *Store) DropIndex(_ context.Context, index string) error {
	s.mu.Lock()
	delete(s.collections, index)
	s.mu.Unlock()

	if err := s.db.DeleteCollection(index); err != nil {
		return fmt.Errorf("chromem store: delete collection %q: %w", index, err)
	}
	return nil
}

func (s *Store) ListIndexes(_ context.Context) ([]string, error) {
	names := make([]string, 0)
	for name := range s.db.ListCollections() {
		names = append(names, name)
	}
	return names, nil
}

func flagKey(tagKey, value string) string {
	return tagFlagPrefix + tagKey + ":" + value
}

func metadataFromRecord(r pipeline.MemoryRecord) (map[string]string, error) {
	meta := make(map[string]string, len(r.Tags)*2+1)
	for k, values := range r.Tags {
		meta["__tag:"+k] = strings.Join(values, "\x1f")
		for _, v := range values {
			meta[flagKey(k, v)] = "1"
		}
	}
	if len(r.Payload) > 0 {
		payload, err := json.Marshal(r.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload for record %s: %w", r.ID, err)
		}
		meta[payloadMetadataKey] = string(payload)
	}
	return meta, nil
}

// tagsAndPayloadFromMetadata splits a chromem document's flat metadata map
// back into the tags and JSON payload a MemoryRecord carries.
func tagsAndPayloadFromMetadata(meta map[string]string) (pipeline.Tags, map[string]interface{}) {
	tags := make(pipeline.Tags)
	var payload map[string]interface{}
	for k, v := range meta {
		switch {
		case strings.HasPrefix(k, "__tag:"):
			tags[strings.TrimPrefix(k, "__tag:")] = strings.Split(v, "\x1f")
		case k == payloadMetadataKey:
			_ = json.Unmarshal([]byte(v), &payload)
		}
	}
	return tags, payload
}

// Upsert writes records as chromem documents, re-using each record's
// deterministic ID so a repeated Upsert overwrites in place.
func (s *Store) Upsert(ctx context.Context, index string, records []pipeline.MemoryRecord) error {
	c, err := s.collection(index)
	if err != nil {
		return err
	}

	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		if len(r.Vector) == 0 {
			return fmt.Errorf("chromem store: record %s has no vector", r.ID)
		}
		meta, err := metadataFromRecord(r)
		if err != nil {
			return fmt.Errorf("chromem store: %w", err)
		}
		docs[i] = chromem.Document{
			ID:        r.ID,
			Metadata:  meta,
			Embedding: r.Vector,
		}
	}

	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("chromem store: add documents to %q: %w", index, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, index string, ids []string) error {
	c, err := s.collection(index)
	if err != nil {
		return err
	}
	if err := c.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("chromem store: delete ids from %q: %w", index, err)
	}
	return nil
}

func (s *Store) DeleteByFilter(ctx context.Context, index string, filter vectorstore.Filter) error {
	c, err := s.collection(index)
	if err != nil {
		return err
	}
	where := make(map[string]string, len(filter))
	for k, v := range filter {
		where[flagKey(k, v)] = "1"
	}
	if err := c.Delete(ctx, where, nil); err != nil {
		return fmt.Errorf("chromem store: delete by filter from %q: %w", index, err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, index string, req vectorstore.SearchRequest) ([]vectorstore.ScoredRecord, error) {
	c, err := s.collection(index)
	if err != nil {
		return nil, err
	}

	var where map[string]string
	if len(req.Filter) > 0 {
		where = make(map[string]string, len(req.Filter))
		for k, v := range req.Filter {
			where[flagKey(k, v)] = "1"
		}
	}

	topK := req.TopK
	if topK <= 0 {
		topK = 10
	}
	if n := c.Count(); n < topK {
		topK = n
	}
	if topK == 0 {
		return nil, nil
	}

	results, err := c.QueryEmbedding(ctx, req.Embedding, topK, where, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem store: query %q: %w", index, err)
	}

	out := make([]vectorstore.ScoredRecord, 0, len(results))
	for _, doc := range results {
		score := float64(doc.Similarity)
		if score < req.MinScore {
			continue
		}
		tags, payload := tagsAndPayloadFromMetadata(doc.Metadata)
		out = append(out, vectorstore.ScoredRecord{
			Record: pipeline.MemoryRecord{
				ID:      doc.ID,
				Vector:  doc.Embedding,
				Tags:    tags,
				Payload: payload,
			},
			Score: score,
		})
	}
	return out, nil
}

var _ vectorstore.Store = (*Store)(nil)
