package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/noah-isme/roster-api/internal/models"
)

type memoryCollection struct {
	order []string
	docs  map[string]map[string]interface{}
}

// MemoryStore keeps documents in process. It backs local development and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryCollection)}
}

// ListAll returns documents in insertion order.
func (s *MemoryStore) ListAll(ctx context.Context, collection string) ([]models.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.collections[collection]
	if !ok {
		return []models.Document{}, nil
	}
	docs := make([]models.Document, 0, len(col.order))
	for _, id := range col.order {
		docs = append(docs, models.Document{ID: id, Fields: copyFields(col.docs[id])})
	}
	return docs, nil
}

// Get returns a single document.
func (s *MemoryStore) Get(ctx context.Context, collection, id string) (*models.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.collections[collection]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	fields, ok := col.docs[id]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return &models.Document{ID: id, Fields: copyFields(fields)}, nil
}

// Create stores fields under a fresh uuid.
func (s *MemoryStore) Create(ctx context.Context, collection string, fields map[string]interface{}) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.collections[collection]
	if !ok {
		col = &memoryCollection{docs: make(map[string]map[string]interface{})}
		s.collections[collection] = col
	}
	id := uuid.NewString()
	col.order = append(col.order, id)
	col.docs[id] = copyFields(fields)
	return id, nil
}

// Update merges fields into an existing document.
func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.collections[collection]
	if !ok {
		return ErrDocumentNotFound
	}
	stored, ok := col.docs[id]
	if !ok {
		return ErrDocumentNotFound
	}
	for k, v := range fields {
		stored[k] = v
	}
	return nil
}

// Delete removes a document if present.
func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.collections[collection]
	if !ok {
		return nil
	}
	if _, ok := col.docs[id]; !ok {
		return nil
	}
	delete(col.docs, id)
	for i, existing := range col.order {
		if existing == id {
			col.order = append(col.order[:i], col.order[i+1:]...)
			break
		}
	}
	return nil
}
