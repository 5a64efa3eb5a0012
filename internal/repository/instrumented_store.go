package repository

import (
	"context"
	"errors"
	"time"

	"github.com/noah-isme/roster-api/internal/models"
)

// StoreObserver receives the latency and outcome of every store call.
type StoreObserver interface {
	ObserveStoreOperation(operation, collection string, duration time.Duration, err error)
}

// InstrumentedStore reports each RecordStore call to an observer.
type InstrumentedStore struct {
	next     RecordStore
	observer StoreObserver
}

// NewInstrumentedStore wraps next. A nil observer returns next unchanged.
func NewInstrumentedStore(next RecordStore, observer StoreObserver) RecordStore {
	if observer == nil {
		return next
	}
	return &InstrumentedStore{next: next, observer: observer}
}

func (s *InstrumentedStore) ListAll(ctx context.Context, collection string) ([]models.Document, error) {
	start := time.Now()
	docs, err := s.next.ListAll(ctx, collection)
	s.observer.ObserveStoreOperation("list", collection, time.Since(start), err)
	return docs, err
}

func (s *InstrumentedStore) Get(ctx context.Context, collection, id string) (*models.Document, error) {
	start := time.Now()
	doc, err := s.next.Get(ctx, collection, id)
	// a missing document is an answer, not a store failure
	observed := err
	if errors.Is(err, ErrDocumentNotFound) {
		observed = nil
	}
	s.observer.ObserveStoreOperation("get", collection, time.Since(start), observed)
	return doc, err
}

func (s *InstrumentedStore) Create(ctx context.Context, collection string, fields map[string]interface{}) (string, error) {
	start := time.Now()
	id, err := s.next.Create(ctx, collection, fields)
	s.observer.ObserveStoreOperation("create", collection, time.Since(start), err)
	return id, err
}

func (s *InstrumentedStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	start := time.Now()
	err := s.next.Update(ctx, collection, id, fields)
	s.observer.ObserveStoreOperation("update", collection, time.Since(start), err)
	return err
}

func (s *InstrumentedStore) Delete(ctx context.Context, collection, id string) error {
	start := time.Now()
	err := s.next.Delete(ctx, collection, id)
	s.observer.ObserveStoreOperation("delete", collection, time.Since(start), err)
	return err
}
