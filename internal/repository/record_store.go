package repository

import (
	"context"
	"errors"

	"github.com/noah-isme/roster-api/internal/models"
)

// ErrDocumentNotFound is returned by Get and Update when the id is unknown.
var ErrDocumentNotFound = errors.New("document not found")

// RecordStore is the document store holding flat collections of field maps.
// Identifiers are assigned by the store on Create. Update merges the given
// fields into the stored document. Delete of an unknown id is a no-op.
type RecordStore interface {
	ListAll(ctx context.Context, collection string) ([]models.Document, error)
	Get(ctx context.Context, collection, id string) (*models.Document, error)
	Create(ctx context.Context, collection string, fields map[string]interface{}) (string, error)
	Update(ctx context.Context, collection, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, collection, id string) error
}

func copyFields(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
