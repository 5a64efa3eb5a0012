package repository

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/roster-api/internal/models"
)

// PostgresStore keeps documents as jsonb rows of the documents table.
type PostgresStore struct {
	db  *sqlx.DB
	now func() time.Time
}

type documentRow struct {
	ID     string `db:"id"`
	Fields []byte `db:"fields"`
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// ListAll returns documents ordered by creation time.
func (s *PostgresStore) ListAll(ctx context.Context, collection string) ([]models.Document, error) {
	const query = `SELECT id, fields FROM documents WHERE collection = $1 ORDER BY created_at, id`
	var rows []documentRow
	if err := s.db.SelectContext(ctx, &rows, query, collection); err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	docs := make([]models.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := row.document()
		if err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collection, row.ID, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Get returns a single document.
func (s *PostgresStore) Get(ctx context.Context, collection, id string) (*models.Document, error) {
	const query = `SELECT id, fields FROM documents WHERE collection = $1 AND id = $2`
	var row documentRow
	if err := s.db.GetContext(ctx, &row, query, collection, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	doc, err := row.document()
	if err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return &doc, nil
}

// Create inserts a new document under a fresh uuid.
func (s *PostgresStore) Create(ctx context.Context, collection string, fields map[string]interface{}) (string, error) {
	payload, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode %s document: %w", collection, err)
	}
	id := uuid.NewString()
	const query = `INSERT INTO documents (collection, id, fields, created_at, updated_at) VALUES ($1, $2, $3, $4, $4)`
	if _, err := s.db.ExecContext(ctx, query, collection, id, payload, s.now().UTC()); err != nil {
		return "", fmt.Errorf("create %s: %w", collection, err)
	}
	return id, nil
}

// Update merges fields into the stored jsonb object.
func (s *PostgresStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	const query = `UPDATE documents SET fields = fields || $3::jsonb, updated_at = $4 WHERE collection = $1 AND id = $2`
	res, err := s.db.ExecContext(ctx, query, collection, id, payload, s.now().UTC())
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s/%s rows affected: %w", collection, id, err)
	}
	if affected == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// Delete removes a document if present.
func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	const query = `DELETE FROM documents WHERE collection = $1 AND id = $2`
	if _, err := s.db.ExecContext(ctx, query, collection, id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (r documentRow) document() (models.Document, error) {
	fields := map[string]interface{}{}
	if len(r.Fields) > 0 {
		dec := json.NewDecoder(bytes.NewReader(r.Fields))
		dec.UseNumber()
		if err := dec.Decode(&fields); err != nil {
			return models.Document{}, err
		}
	}
	return models.Document{ID: r.ID, Fields: fields}, nil
}
