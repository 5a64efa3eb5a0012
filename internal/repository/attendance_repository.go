package repository

import (
	"context"
	"time"

	"github.com/noah-isme/roster-api/internal/models"
)

// AttendanceRepository maps the attendance collection onto models.AttendanceRecord.
type AttendanceRepository struct {
	store RecordStore
	loc   *time.Location
}

// NewAttendanceRepository constructs an AttendanceRepository.
func NewAttendanceRepository(store RecordStore, loc *time.Location) *AttendanceRepository {
	if loc == nil {
		loc = time.Local
	}
	return &AttendanceRepository{store: store, loc: loc}
}

// List returns every attendance record.
func (r *AttendanceRepository) List(ctx context.Context) ([]models.AttendanceRecord, error) {
	docs, err := r.store.ListAll(ctx, models.CollectionAttendance)
	if err != nil {
		return nil, err
	}
	records := make([]models.AttendanceRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, models.AttendanceFromDocument(doc, r.loc))
	}
	return records, nil
}

// Create appends a record and sets its id. Records are never updated.
func (r *AttendanceRepository) Create(ctx context.Context, record *models.AttendanceRecord) error {
	id, err := r.store.Create(ctx, models.CollectionAttendance, record.Fields())
	if err != nil {
		return err
	}
	record.ID = id
	return nil
}
