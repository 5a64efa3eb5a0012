package repository

import (
	"context"
	"time"

	"github.com/noah-isme/roster-api/internal/models"
)

// StudentRepository maps the students collection onto models.Student.
type StudentRepository struct {
	store RecordStore
	loc   *time.Location
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(store RecordStore, loc *time.Location) *StudentRepository {
	if loc == nil {
		loc = time.Local
	}
	return &StudentRepository{store: store, loc: loc}
}

// List returns every student with legacy aliases resolved.
func (r *StudentRepository) List(ctx context.Context) ([]models.Student, error) {
	docs, err := r.store.ListAll(ctx, models.CollectionStudents)
	if err != nil {
		return nil, err
	}
	students := make([]models.Student, 0, len(docs))
	for _, doc := range docs {
		students = append(students, models.StudentFromDocument(doc, r.loc))
	}
	return students, nil
}

// FindByID loads a single student.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	doc, err := r.store.Get(ctx, models.CollectionStudents, id)
	if err != nil {
		return nil, err
	}
	student := models.StudentFromDocument(*doc, r.loc)
	return &student, nil
}

// Create stores the student and sets its id.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	id, err := r.store.Create(ctx, models.CollectionStudents, student.Fields())
	if err != nil {
		return err
	}
	student.ID = id
	return nil
}

// Update overwrites the canonical fields of an existing student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	return r.store.Update(ctx, models.CollectionStudents, student.ID, student.Fields())
}

// Delete removes a student. Attendance referencing it is left untouched.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, models.CollectionStudents, id)
}
