package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/roster-api/internal/models"
)

func TestStudentRepositoryNormalisesAliases(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_, err := store.Create(ctx, models.CollectionStudents, map[string]interface{}{
		"fullName": "Mina Fady",
		"mobile":   "01012345678",
		"type":     "new",
		"DOB":      map[string]interface{}{"seconds": int64(1262304000)},
	})
	require.NoError(t, err)

	repo := NewStudentRepository(store, time.UTC)
	students, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "Mina Fady", students[0].Name)
	assert.Equal(t, "01012345678", students[0].Phone)
	assert.Equal(t, "new", students[0].StudentType)
	assert.Equal(t, "2010-01-01", students[0].DateOfBirth)
}

func TestStudentRepositoryCRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewStudentRepository(NewMemoryStore(), time.UTC)

	student := &models.Student{Name: "Mina", Gender: models.GenderMale}
	require.NoError(t, repo.Create(ctx, student))
	require.NotEmpty(t, student.ID)

	student.Phone = "01112345678"
	require.NoError(t, repo.Update(ctx, student))

	loaded, err := repo.FindByID(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, "01112345678", loaded.Phone)

	require.NoError(t, repo.Delete(ctx, student.ID))
	_, err = repo.FindByID(ctx, student.ID)
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}
