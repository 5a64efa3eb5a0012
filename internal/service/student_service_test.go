package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/roster-api/internal/models"
	"github.com/noah-isme/roster-api/internal/repository"
	appErrors "github.com/noah-isme/roster-api/pkg/errors"
)

type mockStudentRepo struct {
	students  []models.Student
	listErr   error
	writeErr  error
	listCalls int
	writes    int
}

func (m *mockStudentRepo) List(ctx context.Context) ([]models.Student, error) {
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]models.Student(nil), m.students...), nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	for _, s := range m.students {
		if s.ID == id {
			found := s
			return &found, nil
		}
	}
	return nil, repository.ErrDocumentNotFound
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	m.writes++
	if m.writeErr != nil {
		return m.writeErr
	}
	student.ID = "generated"
	m.students = append(m.students, *student)
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	m.writes++
	if m.writeErr != nil {
		return m.writeErr
	}
	for i := range m.students {
		if m.students[i].ID == student.ID {
			m.students[i] = *student
			return nil
		}
	}
	return repository.ErrDocumentNotFound
}

func (m *mockStudentRepo) Delete(ctx context.Context, id string) error {
	m.writes++
	if m.writeErr != nil {
		return m.writeErr
	}
	for i := range m.students {
		if m.students[i].ID == id {
			m.students = append(m.students[:i], m.students[i+1:]...)
			break
		}
	}
	return nil
}

type recordedNotice struct {
	level, source, message string
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []recordedNotice
}

func (r *recordingNotifier) Notify(ctx context.Context, level, source, message string, cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, recordedNotice{level: level, source: source, message: message})
}

func (r *recordingNotifier) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.notices))
	for _, n := range r.notices {
		out = append(out, n.message)
	}
	return out
}

func newStudentServiceForTest(repo *mockStudentRepo) (*StudentService, *recordingNotifier) {
	notes := &recordingNotifier{}
	return NewStudentService(repo, nil, 0, nil, notes, nil, nil), notes
}

func TestStudentServiceCreateValidatesPhones(t *testing.T) {
	cases := []struct {
		name    string
		req     StudentRequest
		message string
	}{
		{name: "bad prefix", req: StudentRequest{Name: "Mina", Phone: "01312345678"}, message: phoneMessages["Phone"]},
		{name: "too short", req: StudentRequest{Name: "Mina", FatherPhone: "0101234567"}, message: phoneMessages["FatherPhone"]},
		{name: "letters", req: StudentRequest{Name: "Mina", MotherPhone: "0151234567a"}, message: phoneMessages["MotherPhone"]},
		{name: "missing name", req: StudentRequest{Phone: "01012345678"}, message: "name is required"},
		{name: "gender", req: StudentRequest{Name: "Mina", Gender: "x"}, message: "gender must be one of: male, female"},
		{name: "grade", req: StudentRequest{Name: "Mina", YearOfStudy: "Grade 13"}, message: "year of study is not a known grade"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &mockStudentRepo{}
			svc, _ := newStudentServiceForTest(repo)
			_, err := svc.Create(context.Background(), tc.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, appErrors.ErrValidation)
			assert.Equal(t, tc.message, appErrors.FromError(err).Message)
			assert.Zero(t, repo.writes)
		})
	}
}

func TestStudentServiceCreateAcceptsValidPayload(t *testing.T) {
	repo := &mockStudentRepo{}
	svc, notes := newStudentServiceForTest(repo)
	student, err := svc.Create(context.Background(), StudentRequest{
		Name:        "  Mina  ",
		Phone:       "01012345678",
		FatherPhone: "01112345678",
		MotherPhone: "01512345678",
		DateOfBirth: "2010-03-01",
		YearOfStudy: models.YearsOfStudy[0],
		Gender:      "Male",
		StudentType: "new",
	})
	require.NoError(t, err)
	assert.Equal(t, "generated", student.ID)
	assert.Equal(t, "Mina", student.Name)
	assert.Equal(t, "male", student.Gender)
	assert.Equal(t, []string{MsgStudentAdded}, notes.messages())

	result, err := svc.List(context.Background(), models.StudentQuery{})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "/students/generated", result.Rows[0].DetailPath)
}

func TestStudentServiceStoreFailure(t *testing.T) {
	repo := &mockStudentRepo{writeErr: errors.New("unavailable")}
	svc, notes := newStudentServiceForTest(repo)
	_, err := svc.Create(context.Background(), StudentRequest{Name: "Mina"})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrStore)
	assert.Equal(t, MsgSaveStudentError, appErrors.FromError(err).Message)
	assert.Equal(t, []string{MsgSaveStudentError}, notes.messages())

	err = svc.Delete(context.Background(), "x")
	assert.Equal(t, MsgDeleteStudentError, appErrors.FromError(err).Message)
}

func TestStudentServiceListServesStaleSnapshot(t *testing.T) {
	repo := &mockStudentRepo{students: []models.Student{{ID: "1", Name: "Mina"}}}
	svc, notes := newStudentServiceForTest(repo)

	result, err := svc.List(context.Background(), models.StudentQuery{})
	require.NoError(t, err)
	assert.False(t, result.Stale)
	require.Len(t, result.Rows, 1)

	repo.listErr = errors.New("offline")
	result, err = svc.List(context.Background(), models.StudentQuery{})
	require.NoError(t, err)
	assert.True(t, result.Stale)
	require.NotNil(t, result.Warning)
	assert.Equal(t, MsgFetchStudentsError, result.Warning.Message)
	require.Len(t, result.Rows, 1)
	assert.Contains(t, notes.messages(), MsgFetchStudentsError)
}

func TestStudentServiceListWithoutSnapshotFails(t *testing.T) {
	repo := &mockStudentRepo{listErr: errors.New("offline")}
	svc, _ := newStudentServiceForTest(repo)
	_, err := svc.List(context.Background(), models.StudentQuery{})
	assert.ErrorIs(t, err, appErrors.ErrStore)
}

func TestStudentServiceListPaginatesAndFilters(t *testing.T) {
	repo := &mockStudentRepo{students: rosterFixture()}
	svc, _ := newStudentServiceForTest(repo)
	result, err := svc.List(context.Background(), models.StudentQuery{Gender: "male", Page: 2, PageSize: 1})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "3", result.Rows[0].ID)
	assert.Equal(t, &models.Pagination{Page: 2, PageSize: 1, TotalCount: 2}, result.Pagination)
}

func TestStudentServiceUsesSnapshotWithinTTL(t *testing.T) {
	repo := &mockStudentRepo{students: rosterFixture()}
	svc := NewStudentService(repo, nil, 1<<62, nil, nil, nil, nil)
	_, err := svc.List(context.Background(), models.StudentQuery{})
	require.NoError(t, err)
	_, err = svc.List(context.Background(), models.StudentQuery{Search: "mina"})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.listCalls)
}

func TestStudentServiceGetAndUpdate(t *testing.T) {
	repo := &mockStudentRepo{students: []models.Student{{ID: "1", Name: "Mina"}}}
	svc, notes := newStudentServiceForTest(repo)

	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.Update(context.Background(), "missing", StudentRequest{Name: "x"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	updated, err := svc.Update(context.Background(), "1", StudentRequest{Name: "Mina Fady", StudentType: "returning"})
	require.NoError(t, err)
	assert.Equal(t, "Mina Fady", updated.Name)
	assert.Contains(t, notes.messages(), MsgStudentUpdated)

	loaded, err := svc.Get(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "returning", loaded.StudentType)

	require.NoError(t, svc.Delete(context.Background(), "1"))
	assert.Contains(t, notes.messages(), MsgStudentDeleted)
}

func TestValidPhone(t *testing.T) {
	for _, ok := range []string{"01012345678", "01112345678", "01212345678", "01512345678"} {
		assert.True(t, ValidPhone(ok), ok)
	}
	for _, bad := range []string{"", "01312345678", "0101234567", "010123456789", "+201012345678", "0101234567x"} {
		assert.False(t, ValidPhone(bad), bad)
	}
}
