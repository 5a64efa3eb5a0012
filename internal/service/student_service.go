package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/roster-api/internal/dto"
	"github.com/noah-isme/roster-api/internal/models"
	"github.com/noah-isme/roster-api/internal/repository"
	appErrors "github.com/noah-isme/roster-api/pkg/errors"
)

// User-facing notices raised by the roster.
const (
	MsgStudentAdded       = "Student added successfully"
	MsgStudentUpdated     = "Student updated successfully"
	MsgStudentDeleted     = "Student deleted successfully"
	MsgFetchStudentsError = "Error fetching students"
	MsgSaveStudentError   = "Error saving student"
	MsgDeleteStudentError = "Error deleting student"
)

const dashboardCachePattern = "dash:*"

type studentRepository interface {
	List(ctx context.Context) ([]models.Student, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id string) error
}

type notifier interface {
	Notify(ctx context.Context, level, source, message string, cause error)
}

// StudentRequest is the create/edit form payload. Phone numbers are optional
// but must be valid when present.
type StudentRequest struct {
	Name             string `json:"name" validate:"required"`
	Phone            string `json:"phone" validate:"omitempty,eg_phone"`
	FatherPhone      string `json:"fatherPhone" validate:"omitempty,eg_phone"`
	MotherPhone      string `json:"motherPhone" validate:"omitempty,eg_phone"`
	DateOfBirth      string `json:"dateOfBirth" validate:"omitempty,civil_date"`
	YearOfStudy      string `json:"yearOfStudy" validate:"omitempty,year_of_study"`
	ChurchFatherName string `json:"churchFatherName"`
	Address          string `json:"address"`
	Gender           string `json:"gender" validate:"omitempty,oneof=male female"`
	StudentType      string `json:"studentType" validate:"omitempty,oneof=new returning"`
}

func (r StudentRequest) normalise() StudentRequest {
	r.Name = strings.TrimSpace(r.Name)
	r.Phone = strings.TrimSpace(r.Phone)
	r.FatherPhone = strings.TrimSpace(r.FatherPhone)
	r.MotherPhone = strings.TrimSpace(r.MotherPhone)
	r.DateOfBirth = strings.TrimSpace(r.DateOfBirth)
	r.YearOfStudy = strings.TrimSpace(r.YearOfStudy)
	r.ChurchFatherName = strings.TrimSpace(r.ChurchFatherName)
	r.Address = strings.TrimSpace(r.Address)
	r.Gender = strings.ToLower(strings.TrimSpace(r.Gender))
	r.StudentType = strings.ToLower(strings.TrimSpace(r.StudentType))
	return r
}

func (r StudentRequest) model(id string) *models.Student {
	return &models.Student{
		ID:               id,
		Name:             r.Name,
		Phone:            r.Phone,
		FatherPhone:      r.FatherPhone,
		MotherPhone:      r.MotherPhone,
		DateOfBirth:      r.DateOfBirth,
		YearOfStudy:      r.YearOfStudy,
		ChurchFatherName: r.ChurchFatherName,
		Address:          r.Address,
		Gender:           r.Gender,
		StudentType:      r.StudentType,
	}
}

// StudentListResult is a filtered roster page. Stale is set when the store
// could not be reached and the previous snapshot was served; Warning then
// carries the store error.
type StudentListResult struct {
	Rows       []dto.StudentRow
	Pagination *models.Pagination
	Stale      bool
	Warning    *appErrors.Error
}

// StudentService handles roster use-cases.
type StudentService struct {
	repo      studentRepository
	snapshot  *RosterSnapshot
	ttl       time.Duration
	cache     *CacheService
	notifier  notifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, snapshot *RosterSnapshot, ttl time.Duration, cache *CacheService, notifier notifier, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if snapshot == nil {
		snapshot = NewRosterSnapshot()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, snapshot: snapshot, ttl: ttl, cache: cache, notifier: notifier, validator: validate, logger: logger}
}

// Roster returns the current roster, refreshing the snapshot when it has
// expired. When the refresh fails the previous snapshot is returned with
// stale set; without any snapshot the StoreError is returned.
func (s *StudentService) Roster(ctx context.Context) (students []models.Student, stale bool, err error) {
	if !s.snapshot.Fresh(s.ttl) {
		if refreshErr := s.refresh(ctx); refreshErr != nil {
			previous, _, ok := s.snapshot.Current()
			if !ok {
				return nil, false, refreshErr
			}
			return previous, true, refreshErr
		}
	}
	current, _, ok := s.snapshot.Current()
	if !ok {
		if err := ctx.Err(); err != nil {
			return nil, false, appErrors.Store(err, MsgFetchStudentsError)
		}
		return []models.Student{}, false, nil
	}
	return current, false, nil
}

// List filters the roster. Page sizes of zero return everything.
func (s *StudentService) List(ctx context.Context, query models.StudentQuery) (*StudentListResult, error) {
	students, stale, err := s.Roster(ctx)
	if err != nil && !stale {
		return nil, err
	}
	filtered := FilterStudents(students, query)

	result := &StudentListResult{Stale: stale}
	if stale {
		result.Warning = appErrors.FromError(err)
	}
	total := len(filtered)
	if query.PageSize > 0 {
		page := query.Page
		if page < 1 {
			page = 1
		}
		start := (page - 1) * query.PageSize
		if start > total {
			start = total
		}
		end := start + query.PageSize
		if end > total {
			end = total
		}
		filtered = filtered[start:end]
		result.Pagination = &models.Pagination{Page: page, PageSize: query.PageSize, TotalCount: total}
	}
	result.Rows = dto.NewStudentRows(filtered)
	return result, nil
}

// Get loads a single student straight from the store.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		s.logger.Error("load student failed", zap.String("student_id", id), zap.Error(err))
		return nil, appErrors.Store(err, MsgFetchStudentsError)
	}
	return student, nil
}

// Create validates and stores a new student.
func (s *StudentService) Create(ctx context.Context, req StudentRequest) (*models.Student, error) {
	req = req.normalise()
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, validationMessage(err))
	}
	student := req.model("")
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, s.storeFailure(ctx, "create", "", MsgSaveStudentError, err)
	}
	s.afterMutation(ctx, MsgStudentAdded)
	return student, nil
}

// Update validates and overwrites an existing student.
func (s *StudentService) Update(ctx context.Context, id string, req StudentRequest) (*models.Student, error) {
	req = req.normalise()
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, validationMessage(err))
	}
	student := req.model(id)
	if err := s.repo.Update(ctx, student); err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, s.storeFailure(ctx, "update", id, MsgSaveStudentError, err)
	}
	s.afterMutation(ctx, MsgStudentUpdated)
	return student, nil
}

// Delete removes a student. Attendance records are kept.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.storeFailure(ctx, "delete", id, MsgDeleteStudentError, err)
	}
	s.afterMutation(ctx, MsgStudentDeleted)
	return nil
}

func (s *StudentService) refresh(ctx context.Context) error {
	gen := s.snapshot.Begin()
	students, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("fetch students failed", zap.Error(err))
		s.notify(ctx, models.NotificationError, MsgFetchStudentsError, err)
		return appErrors.Store(err, MsgFetchStudentsError)
	}
	if !s.snapshot.Apply(ctx, gen, students) {
		s.logger.Debug("discarding superseded roster fetch", zap.Uint64("generation", gen))
	}
	return nil
}

// afterMutation re-reads the roster so the next list reflects the write.
// Refresh failures keep the previous snapshot.
func (s *StudentService) afterMutation(ctx context.Context, message string) {
	_ = s.refresh(ctx)
	_ = s.cache.Invalidate(ctx, dashboardCachePattern)
	s.notify(ctx, models.NotificationSuccess, message, nil)
}

func (s *StudentService) storeFailure(ctx context.Context, op, id, message string, err error) error {
	s.logger.Error("student "+op+" failed", zap.String("student_id", id), zap.Error(err))
	s.notify(ctx, models.NotificationError, message, err)
	return appErrors.Store(err, message)
}

func (s *StudentService) notify(ctx context.Context, level, message string, cause error) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, level, "students", message, cause)
}
