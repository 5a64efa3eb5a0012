package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/roster-api/internal/models"
	appErrors "github.com/noah-isme/roster-api/pkg/errors"
)

// User-facing attendance notices.
const (
	MsgAttendanceRecorded    = "Attendance recorded"
	MsgFetchAttendanceError  = "Error fetching attendance"
	MsgRecordAttendanceError = "Error recording attendance"
)

type attendanceRepository interface {
	List(ctx context.Context) ([]models.AttendanceRecord, error)
	Create(ctx context.Context, record *models.AttendanceRecord) error
}

// RecordAttendanceRequest is the manual attendance payload. Present defaults
// to true and Date to now.
type RecordAttendanceRequest struct {
	StudentID string     `json:"studentId" validate:"required"`
	Present   *bool      `json:"present"`
	Date      *time.Time `json:"date"`
}

// AttendanceService appends and lists attendance records.
type AttendanceService struct {
	repo      attendanceRepository
	cache     *CacheService
	notifier  notifier
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, cache *CacheService, notifier notifier, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, cache: cache, notifier: notifier, validator: validate, logger: logger, now: time.Now}
}

// List returns every stored record.
func (s *AttendanceService) List(ctx context.Context) ([]models.AttendanceRecord, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("fetch attendance failed", zap.Error(err))
		return nil, appErrors.Store(err, MsgFetchAttendanceError)
	}
	return records, nil
}

// Record appends an attendance record.
func (s *AttendanceService) Record(ctx context.Context, req RecordAttendanceRequest) (*models.AttendanceRecord, error) {
	req.StudentID = strings.TrimSpace(req.StudentID)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "studentId is required")
	}
	present := true
	if req.Present != nil {
		present = *req.Present
	}
	at := s.now().UTC()
	if req.Date != nil && !req.Date.IsZero() {
		at = req.Date.UTC()
	}
	record := &models.AttendanceRecord{StudentID: req.StudentID, Date: &at, Present: present}
	if err := s.repo.Create(ctx, record); err != nil {
		s.logger.Error("record attendance failed", zap.String("student_id", req.StudentID), zap.Error(err))
		if s.notifier != nil {
			s.notifier.Notify(ctx, models.NotificationError, "attendance", MsgRecordAttendanceError, err)
		}
		return nil, appErrors.Store(err, MsgRecordAttendanceError)
	}
	_ = s.cache.Invalidate(ctx, dashboardCachePattern)
	if s.notifier != nil {
		s.notifier.Notify(ctx, models.NotificationSuccess, "attendance", MsgAttendanceRecorded, nil)
	}
	return record, nil
}

// MarkPresent records studentID as present now. It backs the QR capture flow.
func (s *AttendanceService) MarkPresent(ctx context.Context, studentID string) (*models.AttendanceRecord, error) {
	present := true
	return s.Record(ctx, RecordAttendanceRequest{StudentID: studentID, Present: &present})
}
