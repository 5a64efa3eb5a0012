package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/roster-api/internal/dto"
	"github.com/noah-isme/roster-api/internal/models"
	"github.com/noah-isme/roster-api/pkg/dateutil"
	appErrors "github.com/noah-isme/roster-api/pkg/errors"
)

type rosterProvider interface {
	Roster(ctx context.Context) ([]models.Student, bool, error)
}

type attendanceLister interface {
	List(ctx context.Context) ([]models.AttendanceRecord, error)
}

// DashboardServiceConfig tunes dashboard widgets.
type DashboardServiceConfig struct {
	CacheTTL     time.Duration
	AbsenteeCap  int
	TopAttendees int
	BirthdayDays int
	AgePolicy    dateutil.AgePolicy
	Location     *time.Location
}

// DashboardService composes the absentee, leaderboard and birthday widgets.
type DashboardService struct {
	roster     rosterProvider
	attendance attendanceLister
	cache      *CacheService
	logger     *zap.Logger
	now        func() time.Time
	cfg        DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Roster     rosterProvider
	Attendance attendanceLister
	Cache      *CacheService
	Logger     *zap.Logger
	Config     DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with defaults applied.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.AbsenteeCap <= 0 {
		cfg.AbsenteeCap = DefaultAbsenteeCap
	}
	if cfg.TopAttendees <= 0 {
		cfg.TopAttendees = DefaultTopAttendees
	}
	if cfg.BirthdayDays < 0 {
		cfg.BirthdayDays = DefaultBirthdayDays
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		roster:     params.Roster,
		attendance: params.Attendance,
		cache:      params.Cache,
		logger:     logger,
		now:        time.Now,
		cfg:        cfg,
	}
}

// Summary returns all three widgets.
func (s *DashboardService) Summary(ctx context.Context) (*dto.DashboardSummary, bool, error) {
	today := s.today()
	key := fmt.Sprintf("dash:summary:%s", dateutil.CalendarDay(today, s.cfg.Location))
	return Remember(ctx, s.cache, key, s.cfg.CacheTTL, func(ctx context.Context) (*dto.DashboardSummary, error) {
		students, records, err := s.load(ctx)
		if err != nil {
			return nil, err
		}
		day, _ := LatestAttendanceDay(records, s.cfg.Location)
		return &dto.DashboardSummary{
			Day:          day,
			Absentees:    s.absentees(records, students),
			TopAttendees: TopAttendees(records, students, s.cfg.TopAttendees),
			Birthdays:    UpcomingBirthdays(students, today, s.cfg.BirthdayDays, s.cfg.AgePolicy),
		}, nil
	})
}

// Absentees lists students absent on the latest attendance day.
func (s *DashboardService) Absentees(ctx context.Context) (*dto.AbsenteeList, bool, error) {
	return Remember(ctx, s.cache, "dash:absentees", s.cfg.CacheTTL, func(ctx context.Context) (*dto.AbsenteeList, error) {
		students, records, err := s.load(ctx)
		if err != nil {
			return nil, err
		}
		day, _ := LatestAttendanceDay(records, s.cfg.Location)
		return &dto.AbsenteeList{Day: day, Absentees: s.absentees(records, students)}, nil
	})
}

// TopAttendees ranks the most frequent attendees. limit <= 0 uses the
// configured size.
func (s *DashboardService) TopAttendees(ctx context.Context, limit int) ([]models.AttendanceRank, bool, error) {
	if limit <= 0 {
		limit = s.cfg.TopAttendees
	}
	if limit > 100 {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "limit must not exceed 100")
	}
	key := fmt.Sprintf("dash:top:%d", limit)
	return Remember(ctx, s.cache, key, s.cfg.CacheTTL, func(ctx context.Context) ([]models.AttendanceRank, error) {
		students, records, err := s.load(ctx)
		if err != nil {
			return nil, err
		}
		return TopAttendees(records, students, limit), nil
	})
}

// Birthdays lists birthdays within days of today. Negative days use the
// configured window.
func (s *DashboardService) Birthdays(ctx context.Context, days int) ([]models.UpcomingBirthday, bool, error) {
	if days < 0 {
		days = s.cfg.BirthdayDays
	}
	if days > 366 {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "days must not exceed 366")
	}
	today := s.today()
	key := fmt.Sprintf("dash:birthdays:%d:%s", days, dateutil.CalendarDay(today, s.cfg.Location))
	return Remember(ctx, s.cache, key, s.cfg.CacheTTL, func(ctx context.Context) ([]models.UpcomingBirthday, error) {
		students, _, err := s.roster.Roster(ctx)
		if err != nil && students == nil {
			return nil, err
		}
		return UpcomingBirthdays(students, today, days, s.cfg.AgePolicy), nil
	})
}

func (s *DashboardService) load(ctx context.Context) ([]models.Student, []models.AttendanceRecord, error) {
	students, _, err := s.roster.Roster(ctx)
	if err != nil && students == nil {
		return nil, nil, err
	}
	records, err := s.attendance.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	return students, records, nil
}

func (s *DashboardService) absentees(records []models.AttendanceRecord, students []models.Student) []models.Absentee {
	ids := AbsenteesForLatestDay(records, s.cfg.Location, s.cfg.AbsenteeCap)
	names := studentNames(students)
	out := make([]models.Absentee, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Absentee{StudentID: id, Name: nameOf(names, id)})
	}
	return out
}

func (s *DashboardService) today() time.Time {
	return s.now().In(s.cfg.Location)
}
