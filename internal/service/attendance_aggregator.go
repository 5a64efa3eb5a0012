package service

import (
	"sort"
	"strconv"
	"time"

	"github.com/noah-isme/roster-api/internal/models"
	"github.com/noah-isme/roster-api/pkg/dateutil"
)

// Dashboard defaults.
const (
	DefaultAbsenteeCap  = 10
	DefaultTopAttendees = 8
	DefaultBirthdayDays = 3
)

// LatestAttendanceDay returns the calendar day, in loc, of the most recent
// dated record.
func LatestAttendanceDay(records []models.AttendanceRecord, loc *time.Location) (string, bool) {
	var latest *time.Time
	for i := range records {
		if !records[i].HasDate() {
			continue
		}
		if latest == nil || records[i].Date.After(*latest) {
			latest = records[i].Date
		}
	}
	if latest == nil {
		return "", false
	}
	return dateutil.CalendarDay(*latest, loc), true
}

// AbsenteesForLatestDay lists the distinct ids of students marked absent on
// the most recent attendance day, newest record first, capped at limit.
// Records without a usable date never count.
func AbsenteesForLatestDay(records []models.AttendanceRecord, loc *time.Location, limit int) []string {
	if limit <= 0 {
		limit = DefaultAbsenteeCap
	}
	ids := []string{}
	day, ok := LatestAttendanceDay(records, loc)
	if !ok {
		return ids
	}

	absent := make([]models.AttendanceRecord, 0)
	for _, rec := range records {
		if rec.Present || !rec.HasDate() || rec.StudentID == "" {
			continue
		}
		if dateutil.CalendarDay(*rec.Date, loc) != day {
			continue
		}
		absent = append(absent, rec)
	}
	sort.SliceStable(absent, func(i, j int) bool {
		return absent[i].Date.After(*absent[j].Date)
	})

	seen := make(map[string]struct{}, len(absent))
	for _, rec := range absent {
		if _, dup := seen[rec.StudentID]; dup {
			continue
		}
		seen[rec.StudentID] = struct{}{}
		ids = append(ids, rec.StudentID)
		if len(ids) == limit {
			break
		}
	}
	return ids
}

// TopAttendees ranks students by present records. Ties keep the order in
// which students first appear in records. Unknown ids are labelled "Unknown".
func TopAttendees(records []models.AttendanceRecord, students []models.Student, limit int) []models.AttendanceRank {
	if limit <= 0 {
		limit = DefaultTopAttendees
	}
	counts := make(map[string]int)
	order := make([]string, 0)
	for _, rec := range records {
		if !rec.Present || rec.StudentID == "" {
			continue
		}
		if _, ok := counts[rec.StudentID]; !ok {
			order = append(order, rec.StudentID)
		}
		counts[rec.StudentID]++
	}

	names := studentNames(students)
	ranks := make([]models.AttendanceRank, 0, len(order))
	for _, id := range order {
		ranks = append(ranks, models.AttendanceRank{StudentID: id, Name: nameOf(names, id), Count: counts[id]})
	}
	sort.SliceStable(ranks, func(i, j int) bool {
		return ranks[i].Count > ranks[j].Count
	})
	if len(ranks) > limit {
		ranks = ranks[:limit]
	}
	return ranks
}

// UpcomingBirthdays lists students whose next birthday is within days of
// ref, soonest first. Students without a parseable date of birth are skipped.
func UpcomingBirthdays(students []models.Student, ref time.Time, days int, policy dateutil.AgePolicy) []models.UpcomingBirthday {
	if days < 0 {
		days = DefaultBirthdayDays
	}
	out := make([]models.UpcomingBirthday, 0)
	for _, s := range students {
		left, ok := dateutil.DaysUntilNextAnniversary(s.DateOfBirth, ref)
		if !ok || left > days {
			continue
		}
		entry := models.UpcomingBirthday{
			StudentID: s.ID,
			Name:      s.DisplayName(),
			Phone:     s.Phone,
			AgeLabel:  models.UnknownName,
			DaysLeft:  left,
		}
		if age, ok := dateutil.CalculateAge(s.DateOfBirth, ref, policy); ok {
			entry.Age = &age
			entry.AgeLabel = strconv.Itoa(age)
		}
		out = append(out, entry)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DaysLeft < out[j].DaysLeft
	})
	return out
}

func studentNames(students []models.Student) map[string]string {
	names := make(map[string]string, len(students))
	for _, s := range students {
		names[s.ID] = s.DisplayName()
	}
	return names
}

func nameOf(names map[string]string, id string) string {
	if name, ok := names[id]; ok {
		return name
	}
	return models.UnknownName
}
