// Package dateutil normalises the date shapes found in stored documents and
// implements the calendar arithmetic used by the dashboard: ages, birthday
// countdowns and calendar-day grouping.
package dateutil

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// AgePolicy selects how CalculateAge counts years.
type AgePolicy int

const (
	// AgeTurningThisYear counts the year of life the person is in, which is one
	// more than the completed years. It is the roster's historical convention.
	AgeTurningThisYear AgePolicy = iota
	// AgeCompletedYears counts whole years since birth.
	AgeCompletedYears
)

// ParsePolicy maps a config value to an AgePolicy. Unknown values keep the
// historical convention.
func ParsePolicy(raw string) AgePolicy {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "completed", "completed_years":
		return AgeCompletedYears
	default:
		return AgeTurningThisYear
	}
}

// String implements fmt.Stringer.
func (p AgePolicy) String() string {
	if p == AgeCompletedYears {
		return "completed_years"
	}
	return "turning_this_year"
}

// DayLayout is the calendar-day key format.
const DayLayout = "2006-01-02"

type dateConverter interface {
	ToDate() time.Time
}

type epochSeconds interface {
	GetSeconds() int64
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	DayLayout,
}

// ParseDate converts a stored date value into a time in loc. Supported shapes
// are values with a ToDate method, values exposing epoch seconds (GetSeconds or
// a map with "seconds"/"_seconds"), ISO strings and time values. Anything else
// goes through generic coercion. The boolean is false when nothing usable was
// found.
func ParseDate(value interface{}, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	var (
		t  time.Time
		ok bool
	)
	switch v := value.(type) {
	case nil:
		return time.Time{}, false
	case dateConverter:
		t, ok = v.ToDate(), true
	case epochSeconds:
		t, ok = time.Unix(v.GetSeconds(), 0), true
	case map[string]interface{}:
		t, ok = fromSecondsMap(v)
	case string:
		t, ok = parseString(v, loc)
	case time.Time:
		t, ok = v, true
	case *time.Time:
		if v != nil {
			t, ok = *v, true
		}
	default:
		coerced, err := cast.ToTimeInDefaultLocationE(value, loc)
		if err == nil {
			t, ok = coerced, true
		}
	}
	if !ok || t.IsZero() {
		return time.Time{}, false
	}
	return t.In(loc), true
}

func fromSecondsMap(m map[string]interface{}) (time.Time, bool) {
	for _, key := range []string{"seconds", "_seconds"} {
		raw, exists := m[key]
		if !exists {
			continue
		}
		if n, isNumber := raw.(json.Number); isNumber {
			raw = n.String()
		}
		secs, err := cast.ToInt64E(raw)
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(secs, 0), true
	}
	return time.Time{}, false
}

func parseString(raw string, loc *time.Location) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	t, err := cast.ToTimeInDefaultLocationE(s, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// CalculateAge returns the age at ref under policy. The boolean is false when
// dob cannot be parsed, which callers render as "Unknown".
func CalculateAge(dob interface{}, ref time.Time, policy AgePolicy) (int, bool) {
	birth, ok := ParseDate(dob, ref.Location())
	if !ok {
		return 0, false
	}
	age := ref.Year() - birth.Year()
	if policy == AgeTurningThisYear {
		age++
	}
	if ref.Month() < birth.Month() || (ref.Month() == birth.Month() && ref.Day() < birth.Day()) {
		age--
	}
	return age, true
}

// DaysUntilNextAnniversary counts whole days from ref's calendar day to the
// next occurrence of dob's month/day, 0 when it is today. The boolean is false
// (infinitely far away) when dob cannot be parsed.
//
// Feb 29 birthdays roll over to Mar 1 in common years.
func DaysUntilNextAnniversary(dob interface{}, ref time.Time) (int, bool) {
	birth, ok := ParseDate(dob, ref.Location())
	if !ok {
		return 0, false
	}
	// Work on civil dates in UTC so DST shifts never produce 23h or 25h days.
	today := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC)
	next := time.Date(today.Year(), birth.Month(), birth.Day(), 0, 0, 0, 0, time.UTC)
	if next.Before(today) {
		next = next.AddDate(1, 0, 0)
	}
	return int(math.Ceil(next.Sub(today).Hours() / 24)), true
}

// CalendarDay truncates t to its year/month/day in loc.
func CalendarDay(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DayLayout)
}
