package models

import (
	"time"

	"github.com/spf13/cast"

	"github.com/noah-isme/roster-api/pkg/dateutil"
)

// AttendanceRecord marks a student present or absent for the record's day.
type AttendanceRecord struct {
	ID        string     `json:"id"`
	StudentID string     `json:"studentId"`
	Date      *time.Time `json:"date,omitempty"`
	Present   bool       `json:"present"`
}

// HasDate reports whether the record carries a usable date.
func (r AttendanceRecord) HasDate() bool {
	return r.Date != nil && !r.Date.IsZero()
}

// AttendanceFromDocument maps a stored attendance document onto the canonical
// schema. Unparseable dates leave Date nil.
func AttendanceFromDocument(doc Document, loc *time.Location) AttendanceRecord {
	rec := AttendanceRecord{
		ID:        doc.ID,
		StudentID: str(doc.Field("studentId", "student_id", "studentID")),
		Present:   cast.ToBool(doc.Field("present", "isPresent")),
	}
	if t, ok := dateutil.ParseDate(doc.Field("date", "timestamp"), loc); ok {
		rec.Date = &t
	}
	return rec
}

// Fields renders the record with canonical field names for writing.
func (r AttendanceRecord) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		"studentId": r.StudentID,
		"present":   r.Present,
	}
	if r.HasDate() {
		fields["date"] = r.Date.UTC()
	}
	return fields
}
