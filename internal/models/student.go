package models

import (
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/noah-isme/roster-api/pkg/dateutil"
)

// Gender values accepted on the student form.
const (
	GenderMale   = "male"
	GenderFemale = "female"
)

// Student types accepted on the student form.
const (
	StudentTypeNew       = "new"
	StudentTypeReturning = "returning"
)

// UnknownName is rendered for missing or dangling student references.
const UnknownName = "Unknown"

// YearsOfStudy lists the grade labels offered by the enrolment form.
var YearsOfStudy = []string{
	"الصف الأول الابتدائي",
	"الصف الثاني الابتدائي",
	"الصف الثالث الابتدائي",
	"الصف الرابع الابتدائي",
	"الصف الخامس الابتدائي",
	"الصف السادس الابتدائي",
	"الصف الأول الإعدادي",
	"الصف الثاني الإعدادي",
	"الصف الثالث الإعدادي",
	"الصف الأول الثانوي",
	"الصف الثاني الثانوي",
	"الصف الثالث الثانوي",
	"المرحلة الجامعية",
	"خريج",
}

// Student is the canonical roster entry. Legacy field aliases are resolved
// once by StudentFromDocument.
type Student struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Phone            string `json:"phone"`
	FatherPhone      string `json:"fatherPhone"`
	MotherPhone      string `json:"motherPhone"`
	DateOfBirth      string `json:"dateOfBirth"`
	YearOfStudy      string `json:"yearOfStudy"`
	ChurchFatherName string `json:"churchFatherName"`
	Address          string `json:"address"`
	Gender           string `json:"gender"`
	StudentType      string `json:"studentType"`
}

// StudentQuery holds the roster search box and drop-down filters.
type StudentQuery struct {
	Search      string
	Gender      string
	StudentType string
	Page        int
	PageSize    int
}

// FilterAll is the drop-down sentinel meaning "no filter".
const FilterAll = "all"

// StudentFromDocument maps a stored document onto the canonical schema.
func StudentFromDocument(doc Document, loc *time.Location) Student {
	s := Student{
		ID:               doc.ID,
		Name:             str(doc.Field("name", "fullName", "full_name")),
		Phone:            str(doc.Field("phone", "mobile")),
		FatherPhone:      str(doc.Field("fatherPhone", "father_phone")),
		MotherPhone:      str(doc.Field("motherPhone", "mother_phone")),
		YearOfStudy:      str(doc.Field("yearOfStudy", "year_of_study")),
		ChurchFatherName: str(doc.Field("churchFatherName", "church_father_name")),
		Address:          str(doc.Field("address")),
		Gender:           str(doc.Field("gender")),
		StudentType:      str(doc.Field("studentType", "type", "student_type")),
	}
	dob := doc.Field("dateOfBirth", "dob", "DOB", "date_of_birth")
	if t, ok := dateutil.ParseDate(dob, loc); ok {
		s.DateOfBirth = t.Format(dateutil.DayLayout)
	} else {
		s.DateOfBirth = str(dob)
	}
	return s
}

// Fields renders the student with canonical field names for writing.
func (s Student) Fields() map[string]interface{} {
	return map[string]interface{}{
		"name":             s.Name,
		"phone":            s.Phone,
		"fatherPhone":      s.FatherPhone,
		"motherPhone":      s.MotherPhone,
		"dateOfBirth":      s.DateOfBirth,
		"yearOfStudy":      s.YearOfStudy,
		"churchFatherName": s.ChurchFatherName,
		"address":          s.Address,
		"gender":           s.Gender,
		"studentType":      s.StudentType,
	}
}

// DetailPath is the front-end route of the student's detail view.
func (s Student) DetailPath() string {
	return "/students/" + s.ID
}

// DisplayName falls back to UnknownName for blank names.
func (s Student) DisplayName() string {
	if strings.TrimSpace(s.Name) == "" {
		return UnknownName
	}
	return s.Name
}

func str(v interface{}) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(cast.ToString(v))
}
