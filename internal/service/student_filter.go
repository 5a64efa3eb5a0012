package service

import (
	"strings"

	"github.com/noah-isme/roster-api/internal/models"
)

// FilterStudents applies the roster search box and drop-down filters. It is
// pure and keeps the input order. The search term is trimmed and matched
// case-insensitively as a substring of name, phone numbers, year of study and
// church father name. Gender and type filters compare case-insensitively and
// are skipped when empty or "all". All active criteria must match.
func FilterStudents(students []models.Student, query models.StudentQuery) []models.Student {
	term := strings.ToLower(strings.TrimSpace(query.Search))
	gender := normaliseFilter(query.Gender)
	studentType := normaliseFilter(query.StudentType)

	out := make([]models.Student, 0, len(students))
	for _, s := range students {
		if term != "" && !matchesSearch(s, term) {
			continue
		}
		if gender != "" && strings.ToLower(strings.TrimSpace(s.Gender)) != gender {
			continue
		}
		if studentType != "" && strings.ToLower(strings.TrimSpace(s.StudentType)) != studentType {
			continue
		}
		out = append(out, s)
	}
	return out
}

func matchesSearch(s models.Student, term string) bool {
	for _, field := range []string{s.Name, s.Phone, s.FatherPhone, s.MotherPhone, s.YearOfStudy, s.ChurchFatherName} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

func normaliseFilter(raw string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == models.FilterAll {
		return ""
	}
	return v
}
