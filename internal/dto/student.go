package dto

import "github.com/noah-isme/roster-api/internal/models"

// StudentRow is a roster entry as rendered in list views.
type StudentRow struct {
	models.Student
	DetailPath string `json:"detailPath"`
}

// NewStudentRows decorates students with their detail route.
func NewStudentRows(students []models.Student) []StudentRow {
	rows := make([]StudentRow, 0, len(students))
	for _, s := range students {
		rows = append(rows, StudentRow{Student: s, DetailPath: s.DetailPath()})
	}
	return rows
}
