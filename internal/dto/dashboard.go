package dto

import "github.com/noah-isme/roster-api/internal/models"

// DashboardSummary bundles the three dashboard widgets.
type DashboardSummary struct {
	Day          string                    `json:"day,omitempty"`
	Absentees    []models.Absentee         `json:"absentees"`
	TopAttendees []models.AttendanceRank   `json:"topAttendees"`
	Birthdays    []models.UpcomingBirthday `json:"birthdays"`
}

// AbsenteeList is the absentee widget payload.
type AbsenteeList struct {
	Day       string            `json:"day,omitempty"`
	Absentees []models.Absentee `json:"absentees"`
}
