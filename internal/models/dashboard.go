package models

// AttendanceRank is one row of the top-attendee leaderboard.
type AttendanceRank struct {
	StudentID string `json:"studentId"`
	Name      string `json:"name"`
	Count     int    `json:"count"`
}

// UpcomingBirthday is a student whose birthday falls inside the window.
type UpcomingBirthday struct {
	StudentID string `json:"studentId"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Age       *int   `json:"age"`
	AgeLabel  string `json:"ageLabel"`
	DaysLeft  int    `json:"daysLeft"`
}

// Absentee is a student marked absent on the most recent attendance day.
type Absentee struct {
	StudentID string `json:"studentId"`
	Name      string `json:"name"`
}
