package dto

import "time"

// ScanSessionView is the externally visible state of a capture session.
type ScanSessionView struct {
	ID         string     `json:"id"`
	State      string     `json:"state"`
	CameraID   string     `json:"cameraId,omitempty"`
	Fallback   bool       `json:"fallback"`
	Result     string     `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
	Attendance string     `json:"attendanceId,omitempty"`
	StartedAt  time.Time  `json:"startedAt"`
	EndedAt    *time.Time `json:"endedAt,omitempty"`
}

// CameraView describes a registered camera device.
type CameraView struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	InUseBy string `json:"inUseBy,omitempty"`
}
