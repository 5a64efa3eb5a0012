package handler

import (
	"github.com/gin-gonic/gin"
)

// Routes groups the handlers mounted under the API prefix.
type Routes struct {
	Students   *StudentHandler
	Attendance *AttendanceHandler
	Dashboard  *DashboardHandler
	Scan       *ScanHandler
	Metrics    *MetricsHandler

	// Auth guards every API route when set.
	Auth gin.HandlerFunc
	// FrameLimit throttles frame uploads when set.
	FrameLimit gin.HandlerFunc
}

// Register mounts the probes on r and the API on r.Group(prefix).
func (rt Routes) Register(r *gin.Engine, prefix string) {
	if rt.Metrics != nil {
		r.GET("/health", rt.Metrics.Health)
		r.GET("/ready", rt.Metrics.Ready)
		r.GET("/metrics", rt.Metrics.Prometheus)
	}

	api := r.Group(prefix)
	if rt.Auth != nil {
		api.Use(rt.Auth)
	}
	frames := []gin.HandlerFunc{}
	if rt.FrameLimit != nil {
		frames = append(frames, rt.FrameLimit)
	}

	if h := rt.Students; h != nil {
		students := api.Group("/students")
		students.GET("", h.List)
		students.GET("/export", h.Export)
		students.GET("/:id", h.Get)
		students.GET("/:id/qr", h.QRCode)
		students.POST("", h.Create)
		students.PUT("/:id", h.Update)
		students.DELETE("/:id", h.Delete)
	}

	if h := rt.Attendance; h != nil {
		api.GET("/attendance", h.List)
		api.POST("/attendance", h.Record)
	}

	if h := rt.Dashboard; h != nil {
		dashboard := api.Group("/dashboard")
		dashboard.GET("", h.Summary)
		dashboard.GET("/absentees", h.Absentees)
		dashboard.GET("/top-attendees", h.TopAttendees)
		dashboard.GET("/top-attendees/export", h.ExportTopAttendees)
		dashboard.GET("/birthdays", h.Birthdays)
	}

	if h := rt.Scan; h != nil {
		cameras := api.Group("/cameras")
		cameras.GET("", h.ListCameras)
		cameras.POST("", h.RegisterCamera)
		cameras.DELETE("/:id", h.RemoveCamera)
		cameras.POST("/:id/frames", append(frames, h.PushFrame)...)

		sessions := api.Group("/scan-sessions")
		sessions.POST("", h.StartSession)
		sessions.GET("/:id", h.GetSession)
		sessions.POST("/:id/frames", append(frames, h.SubmitFrame)...)
		sessions.DELETE("/:id", h.CancelSession)
	}
}
