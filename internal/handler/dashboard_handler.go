package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/roster-api/internal/dto"
	"github.com/noah-isme/roster-api/internal/middleware"
	"github.com/noah-isme/roster-api/internal/models"
	"github.com/noah-isme/roster-api/internal/service"
	appErrors "github.com/noah-isme/roster-api/pkg/errors"
	"github.com/noah-isme/roster-api/pkg/response"
)

type dashboardService interface {
	Summary(ctx context.Context) (*dto.DashboardSummary, bool, error)
	Absentees(ctx context.Context) (*dto.AbsenteeList, bool, error)
	TopAttendees(ctx context.Context, limit int) ([]models.AttendanceRank, bool, error)
	Birthdays(ctx context.Context, days int) ([]models.UpcomingBirthday, bool, error)
}

type rankingExporter interface {
	TopAttendees(ctx context.Context, limit int, format models.ExportFormat) (*models.ExportFile, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
	exports rankingExporter
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService, exports rankingExporter) *DashboardHandler {
	return &DashboardHandler{service: service, exports: exports}
}

// Summary godoc
// @Summary Dashboard widgets
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	summary, hit, err := h.service.Summary(c.Request.Context())
	h.respond(c, summary, hit, err)
}

// Absentees godoc
// @Summary Students absent on the latest attendance day
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/absentees [get]
func (h *DashboardHandler) Absentees(c *gin.Context) {
	list, hit, err := h.service.Absentees(c.Request.Context())
	h.respond(c, list, hit, err)
}

// TopAttendees godoc
// @Summary Attendance leaderboard
// @Tags Dashboard
// @Produce json
// @Param limit query int false "Number of students"
// @Success 200 {object} response.Envelope
// @Router /dashboard/top-attendees [get]
func (h *DashboardHandler) TopAttendees(c *gin.Context) {
	limit, ok := intQuery(c, "limit", 0)
	if !ok {
		return
	}
	ranks, hit, err := h.service.TopAttendees(c.Request.Context(), limit)
	h.respond(c, ranks, hit, err)
}

// ExportTopAttendees godoc
// @Summary Export the attendance leaderboard
// @Tags Dashboard
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Param limit query int false "Number of students"
// @Success 200 {file} file
// @Router /dashboard/top-attendees/export [get]
func (h *DashboardHandler) ExportTopAttendees(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "export service not configured"))
		return
	}
	format, err := service.ParseExportFormat(c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	limit, ok := intQuery(c, "limit", 0)
	if !ok {
		return
	}
	file, err := h.exports.TopAttendees(c.Request.Context(), limit, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	sendFile(c, file)
}

// Birthdays godoc
// @Summary Upcoming birthdays
// @Tags Dashboard
// @Produce json
// @Param days query int false "Window in days, defaults to 3"
// @Success 200 {object} response.Envelope
// @Router /dashboard/birthdays [get]
func (h *DashboardHandler) Birthdays(c *gin.Context) {
	days, ok := intQuery(c, "days", -1)
	if !ok {
		return
	}
	birthdays, hit, err := h.service.Birthdays(c.Request.Context(), days)
	h.respond(c, birthdays, hit, err)
}

func (h *DashboardHandler) respond(c *gin.Context, data interface{}, hit bool, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, data, nil, middleware.ExtractMeta(c))
}

func intQuery(c *gin.Context, key string, fallback int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, key+" must be a non-negative number"))
		return 0, false
	}
	return v, true
}
