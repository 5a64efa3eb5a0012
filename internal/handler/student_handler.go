package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/roster-api/internal/middleware"
	"github.com/noah-isme/roster-api/internal/models"
	"github.com/noah-isme/roster-api/internal/service"
	appErrors "github.com/noah-isme/roster-api/pkg/errors"
	"github.com/noah-isme/roster-api/pkg/qr"
	"github.com/noah-isme/roster-api/pkg/response"
)

type studentService interface {
	List(ctx context.Context, query models.StudentQuery) (*service.StudentListResult, error)
	Get(ctx context.Context, id string) (*models.Student, error)
	Create(ctx context.Context, req service.StudentRequest) (*models.Student, error)
	Update(ctx context.Context, id string, req service.StudentRequest) (*models.Student, error)
	Delete(ctx context.Context, id string) error
}

type studentExporter interface {
	Students(ctx context.Context, query models.StudentQuery, format models.ExportFormat) (*models.ExportFile, error)
}

// StudentHandler exposes student endpoints.
type StudentHandler struct {
	students studentService
	exports  studentExporter
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(students studentService, exports studentExporter) *StudentHandler {
	return &StudentHandler{students: students, exports: exports}
}

// List godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Param search query string false "Search name, phones, year of study or church father"
// @Param gender query string false "male, female or all"
// @Param type query string false "new, returning or all"
// @Param page query int false "Page"
// @Param page_size query int false "Page size, omitted returns every match"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	query, err := studentQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.students.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Stale {
		middleware.SetStale(c, result.Warning)
	}
	response.JSON(c, http.StatusOK, result.Rows, result.Pagination, middleware.ExtractMeta(c))
}

// Export godoc
// @Summary Export the filtered roster
// @Tags Students
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Param search query string false "Search term"
// @Param gender query string false "Gender filter"
// @Param type query string false "Student type filter"
// @Success 200 {file} file
// @Router /students/export [get]
func (h *StudentHandler) Export(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "export service not configured"))
		return
	}
	format, err := service.ParseExportFormat(c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	query, err := studentQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.exports.Students(c.Request.Context(), query, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	sendFile(c, file)
}

// Get godoc
// @Summary Get student detail
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	student, err := h.students.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// QRCode godoc
// @Summary Render the student's attendance QR code
// @Tags Students
// @Produce png
// @Param id path string true "Student ID"
// @Param size query int false "Image size in pixels"
// @Success 200 {file} file
// @Router /students/{id}/qr [get]
func (h *StudentHandler) QRCode(c *gin.Context) {
	size := qr.DefaultSize
	if raw := c.Query("size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "size must be a number"))
			return
		}
		size = parsed
	}
	student, err := h.students.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	png, err := qr.Encode(student.ID, size)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render qr code"))
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

// Create godoc
// @Summary Create student
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body service.StudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Router /students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	var req service.StudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	student, err := h.students.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student, service.MsgStudentAdded)
}

// Update godoc
// @Summary Update student
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.StudentRequest true "Student payload"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [put]
func (h *StudentHandler) Update(c *gin.Context) {
	var req service.StudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	student, err := h.students.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, student, service.MsgStudentUpdated)
}

// Delete godoc
// @Summary Delete student
// @Description Attendance records of the student are kept.
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [delete]
func (h *StudentHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.students.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"id": id}, service.MsgStudentDeleted)
}

func studentQuery(c *gin.Context) (models.StudentQuery, error) {
	query := models.StudentQuery{
		Search:      c.Query("search"),
		Gender:      strings.TrimSpace(c.Query("gender")),
		StudentType: strings.TrimSpace(c.Query("type")),
	}
	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return query, appErrors.Clone(appErrors.ErrValidation, "page must be a positive number")
		}
		query.Page = page
	}
	if raw := c.Query("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 || size > 500 {
			return query, appErrors.Clone(appErrors.ErrValidation, "page_size must be between 1 and 500")
		}
		query.PageSize = size
	}
	return query, nil
}

func sendFile(c *gin.Context, file *models.ExportFile) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
