package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/roster-api/internal/dto"
	appErrors "github.com/noah-isme/roster-api/pkg/errors"
	"github.com/noah-isme/roster-api/pkg/response"
)

type scanService interface {
	MaxFrameBytes() int64
	RegisterCamera(label string) dto.CameraView
	Cameras() []dto.CameraView
	RemoveCamera(id string) error
	PushFrame(cameraID string, frame []byte) error
	StartSession(ctx context.Context) (*dto.ScanSessionView, error)
	Session(id string) (*dto.ScanSessionView, error)
	SubmitFrame(id string, frame []byte) error
	CancelSession(id string) (*dto.ScanSessionView, error)
}

// RegisterCameraRequest names a frame-pushing camera.
type RegisterCameraRequest struct {
	Label string `json:"label"`
}

// ScanHandler exposes cameras and QR capture sessions.
type ScanHandler struct {
	service scanService
}

// NewScanHandler constructs the handler.
func NewScanHandler(service scanService) *ScanHandler {
	return &ScanHandler{service: service}
}

// ListCameras godoc
// @Summary List registered cameras
// @Tags Scanner
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /cameras [get]
func (h *ScanHandler) ListCameras(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Cameras(), nil)
}

// RegisterCamera godoc
// @Summary Register a camera
// @Description Labels containing back, rear or environment are preferred by new sessions.
// @Tags Scanner
// @Accept json
// @Produce json
// @Param payload body RegisterCameraRequest false "Camera label"
// @Success 201 {object} response.Envelope
// @Router /cameras [post]
func (h *ScanHandler) RegisterCamera(c *gin.Context) {
	var req RegisterCameraRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	response.JSON(c, http.StatusCreated, h.service.RegisterCamera(req.Label), nil)
}

// RemoveCamera godoc
// @Summary Unregister a camera
// @Tags Scanner
// @Param id path string true "Camera ID"
// @Success 204
// @Router /cameras/{id} [delete]
func (h *ScanHandler) RemoveCamera(c *gin.Context) {
	if err := h.service.RemoveCamera(c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// PushFrame godoc
// @Summary Push a camera frame
// @Description The body is a PNG, JPEG or WebP image, raw or as multipart field "frame".
// @Tags Scanner
// @Accept image/png
// @Accept multipart/form-data
// @Param id path string true "Camera ID"
// @Success 202
// @Router /cameras/{id}/frames [post]
func (h *ScanHandler) PushFrame(c *gin.Context) {
	frame, err := h.readFrame(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.PushFrame(c.Param("id"), frame); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// StartSession godoc
// @Summary Start a QR capture session
// @Description Without cameras the session accepts uploaded images instead.
// @Tags Scanner
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /scan-sessions [post]
func (h *ScanHandler) StartSession(c *gin.Context) {
	view, err := h.service.StartSession(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, view, nil)
}

// GetSession godoc
// @Summary Get a capture session
// @Tags Scanner
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /scan-sessions/{id} [get]
func (h *ScanHandler) GetSession(c *gin.Context) {
	view, err := h.service.Session(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// SubmitFrame godoc
// @Summary Upload an image to a session running without a camera
// @Tags Scanner
// @Accept image/png
// @Accept multipart/form-data
// @Param id path string true "Session ID"
// @Success 202
// @Router /scan-sessions/{id}/frames [post]
func (h *ScanHandler) SubmitFrame(c *gin.Context) {
	frame, err := h.readFrame(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.SubmitFrame(c.Param("id"), frame); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// CancelSession godoc
// @Summary Cancel a capture session
// @Tags Scanner
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /scan-sessions/{id} [delete]
func (h *ScanHandler) CancelSession(c *gin.Context) {
	view, err := h.service.CancelSession(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

func (h *ScanHandler) readFrame(c *gin.Context) ([]byte, error) {
	limit := h.service.MaxFrameBytes()
	body := io.Reader(c.Request.Body)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile("frame")
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "frame is required")
		}
		file, err := header.Open()
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "frame is unreadable")
		}
		defer file.Close() //nolint:errcheck
		body = file
	}
	// one byte past the limit lets the service reject oversize frames
	frame, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "frame is unreadable")
	}
	return frame, nil
}
