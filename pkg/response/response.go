package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/roster-api/internal/models"
	appErrors "github.com/noah-isme/roster-api/pkg/errors"
)

// Notice levels rendered by clients as toasts.
const (
	NoticeSuccess = "success"
	NoticeError   = "error"
)

const noticeKey = "notification"

// Envelope represents the common response contract.
type Envelope struct {
	Data       interface{}            `json:"data,omitempty"`
	Error      *appErrors.Error       `json:"error,omitempty"`
	Pagination *models.Pagination     `json:"pagination,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// Notice is the user-facing message attached to mutating responses.
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// JSON sends a success response with optional pagination metadata.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination, meta ...map[string]interface{}) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	envelope := Envelope{Data: data, Pagination: pagination}
	if len(meta) > 0 && meta[0] != nil {
		envelope.Meta = meta[0]
	}
	c.JSON(status, envelope)
}

// Created responds with HTTP 201 Created and a success notice.
func Created(c *gin.Context, data interface{}, message string) {
	JSON(c, http.StatusCreated, data, nil, noticeMeta(NoticeSuccess, message))
}

// Success responds with HTTP 200 and a success notice.
func Success(c *gin.Context, data interface{}, message string) {
	JSON(c, http.StatusOK, data, nil, noticeMeta(NoticeSuccess, message))
}

// Error sends an error response converting the error to the common structure.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(appErr.Status, Envelope{Error: appErr, Meta: noticeMeta(NoticeError, appErr.Message)})
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func noticeMeta(level, message string) map[string]interface{} {
	if message == "" {
		return nil
	}
	return map[string]interface{}{noticeKey: Notice{Level: level, Message: message}}
}
