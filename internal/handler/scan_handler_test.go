package handler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/roster-api/internal/dto"
	"github.com/noah-isme/roster-api/internal/middleware"
	"github.com/noah-isme/roster-api/internal/models"
	"github.com/noah-isme/roster-api/internal/scanner"
	"github.com/noah-isme/roster-api/internal/service"
	"github.com/noah-isme/roster-api/pkg/qr"
)

type fakeMarker struct {
	marked chan string
}

func (f *fakeMarker) MarkPresent(_ context.Context, studentID string) (*models.AttendanceRecord, error) {
	f.marked <- studentID
	return &models.AttendanceRecord{ID: "att-1", StudentID: studentID, Present: true}, nil
}

func scanRouter(svc *service.ScanService, limit gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	Routes{Scan: NewScanHandler(svc), FrameLimit: limit}.Register(r, "/api/v1")
	return r
}

func serve(r *gin.Engine, method, target string, body []byte, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestScanFlowWithUploadedImage(t *testing.T) {
	marker := &fakeMarker{marked: make(chan string, 1)}
	svc := service.NewScanService(scanner.NewHub(), qr.NewDecoder(0), marker, nil, nil, service.ScanServiceConfig{FPS: 50}, nil)
	defer svc.Stop()
	r := scanRouter(svc, nil)

	rec := serve(r, http.MethodPost, "/api/v1/scan-sessions", nil, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var view dto.ScanSessionView
	require.NoError(t, decodeData(rec, &view))
	assert.True(t, view.Fallback)

	png, err := qr.Encode("stu-9", 256)
	require.NoError(t, err)
	var form bytes.Buffer
	writer := multipart.NewWriter(&form)
	part, err := writer.CreateFormFile("frame", "code.png")
	require.NoError(t, err)
	_, _ = part.Write(png)
	require.NoError(t, writer.Close())

	rec = serve(r, http.MethodPost, "/api/v1/scan-sessions/"+view.ID+"/frames", form.Bytes(), writer.FormDataContentType())
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "stu-9", <-marker.marked)

	require.Eventually(t, func() bool {
		rec := serve(r, http.MethodGet, "/api/v1/scan-sessions/"+view.ID, nil, "")
		var current dto.ScanSessionView
		_ = decodeData(rec, &current)
		return current.State == string(scanner.StateStopped) && current.Attendance == "att-1"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestScanCameraEndpoints(t *testing.T) {
	svc := service.NewScanService(scanner.NewHub(), qr.NewDecoder(0), &fakeMarker{marked: make(chan string, 1)}, nil, nil, service.ScanServiceConfig{MaxFrameBytes: 8}, nil)
	defer svc.Stop()
	r := scanRouter(svc, middleware.RateLimit(middleware.NewTokenBucket(100, 100)))

	rec := serve(r, http.MethodPost, "/api/v1/cameras", []byte(`{"label":"Rear camera"}`), "application/json")
	require.Equal(t, http.StatusCreated, rec.Code)
	var cam dto.CameraView
	require.NoError(t, decodeData(rec, &cam))
	assert.Equal(t, "Rear camera", cam.Label)

	rec = serve(r, http.MethodPost, "/api/v1/cameras/"+cam.ID+"/frames", []byte("frame"), "image/png")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = serve(r, http.MethodPost, "/api/v1/cameras/"+cam.ID+"/frames", []byte(strings.Repeat("x", 9)), "image/png")
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = serve(r, http.MethodPost, "/api/v1/scan-sessions", nil, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var view dto.ScanSessionView
	require.NoError(t, decodeData(rec, &view))
	assert.Equal(t, cam.ID, view.CameraID)

	rec = serve(r, http.MethodPost, "/api/v1/scan-sessions", nil, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "CAMERA_BUSY")

	rec = serve(r, http.MethodDelete, "/api/v1/scan-sessions/"+view.ID, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(r, http.MethodDelete, "/api/v1/cameras/"+cam.ID, nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = serve(r, http.MethodDelete, "/api/v1/cameras/"+cam.ID, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScanSessionNotFound(t *testing.T) {
	svc := service.NewScanService(nil, qr.NewDecoder(0), nil, nil, nil, service.ScanServiceConfig{}, nil)
	r := scanRouter(svc, nil)
	rec := serve(r, http.MethodGet, "/api/v1/scan-sessions/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
