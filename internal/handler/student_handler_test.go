package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/roster-api/internal/dto"
	"github.com/noah-isme/roster-api/internal/models"
	"github.com/noah-isme/roster-api/internal/service"
	appErrors "github.com/noah-isme/roster-api/pkg/errors"
	"github.com/noah-isme/roster-api/pkg/qr"
)

type fakeStudentSrv struct {
	result    *service.StudentListResult
	student   *models.Student
	err       error
	lastQuery models.StudentQuery
	lastReq   service.StudentRequest
	deleted   string
}

func (f *fakeStudentSrv) List(_ context.Context, query models.StudentQuery) (*service.StudentListResult, error) {
	f.lastQuery = query
	return f.result, f.err
}

func (f *fakeStudentSrv) Get(_ context.Context, id string) (*models.Student, error) {
	if f.student == nil || f.student.ID != id {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return f.student, nil
}

func (f *fakeStudentSrv) Create(_ context.Context, req service.StudentRequest) (*models.Student, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.Student{ID: "new-id", Name: req.Name}, nil
}

func (f *fakeStudentSrv) Update(_ context.Context, id string, req service.StudentRequest) (*models.Student, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.Student{ID: id, Name: req.Name}, nil
}

func (f *fakeStudentSrv) Delete(_ context.Context, id string) error {
	f.deleted = id
	return f.err
}

func jsonContext(method, target string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	payload, _ := json.Marshal(body)
	c, rec := newTestContext(method, target)
	c.Request = httptest.NewRequest(method, target, bytes.NewReader(payload))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, rec
}

func TestStudentHandlerListPassesFilters(t *testing.T) {
	srv := &fakeStudentSrv{result: &service.StudentListResult{
		Rows:       dto.NewStudentRows([]models.Student{{ID: "7", Name: "Mina"}}),
		Pagination: &models.Pagination{Page: 1, PageSize: 10, TotalCount: 1},
	}}
	handler := NewStudentHandler(srv, nil)

	c, rec := newTestContext(http.MethodGet, "/students?search=+Mi+&gender=male&type=all&page=1&page_size=10")
	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StudentQuery{Search: " Mi ", Gender: "male", StudentType: "all", Page: 1, PageSize: 10}, srv.lastQuery)

	var body struct {
		Data       []map[string]interface{} `json:"data"`
		Pagination map[string]interface{}   `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "/students/7", body.Data[0]["detailPath"])
	assert.EqualValues(t, 1, body.Pagination["total_count"])
}

func TestStudentHandlerListStale(t *testing.T) {
	srv := &fakeStudentSrv{result: &service.StudentListResult{
		Rows:    dto.NewStudentRows([]models.Student{{ID: "7", Name: "Mina"}}),
		Stale:   true,
		Warning: appErrors.Clone(appErrors.ErrStore, service.MsgFetchStudentsError),
	}}
	handler := NewStudentHandler(srv, nil)

	c, rec := newTestContext(http.MethodGet, "/students")
	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, true, envelope.Meta["stale"])
	assert.Equal(t, map[string]interface{}{"level": "error", "message": service.MsgFetchStudentsError}, envelope.Meta["notification"])
}

func TestStudentHandlerListRejectsBadPaging(t *testing.T) {
	handler := NewStudentHandler(&fakeStudentSrv{}, nil)
	c, rec := newTestContext(http.MethodGet, "/students?page_size=0")
	handler.List(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStudentHandlerCreateNotifies(t *testing.T) {
	srv := &fakeStudentSrv{}
	handler := NewStudentHandler(srv, nil)

	c, rec := jsonContext(http.MethodPost, "/students", map[string]string{"name": "Mina", "phone": "01012345678"})
	handler.Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "01012345678", srv.lastReq.Phone)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, map[string]interface{}{"level": "success", "message": service.MsgStudentAdded}, envelope.Meta["notification"])
}

func TestStudentHandlerCreateValidationError(t *testing.T) {
	srv := &fakeStudentSrv{err: appErrors.Clone(appErrors.ErrValidation, "Phone number must be 11 digits and start with 010, 011, 012 or 015")}
	handler := NewStudentHandler(srv, nil)

	c, rec := jsonContext(http.MethodPost, "/students", map[string]string{"name": "Mina", "phone": "123"})
	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", envelope.Error["code"])
}

func TestStudentHandlerCreateMalformedJSON(t *testing.T) {
	handler := NewStudentHandler(&fakeStudentSrv{}, nil)
	c, rec := newTestContext(http.MethodPost, "/students")
	c.Request = httptest.NewRequest(http.MethodPost, "/students", bytes.NewBufferString("{"))
	c.Request.Header.Set("Content-Type", "application/json")
	handler.Create(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStudentHandlerUpdateAndDelete(t *testing.T) {
	srv := &fakeStudentSrv{}
	handler := NewStudentHandler(srv, nil)

	c, rec := jsonContext(http.MethodPut, "/students/7", map[string]string{"name": "Mina"})
	c.Params = gin.Params{{Key: "id", Value: "7"}}
	handler.Update(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.MsgStudentUpdated, decodeEnvelope(t, rec).Meta["notification"].(map[string]interface{})["message"])

	c, rec = newTestContext(http.MethodDelete, "/students/7")
	c.Params = gin.Params{{Key: "id", Value: "7"}}
	handler.Delete(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "7", srv.deleted)
	assert.Equal(t, service.MsgStudentDeleted, decodeEnvelope(t, rec).Meta["notification"].(map[string]interface{})["message"])
}

func TestStudentHandlerGetNotFound(t *testing.T) {
	handler := NewStudentHandler(&fakeStudentSrv{}, nil)
	c, rec := newTestContext(http.MethodGet, "/students/missing")
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	handler.Get(c)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStudentHandlerQRCodeRoundTrip(t *testing.T) {
	handler := NewStudentHandler(&fakeStudentSrv{student: &models.Student{ID: "stu-42"}}, nil)
	c, rec := newTestContext(http.MethodGet, "/students/stu-42/qr?size=256")
	c.Params = gin.Params{{Key: "id", Value: "stu-42"}}
	handler.QRCode(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	text, err := qr.NewDecoder(0).DecodeFrame(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "stu-42", text)
}

func TestStudentHandlerQRCodeBadSize(t *testing.T) {
	handler := NewStudentHandler(&fakeStudentSrv{student: &models.Student{ID: "stu-42"}}, nil)
	c, rec := newTestContext(http.MethodGet, "/students/stu-42/qr?size=big")
	c.Params = gin.Params{{Key: "id", Value: "stu-42"}}
	handler.QRCode(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
