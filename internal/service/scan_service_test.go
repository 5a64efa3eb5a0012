package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/roster-api/internal/models"
	"github.com/noah-isme/roster-api/internal/scanner"
	appErrors "github.com/noah-isme/roster-api/pkg/errors"
)

type textDecoder struct{}

func (textDecoder) DecodeFrame(frame []byte) (string, error) {
	if text, ok := strings.CutPrefix(string(frame), "qr:"); ok {
		return text, nil
	}
	return "", errors.New("no code")
}

type stubMarker struct {
	ids chan string
	err error
}

func (s *stubMarker) MarkPresent(ctx context.Context, studentID string) (*models.AttendanceRecord, error) {
	s.ids <- studentID
	if s.err != nil {
		return nil, s.err
	}
	return &models.AttendanceRecord{ID: "rec-" + studentID, StudentID: studentID, Present: true}, nil
}

func newScanServiceForTest(marker *stubMarker, notes *recordingNotifier) *ScanService {
	return NewScanService(scanner.NewHub(), textDecoder{}, marker, notes, NewMetricsService(), ScanServiceConfig{FPS: 100, MaxFrameBytes: 64}, nil)
}

func waitStopped(t *testing.T, svc *ScanService, id string) {
	t.Helper()
	require.Eventually(t, func() bool {
		view, err := svc.Session(id)
		return err == nil && view.State == string(scanner.StateStopped)
	}, 2*time.Second, 5*time.Millisecond)
}

func TestScanServiceRecordsAttendanceFromCamera(t *testing.T) {
	marker := &stubMarker{ids: make(chan string, 1)}
	svc := newScanServiceForTest(marker, &recordingNotifier{})
	defer svc.Stop()

	cam := svc.RegisterCamera("Back camera")
	view, err := svc.StartSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cam.ID, view.CameraID)
	assert.Equal(t, view.ID, svc.Cameras()[0].InUseBy)

	require.NoError(t, svc.PushFrame(cam.ID, []byte("qr:  s-1 ")))
	assert.Equal(t, "s-1", <-marker.ids)
	waitStopped(t, svc, view.ID)

	view, err = svc.Session(view.ID)
	require.NoError(t, err)
	assert.Equal(t, "rec-s-1", view.Attendance)
	assert.Empty(t, svc.Cameras()[0].InUseBy)
}

func TestScanServiceFallbackUpload(t *testing.T) {
	marker := &stubMarker{ids: make(chan string, 1)}
	svc := newScanServiceForTest(marker, &recordingNotifier{})
	defer svc.Stop()

	view, err := svc.StartSession(context.Background())
	require.NoError(t, err)
	assert.True(t, view.Fallback)

	assert.ErrorIs(t, svc.SubmitFrame(view.ID, nil), appErrors.ErrValidation)
	assert.ErrorIs(t, svc.SubmitFrame(view.ID, make([]byte, 65)), appErrors.ErrTooLarge)
	require.NoError(t, svc.SubmitFrame(view.ID, []byte("qr:s-2")))
	assert.Equal(t, "s-2", <-marker.ids)
	waitStopped(t, svc, view.ID)
}

func TestScanServiceCancel(t *testing.T) {
	svc := newScanServiceForTest(&stubMarker{ids: make(chan string, 1)}, &recordingNotifier{})
	defer svc.Stop()
	cam := svc.RegisterCamera("USB")

	view, err := svc.StartSession(context.Background())
	require.NoError(t, err)
	view, err = svc.CancelSession(view.ID)
	require.NoError(t, err)
	assert.Equal(t, string(scanner.StateStopped), view.State)

	err = svc.PushFrame(cam.ID, []byte("qr:x"))
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	_, err = svc.CancelSession("missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestScanServiceBusyCameraNotifies(t *testing.T) {
	notes := &recordingNotifier{}
	svc := newScanServiceForTest(&stubMarker{ids: make(chan string, 1)}, notes)
	defer svc.Stop()
	svc.RegisterCamera("Back")

	_, err := svc.StartSession(context.Background())
	require.NoError(t, err)
	_, err = svc.StartSession(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrCameraBusy)
	require.Eventually(t, func() bool { return len(notes.messages()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestScanServiceCameraLifecycle(t *testing.T) {
	svc := newScanServiceForTest(&stubMarker{ids: make(chan string, 1)}, &recordingNotifier{})
	defer svc.Stop()
	cam := svc.RegisterCamera("  ")
	assert.Equal(t, "Camera", cam.Label)
	assert.ErrorIs(t, svc.PushFrame("missing", []byte("x")), appErrors.ErrNotFound)
	require.NoError(t, svc.RemoveCamera(cam.ID))
	assert.ErrorIs(t, svc.RemoveCamera(cam.ID), appErrors.ErrNotFound)
	assert.Empty(t, svc.Cameras())
}

func TestScanServicePrunesStoppedSessions(t *testing.T) {
	svc := newScanServiceForTest(&stubMarker{ids: make(chan string, 1)}, &recordingNotifier{})
	defer svc.Stop()
	view, err := svc.StartSession(context.Background())
	require.NoError(t, err)
	_, err = svc.CancelSession(view.ID)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	svc.prune()
	_, err = svc.Session(view.ID)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestScanServiceTimesOutAbandonedSession(t *testing.T) {
	svc := newScanServiceForTest(&stubMarker{ids: make(chan string, 1)}, &recordingNotifier{})
	defer svc.Stop()
	cam := svc.RegisterCamera("Back camera")

	view, err := svc.StartSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, view.ID, svc.Cameras()[0].InUseBy)

	svc.now = func() time.Time { return time.Now().Add(24 * time.Hour) }
	svc.prune()

	view, err = svc.Session(view.ID)
	require.NoError(t, err)
	assert.Equal(t, string(scanner.StateStopped), view.State)
	assert.Empty(t, svc.Cameras()[0].InUseBy)

	next, err := svc.StartSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cam.ID, next.CameraID)
}

func TestScanServiceKeepsFreshSessionsRunning(t *testing.T) {
	svc := newScanServiceForTest(&stubMarker{ids: make(chan string, 1)}, &recordingNotifier{})
	defer svc.Stop()
	svc.RegisterCamera("Back camera")

	view, err := svc.StartSession(context.Background())
	require.NoError(t, err)
	svc.prune()

	view, err = svc.Session(view.ID)
	require.NoError(t, err)
	assert.Equal(t, string(scanner.StateScanning), view.State)
}

type boundedDecoder struct{ textDecoder }

func (boundedDecoder) CheckFrame(frame []byte) error {
	if strings.HasPrefix(string(frame), "huge") {
		return errors.New("frame dimensions exceed the pixel budget")
	}
	return nil
}

func TestScanServiceRejectsOversizedFrameDimensions(t *testing.T) {
	svc := NewScanService(scanner.NewHub(), boundedDecoder{}, &stubMarker{ids: make(chan string, 1)}, &recordingNotifier{}, NewMetricsService(), ScanServiceConfig{FPS: 100, MaxFrameBytes: 64}, nil)
	defer svc.Stop()

	view, err := svc.StartSession(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, svc.SubmitFrame(view.ID, []byte("huge-png")), appErrors.ErrTooLarge)

	cam := svc.RegisterCamera("USB")
	assert.ErrorIs(t, svc.PushFrame(cam.ID, []byte("huge-png")), appErrors.ErrTooLarge)
}

func TestScanServiceRefusesSessionsAfterStop(t *testing.T) {
	svc := newScanServiceForTest(&stubMarker{ids: make(chan string, 1)}, &recordingNotifier{})
	svc.Start(context.Background())
	svc.Stop()

	_, err := svc.StartSession(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	svc.Start(context.Background())
	svc.Stop()
}
