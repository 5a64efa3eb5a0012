package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/roster-api/internal/dto"
	"github.com/noah-isme/roster-api/internal/models"
	"github.com/noah-isme/roster-api/internal/scanner"
	appErrors "github.com/noah-isme/roster-api/pkg/errors"
)

// Scan session outcomes reported to metrics.
const (
	ScanOutcomeDecoded        = "decoded"
	ScanOutcomeCancelled      = "cancelled"
	ScanOutcomeFailed         = "failed"
	ScanOutcomeCallbackFailed = "callback_failed"
)

type attendanceMarker interface {
	MarkPresent(ctx context.Context, studentID string) (*models.AttendanceRecord, error)
}

// ScanServiceConfig tunes capture sessions.
type ScanServiceConfig struct {
	FPS            int
	MaxFrameBytes  int64
	Retention      time.Duration
	SessionTimeout time.Duration
}

type trackedSession struct {
	session      *scanner.Session
	attendanceID string
}

// ScanService owns the camera hub and the capture sessions. A decoded
// payload is taken as a student id and recorded as present.
type ScanService struct {
	hub        *scanner.Hub
	decoder    scanner.FrameDecoder
	attendance attendanceMarker
	notifier   notifier
	metrics    *MetricsService
	logger     *zap.Logger
	cfg        ScanServiceConfig
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*trackedSession
	stop     context.CancelFunc
	stopped  bool
	wg       sync.WaitGroup
}

// NewScanService constructs a ScanService.
func NewScanService(hub *scanner.Hub, decoder scanner.FrameDecoder, attendance attendanceMarker, notifier notifier, metrics *MetricsService, cfg ScanServiceConfig, logger *zap.Logger) *ScanService {
	if hub == nil {
		hub = scanner.NewHub()
	}
	if cfg.FPS <= 0 {
		cfg.FPS = scanner.DefaultFPS
	}
	if cfg.MaxFrameBytes <= 0 {
		cfg.MaxFrameBytes = 4 << 20
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 10 * time.Minute
	}
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScanService{
		hub:        hub,
		decoder:    decoder,
		attendance: attendance,
		notifier:   notifier,
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
		sessions:   make(map[string]*trackedSession),
	}
}

// MaxFrameBytes is the largest accepted frame upload.
func (s *ScanService) MaxFrameBytes() int64 { return s.cfg.MaxFrameBytes }

// Start launches the janitor that cancels sessions running past the session
// timeout and forgets stopped sessions after the retention period.
func (s *ScanService) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		cancel()
		return
	}
	s.stop = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	interval := s.cfg.Retention
	if s.cfg.SessionTimeout < interval {
		interval = s.cfg.SessionTimeout
	}
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.prune()
			}
		}
	}()
}

// Stop cancels every running session and the janitor. No session can be
// started afterwards.
func (s *ScanService) Stop() {
	s.mu.Lock()
	s.stopped = true
	stop := s.stop
	running := make([]*scanner.Session, 0, len(s.sessions))
	for _, tracked := range s.sessions {
		running = append(running, tracked.session)
	}
	s.mu.Unlock()

	for _, session := range running {
		session.Cancel()
	}
	if stop != nil {
		stop()
	}
	s.wg.Wait()
}

// RegisterCamera adds a frame-pushing camera.
func (s *ScanService) RegisterCamera(label string) dto.CameraView {
	label = strings.TrimSpace(label)
	if label == "" {
		label = "Camera"
	}
	info := s.hub.Register(label)
	s.logger.Info("camera registered", zap.String("camera_id", info.ID), zap.String("label", info.Label))
	return dto.CameraView{ID: info.ID, Label: info.Label}
}

// Cameras lists registered cameras.
func (s *ScanService) Cameras() []dto.CameraView {
	states := s.hub.States()
	out := make([]dto.CameraView, 0, len(states))
	for _, st := range states {
		out = append(out, dto.CameraView{ID: st.ID, Label: st.Label, InUseBy: st.Owner})
	}
	return out
}

// RemoveCamera unregisters a camera. A session using it fails.
func (s *ScanService) RemoveCamera(id string) error {
	if err := s.hub.Unregister(id); err != nil {
		return appErrors.Clone(appErrors.ErrNotFound, "camera not found")
	}
	return nil
}

// PushFrame delivers a frame from a registered camera to its session.
func (s *ScanService) PushFrame(cameraID string, frame []byte) error {
	if err := s.checkFrame(frame); err != nil {
		return err
	}
	switch err := s.hub.Push(cameraID, frame); {
	case err == nil:
		return nil
	case errors.Is(err, scanner.ErrUnknownCamera):
		return appErrors.Clone(appErrors.ErrNotFound, "camera not found")
	default:
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "camera has no active scan session")
	}
}

// StartSession opens a capture session. The session is tracked even when it
// fails to start so its outcome can be inspected.
func (s *ScanService) StartSession(ctx context.Context) (*dto.ScanSessionView, error) {
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return nil, appErrors.Clone(appErrors.ErrConflict, "scanner is shutting down")
	}

	id := uuid.NewString()
	session := scanner.NewSession(id, scanner.Config{
		Devices:  s.hub,
		Decoder:  s.decoder,
		FPS:      s.cfg.FPS,
		Observer: s.metrics,
		Logger:   s.logger,
		Now:      s.now,
	}, s.onDecoded(id))

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrConflict, "scanner is shutting down")
	}
	s.sessions[id] = &trackedSession{session: session}
	s.wg.Add(1)
	s.mu.Unlock()

	s.metrics.ScanSessionStarted()
	go s.watch(session)

	if err := session.Start(ctx); err != nil {
		return nil, err
	}
	return s.Session(id)
}

// Session returns the state of a capture session.
func (s *ScanService) Session(id string) (*dto.ScanSessionView, error) {
	s.mu.Lock()
	tracked, ok := s.sessions[id]
	var attendanceID string
	if ok {
		attendanceID = tracked.attendanceID
	}
	s.mu.Unlock()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "scan session not found")
	}
	view := sessionView(tracked.session.Info(), attendanceID)
	return &view, nil
}

// SubmitFrame uploads a frame to a session running without a camera.
func (s *ScanService) SubmitFrame(id string, frame []byte) error {
	if err := s.checkFrame(frame); err != nil {
		return err
	}
	s.mu.Lock()
	tracked, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "scan session not found")
	}
	if err := tracked.session.Submit(frame); err != nil {
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "scan session is not accepting frames")
	}
	return nil
}

// CancelSession stops a session and releases its camera.
func (s *ScanService) CancelSession(id string) (*dto.ScanSessionView, error) {
	s.mu.Lock()
	tracked, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "scan session not found")
	}
	tracked.session.Cancel()
	return s.Session(id)
}

func (s *ScanService) onDecoded(sessionID string) scanner.Callback {
	return func(ctx context.Context, text string) error {
		studentID := strings.TrimSpace(text)
		if studentID == "" {
			return appErrors.Clone(appErrors.ErrValidation, "scanned code is empty")
		}
		record, err := s.attendance.MarkPresent(ctx, studentID)
		if err != nil {
			return err
		}
		s.mu.Lock()
		if tracked, ok := s.sessions[sessionID]; ok {
			tracked.attendanceID = record.ID
		}
		s.mu.Unlock()
		return nil
	}
}

func (s *ScanService) watch(session *scanner.Session) {
	defer s.wg.Done()
	<-session.Done()
	res := session.Result()
	outcome := ScanOutcomeDecoded
	switch {
	case res.Cancelled:
		outcome = ScanOutcomeCancelled
	case res.Err != nil:
		outcome = ScanOutcomeFailed
		if s.notifier != nil {
			s.notifier.Notify(context.Background(), models.NotificationError, "scanner", appErrors.FromError(res.Err).Message, res.Err)
		}
	case res.CallbackErr != nil:
		outcome = ScanOutcomeCallbackFailed
	}
	s.metrics.ScanSessionFinished(outcome)
	s.logger.Info("scan session finished", zap.String("scan_session", session.ID()), zap.String("outcome", outcome))
}

// prune cancels sessions still running past the session timeout, which
// releases their camera, and forgets sessions stopped before the retention
// cutoff.
func (s *ScanService) prune() {
	now := s.now()
	cutoff := now.Add(-s.cfg.Retention)
	deadline := now.Add(-s.cfg.SessionTimeout)

	var expired []*scanner.Session
	s.mu.Lock()
	for id, tracked := range s.sessions {
		info := tracked.session.Info()
		switch {
		case info.EndedAt == nil:
			if info.StartedAt.Before(deadline) {
				expired = append(expired, tracked.session)
			}
		case info.EndedAt.Before(cutoff):
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, session := range expired {
		s.logger.Info("scan session timed out", zap.String("scan_session", session.ID()))
		session.Cancel()
	}
}

func (s *ScanService) checkFrame(frame []byte) error {
	if len(frame) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "frame is empty")
	}
	if int64(len(frame)) > s.cfg.MaxFrameBytes {
		return appErrors.Clone(appErrors.ErrTooLarge, "frame exceeds the upload limit")
	}
	if checker, ok := s.decoder.(scanner.FrameChecker); ok {
		if err := checker.CheckFrame(frame); err != nil {
			return appErrors.Wrap(err, appErrors.ErrTooLarge.Code, appErrors.ErrTooLarge.Status, "frame dimensions exceed the decode limit")
		}
	}
	return nil
}

func sessionView(info scanner.Info, attendanceID string) dto.ScanSessionView {
	view := dto.ScanSessionView{
		ID:         info.ID,
		State:      string(info.State),
		Fallback:   info.Fallback,
		Result:     info.Result.Text,
		Attendance: attendanceID,
		StartedAt:  info.StartedAt,
		EndedAt:    info.EndedAt,
	}
	if info.Camera != nil {
		view.CameraID = info.Camera.ID
	}
	switch {
	case info.Result.Err != nil:
		view.Error = appErrors.FromError(info.Result.Err).Message
	case info.Result.CallbackErr != nil:
		view.Error = appErrors.FromError(info.Result.CallbackErr).Message
	}
	return view
}
