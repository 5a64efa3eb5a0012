// Package scanner runs QR capture sessions: it picks a camera, paces frame
// decoding and guarantees the camera is released exactly once however the
// session ends.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/roster-api/pkg/errors"
)

// State is a capture session lifecycle state.
type State string

const (
	StateIdle             State = "idle"
	StateInitializing     State = "initializing"
	StateCameraAvailable  State = "camera_available"
	StateNoCameraFallback State = "no_camera_fallback"
	StateScanning         State = "scanning"
	StateDecoded          State = "decoded"
	StateFailed           State = "failed"
	StateStopped          State = "stopped"
)

// DefaultFPS is the decode rate used when none is configured.
const DefaultFPS = 10

// MsgInitFailed is the notice shown when no camera could be started.
const MsgInitFailed = "Failed to initialize QR scanner"

// Session errors.
var (
	ErrSessionStopped = errors.New("scan session stopped")
	ErrNotAccepting   = errors.New("scan session is not accepting uploaded frames")
	ErrAlreadyStarted = errors.New("scan session already started")
)

// FrameDecoder extracts the QR payload from an encoded frame.
type FrameDecoder interface {
	DecodeFrame(frame []byte) (string, error)
}

// FrameChecker is implemented by decoders that can reject a frame cheaply
// before it is queued.
type FrameChecker interface {
	CheckFrame(frame []byte) error
}

// FrameObserver is told about every frame a session examines.
type FrameObserver interface {
	ObserveFrame(decoded bool)
}

// Callback receives the decoded payload. It runs once, after the camera has
// been released.
type Callback func(ctx context.Context, text string) error

// Config wires a session to its collaborators.
type Config struct {
	Devices  Devices
	Decoder  FrameDecoder
	FPS      int
	Observer FrameObserver
	Logger   *zap.Logger
	Now      func() time.Time
}

// Result is the outcome of a finished session.
type Result struct {
	State       State
	Text        string
	Err         error
	CallbackErr error
	Cancelled   bool
}

// Info is a point-in-time view of a session.
type Info struct {
	ID        string
	State     State
	Camera    *CameraInfo
	Fallback  bool
	Result    Result
	History   []State
	StartedAt time.Time
	EndedAt   *time.Time
}

// Session is a single QR capture attempt.
//
//	Idle -> Initializing -> CameraAvailable | NoCameraFallback -> Scanning -> Decoded -> Stopped
//	Initializing -> Failed -> Stopped
//	any non-terminal state -> Stopped (Cancel)
type Session struct {
	id       string
	cfg      Config
	callback Callback
	logger   *zap.Logger

	mu        sync.Mutex
	state     State
	history   []State
	camera    *CameraInfo
	fallback  bool
	stream    Stream
	inbox     *frameBuffer
	result    Result
	startedAt time.Time
	endedAt   *time.Time

	ctx         context.Context
	cancel      context.CancelFunc
	releaseOnce sync.Once
	finishOnce  sync.Once
	done        chan struct{}
}

// NewSession constructs an idle session.
func NewSession(id string, cfg Config, callback Callback) *Session {
	if cfg.FPS <= 0 {
		cfg.FPS = DefaultFPS
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:        id,
		cfg:       cfg,
		callback:  callback,
		logger:    logger.With(zap.String("scan_session", id)),
		state:     StateIdle,
		history:   []State{StateIdle},
		startedAt: cfg.Now(),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the session reaches Stopped.
func (s *Session) Done() <-chan struct{} { return s.done }

// Start enumerates cameras, acquires one (or opens the upload fallback when
// none exists) and begins scanning in the background. Enumeration failures
// degrade to the fallback. Acquisition failures stop the session and return
// a camera error.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.setLocked(StateInitializing)
	s.mu.Unlock()

	cameras, err := s.cfg.Devices.List(ctx)
	if err != nil {
		s.logger.Warn("camera enumeration failed, using upload fallback", zap.Error(err))
		cameras = nil
	}

	cam, ok := SelectCamera(cameras)
	if !ok {
		inbox := newFrameBuffer()
		if !s.attach(StateNoCameraFallback, nil, inbox, inbox) {
			_ = inbox.Close()
			return ErrSessionStopped
		}
		go s.run(inbox)
		return nil
	}

	stream, err := s.cfg.Devices.Open(ctx, cam.ID, s.id)
	if err != nil {
		camErr := cameraError(err)
		s.fail(camErr)
		return camErr
	}
	if !s.attach(StateCameraAvailable, &cam, stream, nil) {
		// Cancelled while acquiring: the stream never reached the session.
		_ = stream.Close()
		return ErrSessionStopped
	}
	go s.run(stream)
	return nil
}

// Submit hands an uploaded frame to a session running in fallback mode.
func (s *Session) Submit(frame []byte) error {
	s.mu.Lock()
	inbox := s.inbox
	scanning := s.state == StateScanning
	s.mu.Unlock()
	if !scanning || inbox == nil {
		return ErrNotAccepting
	}
	if !inbox.push(frame) {
		return ErrNotAccepting
	}
	return nil
}

// Cancel stops the session from any state that is not already finishing.
// It is safe to call repeatedly.
func (s *Session) Cancel() {
	s.mu.Lock()
	switch s.state {
	case StateStopped, StateDecoded, StateFailed:
		s.mu.Unlock()
		return
	}
	s.result.Cancelled = true
	s.setLocked(StateStopped)
	s.mu.Unlock()

	s.cancel()
	s.release()
	s.finish()
}

// Wait blocks until the session stops or ctx ends.
func (s *Session) Wait(ctx context.Context) (Result, error) {
	select {
	case <-s.done:
		return s.Result(), nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Result returns the outcome so far.
func (s *Session) Result() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.result
	r.State = s.state
	return r
}

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := Info{
		ID:        s.id,
		State:     s.state,
		Fallback:  s.fallback,
		Result:    s.result,
		History:   append([]State(nil), s.history...),
		StartedAt: s.startedAt,
		EndedAt:   s.endedAt,
	}
	info.Result.State = s.state
	if s.camera != nil {
		cam := *s.camera
		info.Camera = &cam
	}
	return info
}

func (s *Session) attach(via State, cam *CameraInfo, stream Stream, inbox *frameBuffer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInitializing {
		return false
	}
	s.stream = stream
	s.inbox = inbox
	s.camera = cam
	s.fallback = inbox != nil
	s.setLocked(via)
	s.setLocked(StateScanning)
	return true
}

func (s *Session) run(stream Stream) {
	ticker := time.NewTicker(time.Second / time.Duration(s.cfg.FPS))
	defer ticker.Stop()

	frames := stream.Frames()
	var pending []byte
	for {
		select {
		case <-s.ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				s.fail(appErrors.Camera(ErrStreamClosed, "camera disconnected"))
				return
			}
			pending = frame
		case <-ticker.C:
			if pending == nil {
				continue
			}
			frame := pending
			pending = nil
			text, err := s.cfg.Decoder.DecodeFrame(frame)
			if s.cfg.Observer != nil {
				s.cfg.Observer.ObserveFrame(err == nil)
			}
			if err != nil {
				s.logger.Debug("frame not decoded", zap.Error(err))
				continue
			}
			s.decoded(text)
			return
		}
	}
}

func (s *Session) decoded(text string) {
	s.mu.Lock()
	if s.state != StateScanning {
		s.mu.Unlock()
		return
	}
	s.result.Text = text
	s.setLocked(StateDecoded)
	s.mu.Unlock()

	s.release()
	cbErr := s.invoke(text)

	s.mu.Lock()
	s.result.CallbackErr = cbErr
	s.setLocked(StateStopped)
	s.mu.Unlock()

	s.cancel()
	s.finish()
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	switch s.state {
	case StateStopped, StateDecoded, StateFailed:
		s.mu.Unlock()
		return
	}
	s.result.Err = err
	s.setLocked(StateFailed)
	s.mu.Unlock()

	s.logger.Warn("scan session failed", zap.Error(err))
	s.release()

	s.mu.Lock()
	s.setLocked(StateStopped)
	s.mu.Unlock()

	s.cancel()
	s.finish()
}

func (s *Session) invoke(text string) (err error) {
	if s.callback == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scan callback panicked: %v", r)
			s.logger.Error("scan callback panicked", zap.Any("panic", r))
		}
	}()
	return s.callback(s.ctx, text)
}

// release closes the acquired stream at most once. When called before a
// stream was attached it does nothing, and attach refuses the stream later.
func (s *Session) release() {
	s.releaseOnce.Do(func() {
		s.mu.Lock()
		stream := s.stream
		s.mu.Unlock()
		if stream == nil {
			return
		}
		if err := stream.Close(); err != nil {
			s.logger.Warn("camera release failed", zap.Error(err))
		}
	})
}

func (s *Session) finish() {
	s.finishOnce.Do(func() {
		s.mu.Lock()
		now := s.cfg.Now()
		s.endedAt = &now
		s.mu.Unlock()
		close(s.done)
	})
}

func (s *Session) setLocked(state State) {
	s.state = state
	s.history = append(s.history, state)
}

func cameraError(err error) error {
	if errors.Is(err, ErrDeviceBusy) {
		return appErrors.Wrap(err, appErrors.ErrCameraBusy.Code, appErrors.ErrCameraBusy.Status, appErrors.ErrCameraBusy.Message)
	}
	return appErrors.Camera(err, MsgInitFailed)
}
