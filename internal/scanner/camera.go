package scanner

import (
	"context"
	"errors"
	"regexp"
	"sync"

	"github.com/google/uuid"
)

// Device errors.
var (
	ErrUnknownCamera = errors.New("unknown camera")
	ErrDeviceBusy    = errors.New("camera is owned by another session")
	ErrNotStreaming  = errors.New("camera has no active session")
	ErrStreamClosed  = errors.New("camera stream closed")
)

// CameraInfo identifies a capture device.
type CameraInfo struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Stream is an acquired camera feed. Close releases the device.
type Stream interface {
	Frames() <-chan []byte
	Close() error
}

// Devices enumerates and acquires cameras.
type Devices interface {
	List(ctx context.Context) ([]CameraInfo, error)
	Open(ctx context.Context, id, owner string) (Stream, error)
}

var rearFacing = regexp.MustCompile(`(?i)back|rear|environment`)

// SelectCamera picks the rear-facing camera when a label says so, otherwise
// the first one. ok is false when there are no cameras.
func SelectCamera(cameras []CameraInfo) (CameraInfo, bool) {
	if len(cameras) == 0 {
		return CameraInfo{}, false
	}
	for _, cam := range cameras {
		if rearFacing.MatchString(cam.Label) {
			return cam, true
		}
	}
	return cameras[0], true
}

// frameBuffer holds the most recent undelivered frame. Older frames are
// replaced, never queued.
type frameBuffer struct {
	mu     sync.Mutex
	ch     chan []byte
	closed bool
}

func newFrameBuffer() *frameBuffer {
	return &frameBuffer{ch: make(chan []byte, 1)}
}

func (b *frameBuffer) Frames() <-chan []byte {
	return b.ch
}

func (b *frameBuffer) push(frame []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	select {
	case b.ch <- frame:
	default:
		select {
		case <-b.ch:
		default:
		}
		b.ch <- frame
	}
	return true
}

func (b *frameBuffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.ch)
	}
	return nil
}

// CameraState is a registered camera and the session currently owning it.
type CameraState struct {
	CameraInfo
	Owner string `json:"owner,omitempty"`
}

type device struct {
	info   CameraInfo
	owner  string
	stream *hubStream
}

type hubStream struct {
	*frameBuffer
	hub  *Hub
	id   string
	once sync.Once
}

func (s *hubStream) Close() error {
	s.once.Do(func() { s.hub.release(s.id, s) })
	return nil
}

// Hub is the registry of cameras that push frames over HTTP. A camera is
// owned by at most one session at a time; frames pushed while nobody owns
// the camera are dropped.
type Hub struct {
	mu      sync.Mutex
	devices map[string]*device
	order   []string
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{devices: make(map[string]*device)}
}

// Register adds a camera and returns its id.
func (h *Hub) Register(label string) CameraInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	info := CameraInfo{ID: uuid.NewString(), Label: label}
	h.devices[info.ID] = &device{info: info}
	h.order = append(h.order, info.ID)
	return info
}

// Unregister removes a camera. An owning session sees its stream close.
func (h *Hub) Unregister(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	dev, ok := h.devices[id]
	if !ok {
		return ErrUnknownCamera
	}
	delete(h.devices, id)
	for i, existing := range h.order {
		if existing == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	if dev.stream != nil {
		_ = dev.stream.frameBuffer.Close()
	}
	return nil
}

// List returns cameras in registration order.
func (h *Hub) List(ctx context.Context) ([]CameraInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]CameraInfo, 0, len(h.order))
	for _, id := range h.order {
		out = append(out, h.devices[id].info)
	}
	return out, nil
}

// States returns cameras with their current owner.
func (h *Hub) States() []CameraState {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]CameraState, 0, len(h.order))
	for _, id := range h.order {
		dev := h.devices[id]
		out = append(out, CameraState{CameraInfo: dev.info, Owner: dev.owner})
	}
	return out
}

// Open acquires camera id for owner.
func (h *Hub) Open(ctx context.Context, id, owner string) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	dev, ok := h.devices[id]
	if !ok {
		return nil, ErrUnknownCamera
	}
	if dev.stream != nil {
		return nil, ErrDeviceBusy
	}
	stream := &hubStream{frameBuffer: newFrameBuffer(), hub: h, id: id}
	dev.stream = stream
	dev.owner = owner
	return stream, nil
}

// Push delivers a frame to the session owning camera id.
func (h *Hub) Push(id string, frame []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	dev, ok := h.devices[id]
	if !ok {
		return ErrUnknownCamera
	}
	if dev.stream == nil || !dev.stream.push(frame) {
		return ErrNotStreaming
	}
	return nil
}

func (h *Hub) release(id string, stream *hubStream) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if dev, ok := h.devices[id]; ok && dev.stream == stream {
		dev.stream = nil
		dev.owner = ""
	}
	_ = stream.frameBuffer.Close()
}
