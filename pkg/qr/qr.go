// Package qr decodes QR codes from camera frames and renders QR images.
package qr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	qrgen "github.com/skip2/go-qrcode"
	_ "golang.org/x/image/webp"
)

// ErrNoCode is returned when a frame holds no readable QR code.
var ErrNoCode = errors.New("no qr code in frame")

// ErrFrameTooLarge is returned when a frame header declares more pixels than
// the decoder accepts.
var ErrFrameTooLarge = errors.New("frame dimensions exceed the pixel budget")

// DefaultMaxDimension bounds the longest frame edge fed to the reader.
const DefaultMaxDimension = 1024

// DefaultMaxPixels bounds width*height of a frame before it is decoded.
const DefaultMaxPixels = 4096 * 4096

// Size limits for rendered codes.
const (
	DefaultSize = 200
	MinSize     = 64
	MaxSize     = 1024
)

// Decoder reads QR payloads from frames. It is safe for concurrent use.
type Decoder struct {
	maxDimension int
	maxPixels    int
	hints        map[gozxing.DecodeHintType]interface{}
}

// NewDecoder constructs a Decoder. maxDimension <= 0 uses DefaultMaxDimension.
func NewDecoder(maxDimension int) *Decoder {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	return &Decoder{
		maxDimension: maxDimension,
		maxPixels:    DefaultMaxPixels,
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

// DecodeFrame decodes an encoded frame (PNG, JPEG or WebP) and reads its QR
// payload.
func (d *Decoder) DecodeFrame(frame []byte) (string, error) {
	img, err := readFrame(frame, d.maxPixels)
	if err != nil {
		return "", err
	}
	return d.Decode(img)
}

// Decode reads the QR payload of img. ErrNoCode is returned when nothing was
// found.
func (d *Decoder) Decode(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(d.prepare(img))
	if err != nil {
		return "", fmt.Errorf("binarize frame: %w", err)
	}
	result, err := qrcode.NewQRCodeReader().Decode(bmp, d.hints)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoCode, err)
	}
	return result.GetText(), nil
}

func (d *Decoder) prepare(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() > d.maxDimension || b.Dy() > d.maxDimension {
		img = imaging.Fit(img, d.maxDimension, d.maxDimension, imaging.Box)
	}
	return imaging.Grayscale(img)
}

// CheckFrame rejects frames whose header declares more than the pixel
// budget. Frames with unreadable headers pass; decoding reports them.
func (d *Decoder) CheckFrame(frame []byte) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(frame))
	if err != nil {
		return nil
	}
	return checkPixels(cfg, d.maxPixels)
}

// ReadFrame decodes an encoded frame of at most DefaultMaxPixels pixels.
func ReadFrame(frame []byte) (image.Image, error) {
	return readFrame(frame, DefaultMaxPixels)
}

func readFrame(frame []byte, maxPixels int) (image.Image, error) {
	if len(frame) == 0 {
		return nil, fmt.Errorf("empty frame")
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("decode frame header: %w", err)
	}
	if err := checkPixels(cfg, maxPixels); err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return img, nil
}

func checkPixels(cfg image.Config, maxPixels int) error {
	if maxPixels <= 0 {
		return nil
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > maxPixels/cfg.Height {
		return fmt.Errorf("%w: %dx%d", ErrFrameTooLarge, cfg.Width, cfg.Height)
	}
	return nil
}

// Encode renders content as a square PNG of size pixels. Sizes outside
// [MinSize, MaxSize] are clamped; zero uses DefaultSize.
func Encode(content string, size int) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("qr content is empty")
	}
	switch {
	case size == 0:
		size = DefaultSize
	case size < MinSize:
		size = MinSize
	case size > MaxSize:
		size = MaxSize
	}
	png, err := qrgen.Encode(content, qrgen.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
