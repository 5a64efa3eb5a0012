package qr

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	frame, err := Encode("student-42", 256)
	require.NoError(t, err)

	text, err := NewDecoder(0).DecodeFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, "student-42", text)
}

func TestDecodeDownscalesLargeFrames(t *testing.T) {
	frame, err := Encode("s-7", 512)
	require.NoError(t, err)
	img, err := ReadFrame(frame)
	require.NoError(t, err)
	large := imaging.Resize(img, 2048, 2048, imaging.NearestNeighbor)

	text, err := NewDecoder(600).Decode(large)
	require.NoError(t, err)
	assert.Equal(t, "s-7", text)
}

func TestDecodeBlankFrame(t *testing.T) {
	blank := image.NewGray(image.Rect(0, 0, 120, 120))
	for i := range blank.Pix {
		blank.Pix[i] = 0xff
	}
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, blank))

	_, err := NewDecoder(0).DecodeFrame(buf.Bytes())
	assert.ErrorIs(t, err, ErrNoCode)
}

func TestReadFrameRejectsGarbage(t *testing.T) {
	_, err := ReadFrame(nil)
	assert.Error(t, err)
	_, err = ReadFrame([]byte("not an image"))
	assert.Error(t, err)
}

func TestEncodeClampsSize(t *testing.T) {
	out, err := Encode("x", 10)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, MinSize, img.Bounds().Dx())

	out, err = Encode("x", 0)
	require.NoError(t, err)
	img, err = png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, DefaultSize, img.Bounds().Dx())

	_, err = Encode("  ", 200)
	assert.Error(t, err)
}

func grayPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, image.NewGray(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestDecodeFrameRejectsOversizedDimensions(t *testing.T) {
	d := NewDecoder(0)
	d.maxPixels = 100 * 100

	frame := grayPNG(t, 200, 120)
	assert.ErrorIs(t, d.CheckFrame(frame), ErrFrameTooLarge)
	_, err := d.DecodeFrame(frame)
	assert.ErrorIs(t, err, ErrFrameTooLarge)

	small := grayPNG(t, 100, 100)
	assert.NoError(t, d.CheckFrame(small))
	_, err = d.DecodeFrame(small)
	assert.ErrorIs(t, err, ErrNoCode)

	assert.NoError(t, d.CheckFrame([]byte("not an image")))
}

func TestNewDecoderUsesPixelBudget(t *testing.T) {
	assert.Equal(t, DefaultMaxPixels, NewDecoder(0).maxPixels)
	assert.NoError(t, checkPixels(image.Config{Width: 4096, Height: 4096}, DefaultMaxPixels))
	assert.ErrorIs(t, checkPixels(image.Config{Width: 12000, Height: 12000}, DefaultMaxPixels), ErrFrameTooLarge)
}
