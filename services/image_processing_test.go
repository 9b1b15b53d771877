package services

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeTestPreview(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestWhitenPreviewBackground(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			// near-white backdrop with a dark subject in the middle
			src.Set(x, y, color.RGBA{R: 250, G: 250, B: 250, A: 255})
		}
	}
	src.Set(10, 10, color.RGBA{R: 40, G: 40, B: 40, A: 255})
	src.Set(0, 0, color.RGBA{R: 100, G: 100, B: 100, A: 255})

	out, err := WhitenPreviewBackground(encodeTestPreview(t, src), 190, 245, 0.5)
	require.NoError(t, err)

	cleaned, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)

	// backdrop corner snapped to pure white
	r, g, b, _ := cleaned.At(19, 19).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Equal(t, uint32(0xffff), g)
	assert.Equal(t, uint32(0xffff), b)

	// the protected center keeps the subject untouched
	r, _, _, _ = cleaned.At(10, 10).RGBA()
	assert.Equal(t, uint8(40), uint8(r>>8))

	// dark pixels outside the center survive too
	r, _, _, _ = cleaned.At(0, 0).RGBA()
	assert.Equal(t, uint8(100), uint8(r>>8))
}

func TestWhitenPreviewBackgroundFeathersTransition(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			src.Set(x, y, color.RGBA{R: 220, G: 220, B: 220, A: 255})
		}
	}

	out, err := WhitenPreviewBackground(encodeTestPreview(t, src), 190, 245, 0)
	require.NoError(t, err)

	cleaned, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)

	r, _, _, _ := cleaned.At(0, 0).RGBA()
	blended := uint8(r >> 8)
	assert.Greater(t, blended, uint8(220))
	assert.Less(t, blended, uint8(255))
}

func TestWhitenPreviewBackgroundRejectsBadArguments(t *testing.T) {
	_, err := WhitenPreviewBackground(nil, 245, 190, 0.5)
	assert.Error(t, err)

	_, err = WhitenPreviewBackground(nil, 190, 245, 1.5)
	assert.Error(t, err)

	_, err = WhitenPreviewBackground([]byte("not an image"), 190, 245, 0.5)
	assert.Error(t, err)
}
