package services

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
)

func previewLuminance(c color.Color) (float64, uint8) {
	r, g, b, a := c.RGBA()
	r8 := float64(uint8(r >> 8))
	g8 := float64(uint8(g >> 8))
	b8 := float64(uint8(b >> 8))
	return 0.299*r8 + 0.587*g8 + 0.114*b8, uint8(a >> 8)
}

func blendTowardsWhite(c color.Color, factor float64, alpha uint8) color.RGBA {
	r, g, b, _ := c.RGBA()
	mix := func(channel uint32) uint8 {
		value := float64(uint8(channel>>8))*(1.0-factor) + 255.0*factor
		return uint8(math.Round(value))
	}
	return color.RGBA{R: mix(r), G: mix(g), B: mix(b), A: alpha}
}

func centeredRect(bounds image.Rectangle, ratio float64) image.Rectangle {
	width := bounds.Dx()
	height := bounds.Dy()
	keptWidth := int(float64(width) * ratio)
	keptHeight := int(float64(height) * ratio)
	x0 := bounds.Min.X + (width-keptWidth)/2
	y0 := bounds.Min.Y + (height-keptHeight)/2
	return image.Rect(x0, y0, x0+keptWidth, y0+keptHeight)
}

// WhitenPreviewBackground cleans up a generated mannequin preview before
// upload: near-white backdrop pixels become pure white and pixels in the
// feather band between the two thresholds are blended towards white, so the
// preview sits on the app's white card without visible seams. The central
// portion of the frame, where the mannequin and the clothes are, is never
// touched; mannequinRatio sets how much of the frame that covers (0 to 1).
// Output is always PNG regardless of the model's source format.
func WhitenPreviewBackground(imageBytes []byte, featherStart, whitePoint uint8, mannequinRatio float64) ([]byte, error) {
	if featherStart >= whitePoint {
		return nil, fmt.Errorf("featherStart must be below whitePoint")
	}
	if mannequinRatio < 0.0 || mannequinRatio > 1.0 {
		return nil, fmt.Errorf("mannequinRatio must be between 0.0 and 1.0")
	}

	source, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to decode preview image: %w", err)
	}

	bounds := source.Bounds()
	protected := centeredRect(bounds, mannequinRatio)
	featherBand := float64(whitePoint - featherStart)
	cleaned := image.NewRGBA(bounds)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			pixel := source.At(x, y)
			if image.Pt(x, y).In(protected) {
				cleaned.Set(x, y, pixel)
				continue
			}

			luminance, alpha := previewLuminance(pixel)
			switch {
			case luminance <= float64(featherStart):
				// dark pixel, part of the subject spilling outside the
				// protected area
				cleaned.Set(x, y, pixel)
			case luminance >= float64(whitePoint):
				cleaned.Set(x, y, color.RGBA{R: 255, G: 255, B: 255, A: alpha})
			default:
				factor := (luminance - float64(featherStart)) / featherBand
				cleaned.Set(x, y, blendTowardsWhite(pixel, factor, alpha))
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, cleaned); err != nil {
		return nil, fmt.Errorf("failed to encode preview png: %w", err)
	}
	return buf.Bytes(), nil
}
