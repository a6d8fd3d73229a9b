package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const watermarkPadding = 8

// Watermark stamps text on a translucent band in the lower right corner and
// returns the result as JPEG.
func Watermark(src []byte, text string) ([]byte, error) {
	if _, _, err := checkDecodeSize(src); err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("imaging: decode: %w", err)
	}
	b := img.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), img, b.Min, draw.Src)

	if text != "" {
		stamp(canvas, text)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("imaging: encode: %w", err)
	}
	return buf.Bytes(), nil
}

func stamp(canvas *image.RGBA, text string) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: canvas, Src: image.NewUniform(color.RGBA{255, 255, 255, 230}), Face: face}
	textW := d.MeasureString(text).Ceil()
	textH := face.Metrics().Height.Ceil()

	bounds := canvas.Bounds()
	band := image.Rect(
		bounds.Max.X-textW-2*watermarkPadding,
		bounds.Max.Y-textH-2*watermarkPadding,
		bounds.Max.X,
		bounds.Max.Y,
	).Intersect(bounds)
	if band.Empty() {
		return
	}
	draw.Draw(canvas, band, image.NewUniform(color.RGBA{0, 0, 0, 110}), image.Point{}, draw.Over)

	d.Dot = fixed.P(band.Min.X+watermarkPadding, band.Max.Y-watermarkPadding-face.Descent)
	d.DrawString(text)
}
