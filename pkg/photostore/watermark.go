package photostore

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// applyWatermark renders text with the 7x13 bitmap face, scales the label to
// about a quarter of the photo width and blends it into the bottom-right corner.
func applyWatermark(img image.Image, text string) *image.NRGBA {
	face := basicfont.Face7x13
	textW := font.MeasureString(face, text).Ceil()
	if textW == 0 {
		return imaging.Clone(img)
	}
	pad := 2
	label := image.NewNRGBA(image.Rect(0, 0, textW+2*pad, face.Height+2*pad))
	draw.Draw(label, label.Bounds(), &image.Uniform{C: color.NRGBA{0, 0, 0, 96}}, image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  label,
		Src:  image.NewUniform(color.NRGBA{255, 255, 255, 255}),
		Face: face,
		Dot:  fixed.P(pad, pad+face.Ascent),
	}
	d.DrawString(text)

	b := img.Bounds()
	targetW := b.Dx() / 4
	if targetW < label.Bounds().Dx() {
		targetW = label.Bounds().Dx()
	}
	if targetW > b.Dx() {
		targetW = b.Dx()
	}
	scaled := imaging.Resize(label, targetW, 0, imaging.NearestNeighbor)

	margin := b.Dx() / 50
	pos := image.Pt(
		b.Min.X+b.Dx()-scaled.Bounds().Dx()-margin,
		b.Min.Y+b.Dy()-scaled.Bounds().Dy()-margin,
	)
	return imaging.Overlay(img, scaled, pos, 0.5)
}
