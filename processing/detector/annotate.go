package detector

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"roadvision/internal/models"
)

const boxThickness = 3

var (
	boxColor   = color.RGBA{0, 255, 0, 255}
	labelColor = color.RGBA{0, 0, 0, 255}
)

// Annotate draws every detection onto a copy of img. The input is never
// modified.
func Annotate(img image.Image, dets []models.DetectionResult) *image.RGBA {
	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, img, bounds.Min, draw.Src)

	for _, res := range dets {
		box, ok := res.Pixels(bounds)
		if !ok {
			continue
		}
		drawRect(out, box.Y1, box.X1, box.Y2, box.X2, boxColor)
		drawLabel(out, box.X1, box.Y1, fmt.Sprintf("%s %.2f", res.Label, res.Confidence))
	}

	return out
}

func drawRect(img *image.RGBA, y1, x1, y2, x2 int, col color.Color) {
	bounds := img.Bounds()

	setPixel := func(x, y int) {
		if x >= bounds.Min.X && x < bounds.Max.X && y >= bounds.Min.Y && y < bounds.Max.Y {
			img.Set(x, y, col)
		}
	}

	for t := 0; t < boxThickness; t++ {
		for x := x1; x <= x2; x++ {
			setPixel(x, y1+t)
			setPixel(x, y2-t)
		}
		for y := y1; y <= y2; y++ {
			setPixel(x1+t, y)
			setPixel(x2-t, y)
		}
	}
}

// drawLabel puts the caption on a filled strip just above the box, or just
// inside it when the box touches the top edge.
func drawLabel(img *image.RGBA, x, y int, text string) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: img, Src: image.NewUniform(labelColor), Face: face}

	width := d.MeasureString(text).Ceil() + 4
	height := face.Metrics().Height.Ceil() + 2

	top := y - height
	if top < img.Bounds().Min.Y {
		top = y
	}

	strip := image.Rect(x, top, x+width, top+height).Intersect(img.Bounds())
	draw.Draw(img, strip, image.NewUniform(boxColor), image.Point{}, draw.Src)

	d.Dot = fixed.Point26_6{
		X: fixed.I(x + 2),
		Y: fixed.I(top) + face.Metrics().Ascent + fixed.I(1),
	}
	d.DrawString(text)
}
