// Package draw renders the overlays the interactive tools put on frames:
// labeled boxes, corner dots for correction mode, HUD text, and the steering
// arrows of the PID demo.
package draw

import (
	"image"
	"image/color"

	"github.com/fieldvision/boxlab/pkg/boxes"
	"gocv.io/x/gocv"
)

var (
	Yellow = color.RGBA{R: 255, G: 255, B: 0}
	Green  = color.RGBA{R: 100, G: 255, B: 0}
	White  = color.RGBA{R: 255, G: 255, B: 255}
	Red    = color.RGBA{R: 255, G: 0, B: 0}
	// The HUD's muted blue, readable over most footage
	HUDColor = color.RGBA{R: 50, G: 50, B: 170}
)

// Boxes draws each box with its class name at the bottom-left corner. A nil
// box (failed tracker) is skipped. When scale != 1 the box deflated by the
// tracker scale is drawn too, in green: that inner box is what gets saved.
func Boxes(img *gocv.Mat, bxs []*boxes.Box, classes []string, scale float32) {
	for i, b := range bxs {
		if b == nil {
			continue
		}
		gocv.Rectangle(img, b.ImageRect(), Yellow, 2)
		origin := image.Pt(int(b.X), int(b.Y+b.H-5))
		gocv.PutText(img, classes[i], origin, gocv.FontHersheySimplex, 1.5, Yellow, 2)
		if scale != 1 {
			inner := b.Scale(1 / scale)
			gocv.Rectangle(img, inner.ImageRect(), Green, 2)
		}
	}
}

// Dots marks the top-left and bottom-right corners of each box, which is
// how correction mode shows which corners define a box.
func Dots(img *gocv.Mat, bxs []*boxes.Box) {
	for _, b := range bxs {
		if b == nil {
			continue
		}
		r := b.ImageRect()
		gocv.Circle(img, r.Min, 10, White, -1)
		gocv.Circle(img, r.Max, 10, White, -1)
	}
}

// HUD writes status lines down the left edge, starting at (100, 20) with
// 30 px spacing.
func HUD(img *gocv.Mat, lines []string) {
	for i, line := range lines {
		origin := image.Pt(100, 20+30*i)
		gocv.PutText(img, line, origin, gocv.FontHersheySimplex, 0.75, HUDColor, 2)
	}
}

// Label writes small annotation text at the given point (detection scores,
// aim angles).
func Label(img *gocv.Mat, text string, at image.Point, c color.RGBA) {
	gocv.PutText(img, text, at, gocv.FontHersheySimplex, 0.75, c, 2)
}

// Arrow draws a vertical steering arrow from (x, y0) to (x, y1).
func Arrow(img *gocv.Mat, x, y0, y1 int, c color.RGBA) {
	gocv.ArrowedLine(img, image.Pt(x, y0), image.Pt(x, y1), c, 3)
}

// CenterLines draws a crosshair through the full frame at the given point.
func CenterLines(img *gocv.Mat, at image.Point, c color.RGBA) {
	gocv.Line(img, image.Pt(at.X, 0), image.Pt(at.X, img.Rows()), c, 1)
	gocv.Line(img, image.Pt(0, at.Y), image.Pt(img.Cols(), at.Y), c, 1)
}
