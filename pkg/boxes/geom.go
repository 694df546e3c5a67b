// Package boxes holds the bounding box geometry shared by the labeling,
// tracking and dataset tools.
//
// Two shapes exist on purpose. A Box is (top-left, size), which is what
// visual trackers and the interactive tools work with. A Rect is
// (x1,y1,x2,y2), which is what the label files store. Coordinates are
// float32 pixels; conversion to integer image coordinates happens at the
// gocv boundary.
package boxes

import (
	"image"

	"github.com/chewxy/math32"
)

type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

func (p Point) Distance(b Point) float32 {
	return math32.Sqrt((p.X-b.X)*(p.X-b.X) + (p.Y-b.Y)*(p.Y-b.Y))
}

// Box is a bounding box as (top-left, size).
type Box struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	W float32 `json:"w"`
	H float32 `json:"h"`
}

// Rect is a bounding box as two corners (x1,y1) top-left, (x2,y2) bottom-right.
type Rect struct {
	X1 float32 `json:"x1"`
	Y1 float32 `json:"y1"`
	X2 float32 `json:"x2"`
	Y2 float32 `json:"y2"`
}

func (b Box) Rect() Rect {
	return Rect{X1: b.X, Y1: b.Y, X2: b.X + b.W, Y2: b.Y + b.H}
}

func (r Rect) Box() Box {
	return Box{X: r.X1, Y: r.Y1, W: r.X2 - r.X1, H: r.Y2 - r.Y1}
}

func (b Box) Area() float32 {
	return b.W * b.H
}

func (b Box) Center() Point {
	return Point{X: b.X + b.W/2, Y: b.Y + b.H/2}
}

// Standardize normalizes a box drawn from any two opposite corners, so that
// (X,Y) is the top-left corner and W,H are non-negative.
func (b Box) Standardize() Box {
	x1, x2 := b.X, b.X+b.W
	y1, y2 := b.Y, b.Y+b.H
	return Box{
		X: math32.Min(x1, x2),
		Y: math32.Min(y1, y2),
		W: math32.Abs(x2 - x1),
		H: math32.Abs(y2 - y1),
	}
}

// Scale inflates (sf > 1) or deflates (sf < 1) the box around its center.
func (b Box) Scale(sf float32) Box {
	c := b.Center()
	w := b.W * sf
	h := b.H * sf
	return Box{X: c.X - w/2, Y: c.Y - h/2, W: w, H: h}
}

// Clamp clips both corners into [0,width] x [0,height].
func (b Box) Clamp(width, height float32) Box {
	x1 := math32.Min(math32.Max(b.X, 0), width)
	y1 := math32.Min(math32.Max(b.Y, 0), height)
	x2 := math32.Min(math32.Max(b.X+b.W, 0), width)
	y2 := math32.Min(math32.Max(b.Y+b.H, 0), height)
	return Box{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}

// Clamp clips both corners into [0,width] x [0,height].
func (r Rect) Clamp(width, height float32) Rect {
	return Rect{
		X1: math32.Min(math32.Max(r.X1, 0), width),
		Y1: math32.Min(math32.Max(r.Y1, 0), height),
		X2: math32.Min(math32.Max(r.X2, 0), width),
		Y2: math32.Min(math32.Max(r.Y2, 0), height),
	}
}

func (b Box) Intersection(o Box) Box {
	x1 := math32.Max(b.X, o.X)
	y1 := math32.Max(b.Y, o.Y)
	x2 := math32.Min(b.X+b.W, o.X+o.W)
	y2 := math32.Min(b.Y+b.H, o.Y+o.H)
	return Box{
		X: x1,
		Y: y1,
		W: math32.Max(0, x2-x1),
		H: math32.Max(0, y2-y1),
	}
}

func (b Box) Union(o Box) Box {
	x1 := math32.Min(b.X, o.X)
	y1 := math32.Min(b.Y, o.Y)
	x2 := math32.Max(b.X+b.W, o.X+o.W)
	y2 := math32.Max(b.Y+b.H, o.Y+o.H)
	return Box{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}

// Intersection over Union
func (b Box) IOU(o Box) float32 {
	intersection := b.Intersection(o).Area()
	union := b.Area() + o.Area() - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

func (b *Box) Offset(dx, dy float32) {
	b.X += dx
	b.Y += dy
}

// ImageRect rounds the box to an image.Rectangle for gocv calls.
func (b Box) ImageRect() image.Rectangle {
	return image.Rect(round(b.X), round(b.Y), round(b.X+b.W), round(b.Y+b.H))
}

// FromImageRect converts an image.Rectangle (e.g. a tracker result) to a Box.
func FromImageRect(r image.Rectangle) Box {
	return Box{
		X: float32(r.Min.X),
		Y: float32(r.Min.Y),
		W: float32(r.Dx()),
		H: float32(r.Dy()),
	}
}

func round(v float32) int {
	return int(math32.Round(v))
}
