package geometry

import (
	"fmt"
	"image"
)

// Box represents an axis aligned rectangle in integer pixel coordinates with
// the origin at the top-left of the frame.  XMax and YMax are exclusive in the
// same way as image.Rectangle
type Box struct {
	XMin int
	YMin int
	XMax int
	YMax int
}

// NewBox creates a new Box with given corner coordinates
func NewBox(xMin, yMin, xMax, yMax int) Box {
	return Box{
		XMin: xMin,
		YMin: yMin,
		XMax: xMax,
		YMax: yMax,
	}
}

// FromRect converts an image.Rectangle into a Box
func FromRect(r image.Rectangle) Box {
	return Box{
		XMin: r.Min.X,
		YMin: r.Min.Y,
		XMax: r.Max.X,
		YMax: r.Max.Y,
	}
}

// Rect returns the Box as an image.Rectangle for use with gocv
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.XMin, b.YMin, b.XMax, b.YMax)
}

// Width returns the width of the box
func (b Box) Width() int {
	return b.XMax - b.XMin
}

// Height returns the height of the box
func (b Box) Height() int {
	return b.YMax - b.YMin
}

// Empty reports whether the box has zero area
func (b Box) Empty() bool {
	return b.XMax <= b.XMin || b.YMax <= b.YMin
}

// Min returns the top-left corner of the box
func (b Box) Min() image.Point {
	return image.Pt(b.XMin, b.YMin)
}

// Center returns the center point of the box
func (b Box) Center() image.Point {
	return image.Pt((b.XMin+b.XMax)/2, (b.YMin+b.YMax)/2)
}

// Add translates the box by the given point
func (b Box) Add(p image.Point) Box {
	return Box{
		XMin: b.XMin + p.X,
		YMin: b.YMin + p.Y,
		XMax: b.XMax + p.X,
		YMax: b.YMax + p.Y,
	}
}

// Contains reports whether other lies fully inside b on all four sides.
// Shared edges count as contained
func (b Box) Contains(other Box) bool {
	return other.XMin >= b.XMin && other.YMin >= b.YMin &&
		other.XMax <= b.XMax && other.YMax <= b.YMax
}

// InBounds reports whether the box lies within a frame of the given size
func (b Box) InBounds(width, height int) bool {
	return b.XMin >= 0 && b.YMin >= 0 && b.XMax <= width && b.YMax <= height &&
		b.XMin <= b.XMax && b.YMin <= b.YMax
}

// Intersect returns the largest box contained by both b and other.  If they
// do not overlap a zero area box is returned
func (b Box) Intersect(other Box) Box {
	r := b.Rect().Intersect(other.Rect())
	return FromRect(r)
}

// String returns the box as [x_min,y_min,x_max,y_max]
func (b Box) String() string {
	return fmt.Sprintf("[%d,%d,%d,%d]", b.XMin, b.YMin, b.XMax, b.YMax)
}
