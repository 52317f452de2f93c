package render

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Alignment positions a label relative to its box
type Alignment int

const (
	Left   Alignment = 1
	Center Alignment = 2
	Right  Alignment = 3
)

// Font defines the parameters for rendering text on an image using GoCV
type Font struct {
	Face      gocv.HersheyFont
	Scale     float64
	Color     color.RGBA
	Thickness int
	LineType  gocv.LineType
	// Padding to place around text
	LeftPad   int
	RightPad  int
	TopPad    int
	BottomPad int
	// Alignment of the text label to the bounding box
	Alignment Alignment
}

// DefaultFont returns default font settings
func DefaultFont() Font {
	return Font{
		Face:      gocv.FontHersheySimplex,
		Scale:     0.5,
		Color:     White,
		Thickness: 1,
		LineType:  gocv.LineAA,
		LeftPad:   4,
		RightPad:  4,
		TopPad:    4,
		BottomPad: 6,
		Alignment: Left,
	}
}

// boxLabel is a precalculated label drawn after all boxes so labels are the
// top most layer
type boxLabel struct {
	rect    image.Rectangle
	clr     color.RGBA
	text    string
	textPos image.Point
}

// layoutLabel positions text on a filled background sitting on the edge at
// height y of a box spanning left to right.  below places the label under y
// instead of above it
func (f Font) layoutLabel(text string, left, right, y int, below bool,
	clr color.RGBA, lineThickness int) boxLabel {

	textSize := gocv.GetTextSize(text, f.Face, f.Scale, f.Thickness)

	var centerX int

	switch f.Alignment {
	case Center:
		centerX = (left + right) / 2

	case Right:
		centerX = right - (textSize.X / 2) - f.RightPad + (lineThickness / 2)

	case Left:
		fallthrough
	default:
		centerX = left + (textSize.X / 2) + f.LeftPad - (lineThickness / 2)
	}

	height := textSize.Y + f.TopPad + f.BottomPad
	top := y - height

	if below {
		top = y
	}

	return boxLabel{
		rect: image.Rect(centerX-textSize.X/2-f.LeftPad, top,
			centerX+textSize.X/2+f.RightPad, top+height),
		clr:     clr,
		text:    text,
		textPos: image.Pt(centerX-textSize.X/2, top+height-f.BottomPad),
	}
}

// drawLabels renders the labels over the image
func (f Font) drawLabels(img *gocv.Mat, labels []boxLabel) {

	for _, l := range labels {
		// draw box text gets written on
		gocv.Rectangle(img, l.rect, l.clr, -1)

		gocv.PutTextWithParams(img, l.text, l.textPos,
			f.Face, f.Scale, f.Color, f.Thickness, f.LineType, false)
	}
}
