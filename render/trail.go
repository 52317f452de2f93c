package render

import (
	"image"
	"image/color"

	visionforge "github.com/swdee/go-visionforge"
	"gocv.io/x/gocv"
)

// TrailStyle defines the parameters used for rendering the trail style
type TrailStyle struct {
	// LineSame defines if the color of the trail line should be the
	// same color as that of the bounding box.  If set to false then use
	// the color specified at LineColor
	LineSame      bool
	LineColor     color.RGBA
	LineThickness int
	// CircleSame defines if the color of the midpoint circle should be the
	// same color as that of the bounding box.  If set to false then use
	// the color specified at CircleColor
	CircleSame   bool
	CircleColor  color.RGBA
	CircleRadius int
}

// DefaultTrailStyle returns default trail style settings
func DefaultTrailStyle() TrailStyle {
	return TrailStyle{
		LineSame:      false,
		LineColor:     Yellow,
		LineThickness: 1,
		CircleSame:    true,
		CircleColor:   Pink,
		CircleRadius:  3,
	}
}

// HistoryFunc returns the trail points of a track, such as
// VisionForge.History
type HistoryFunc func(id int64) []image.Point

// Trail draws the path each tracked object has taken on the image
func Trail(img *gocv.Mat, results []visionforge.TrackResult, history HistoryFunc,
	style TrailStyle) {

	for _, res := range results {

		objClr := trackColor(res.ID)

		// determine style colors to use
		lineClr := objClr
		circleClr := objClr

		if !style.LineSame {
			lineClr = style.LineColor
		}

		if !style.CircleSame {
			circleClr = style.CircleColor
		}

		points := history(res.ID)

		if len(points) == 0 {
			continue
		}

		for i := 1; i < len(points); i++ {
			gocv.Line(img, points[i-1], points[i], lineClr, style.LineThickness)
		}

		// center point circle on the current box
		gocv.Circle(img, points[len(points)-1], style.CircleRadius, circleClr, -1)
	}
}
