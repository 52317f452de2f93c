package render

import (
	"fmt"
	"image/color"

	visionforge "github.com/swdee/go-visionforge"
	"github.com/swdee/go-visionforge/detector"
	"gocv.io/x/gocv"
)

// BoxStyle selects which of a track result's boxes are drawn
type BoxStyle struct {
	// LineThickness of the box outlines
	LineThickness int
	// ShowDetection draws the box of the detection that last confirmed
	// the track
	ShowDetection  bool
	DetectionColor color.RGBA
	// ShowSearch draws the clamped window the template was searched in
	ShowSearch  bool
	SearchColor color.RGBA
	// ShowScores adds detector, correlation and histogram scores to the
	// labels
	ShowScores bool
}

// DefaultBoxStyle returns the style drawing all three boxes with scores
func DefaultBoxStyle() BoxStyle {
	return BoxStyle{
		LineThickness:  2,
		ShowDetection:  true,
		DetectionColor: Green,
		ShowSearch:     true,
		SearchColor:    Red,
		ShowScores:     true,
	}
}

// TrackBoxes renders the tracked box of each result, colored by identity,
// along with the optional detection and search boxes
func TrackBoxes(img *gocv.Mat, results []visionforge.TrackResult,
	font Font, style BoxStyle) {

	// keep a record of all box labels for later rendering
	labels := make([]boxLabel, 0, len(results))

	for _, res := range results {

		if style.ShowSearch {
			gocv.Rectangle(img, res.SearchBox.Rect(), style.SearchColor, style.LineThickness)
		}

		if style.ShowDetection {
			gocv.Rectangle(img, res.DetectionBox.Rect(), style.DetectionColor, style.LineThickness)
		}

		useClr := trackColor(res.ID)
		gocv.Rectangle(img, res.Box.Rect(), useClr, style.LineThickness)

		text := fmt.Sprintf("%s #%d", res.Label, res.ID)

		if style.ShowScores {
			text = fmt.Sprintf("%s H%.2f", text, res.HistogramDistance)
		}

		labels = append(labels, font.layoutLabel(text, res.Box.XMin, res.Box.XMax,
			res.Box.YMin, false, useClr, style.LineThickness))

		if !style.ShowScores {
			continue
		}

		if style.ShowDetection {
			labels = append(labels, font.layoutLabel(
				fmt.Sprintf("Y %.2f", res.DetectorConfidence),
				res.DetectionBox.XMin, res.DetectionBox.XMax, res.DetectionBox.YMax,
				true, style.DetectionColor, style.LineThickness))
		}

		if style.ShowSearch {
			labels = append(labels, font.layoutLabel(
				fmt.Sprintf("L %.2f", res.Correlation),
				res.SearchBox.XMin, res.SearchBox.XMax, res.SearchBox.YMin,
				true, style.SearchColor, style.LineThickness))
		}
	}

	font.drawLabels(img, labels)
}

// DetectionBoxes renders the raw boxes returned by a detector
func DetectionBoxes(img *gocv.Mat, dets []detector.Detection, font Font,
	lineThickness int) {

	labels := make([]boxLabel, 0, len(dets))

	for i, det := range dets {

		useClr := trackPalette[i%len(trackPalette)]
		gocv.Rectangle(img, det.Box.Rect(), useClr, lineThickness)

		text := fmt.Sprintf("%s %.2f", det.Label, det.Confidence)

		labels = append(labels, font.layoutLabel(text, det.Box.XMin, det.Box.XMax,
			det.Box.YMin, false, useClr, lineThickness))
	}

	font.drawLabels(img, labels)
}
