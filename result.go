package visionforge

import "github.com/swdee/go-visionforge/geometry"

// TrackResult is the outcome of re-localising one track in a frame
type TrackResult struct {
	// ID is the track identity
	ID int64
	// Label is the class label of the track
	Label string
	// Box is the new location of the object in frame coordinates
	Box geometry.Box
	// DetectionBox is the box of the detection that last confirmed the
	// track
	DetectionBox geometry.Box
	// SearchBox is the clamped window the template was searched for in
	SearchBox geometry.Box
	// Correlation is the template matching score
	Correlation float64
	// HistogramDistance is the distance between the template and matched
	// region histograms
	HistogramDistance float64
	// DetectorConfidence is the detector probability of the confirming
	// detection
	DetectorConfidence float32
}
