// Package detector defines the object detection capability consumed by the
// tracker.  Implementations run a full frame detector and report labelled
// bounding boxes.
package detector

import (
	"github.com/swdee/go-visionforge/geometry"
	"gocv.io/x/gocv"
)

// Detection is a single object found in a frame
type Detection struct {
	// Label is the class name of the object
	Label string
	// Confidence is the detector probability in the range [0,1]
	Confidence float32
	// Box is the location of the object in frame coordinates
	Box geometry.Box
}

// Detector finds objects in a frame.  Detections scoring below confidence
// are not returned.  The order of the returned detections is up to the
// implementation
type Detector interface {
	Detect(frame gocv.Mat, confidence float32) ([]Detection, error)
}

// Func adapts a plain function to the Detector interface
type Func func(frame gocv.Mat, confidence float32) ([]Detection, error)

// Detect calls f
func (f Func) Detect(frame gocv.Mat, confidence float32) ([]Detection, error) {
	return f(frame, confidence)
}
