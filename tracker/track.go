package tracker

import (
	"sync"

	"github.com/swdee/go-visionforge/geometry"
	"gocv.io/x/gocv"
)

// Track is a single object being followed between detection cycles
type Track struct {
	// ID is the identity of the track, stable for its whole lifetime
	ID int64
	// Label is the class label reported by the detector
	Label string
	// Confidence is the detector probability of the latest confirming
	// detection
	Confidence float32
	// Box is the current location of the object in frame coordinates.  Only
	// the tracking loop writes it, through Update
	Box geometry.Box
	// Detection is the box reported by the detection cycle that last
	// created or confirmed the track
	Detection geometry.Box
	// Template is the image patch searched for each frame.  The track owns
	// the Mat and only the tracking loop replaces it, through Update
	Template gocv.Mat
	// Trail is the history of box centers
	Trail *Trail

	// mu guards Box and Template between the tracking loop writing them and
	// the associator copying them
	mu sync.Mutex
}

// Update moves the track to box and records it on the trail.  When tmpl is
// not nil it replaces the template and the previous one is released
func (t *Track) Update(box geometry.Box, tmpl *gocv.Mat) {
	t.mu.Lock()

	t.Box = box

	if tmpl != nil {
		t.Template.Close()
		t.Template = *tmpl
	}

	t.mu.Unlock()

	t.Trail.Add(box)
}

// location returns the current box
func (t *Track) location() geometry.Box {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.Box
}

// snapshot returns the current box and a copy of the template the caller
// must close
func (t *Track) snapshot() (geometry.Box, gocv.Mat) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.Box, t.Template.Clone()
}

// Close releases the template
func (t *Track) Close() error {
	return t.Template.Close()
}
