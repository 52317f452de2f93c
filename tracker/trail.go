package tracker

import (
	"image"
	"sync"

	"github.com/swdee/go-visionforge/geometry"
)

// DefaultTrailSize is the number of box centers kept per track
const DefaultTrailSize = 90

// Trail keeps the most recent box center points of a single track.  It is
// carried forward when a detection cycle re-confirms the track so the history
// spans detection cycles
type Trail struct {
	// size is the maximum number of points kept
	size   int
	points []image.Point
	sync.Mutex
}

// NewTrail returns an empty trail holding up to size points
func NewTrail(size int) *Trail {

	if size < 1 {
		size = DefaultTrailSize
	}

	return &Trail{
		size:   size,
		points: make([]image.Point, 0, size),
	}
}

// Add records the center of the box, dropping the oldest point once the
// trail is full
func (t *Trail) Add(box geometry.Box) {
	t.Lock()
	defer t.Unlock()

	t.points = append(t.points, box.Center())

	if len(t.points) > t.size {
		t.points = t.points[1:]
	}
}

// Points returns a copy of the recorded points, oldest first
func (t *Trail) Points() []image.Point {
	t.Lock()
	defer t.Unlock()

	out := make([]image.Point, len(t.points))
	copy(out, t.points)

	return out
}

// Len returns the number of points recorded
func (t *Trail) Len() int {
	t.Lock()
	defer t.Unlock()

	return len(t.points)
}
