package visionforge

import (
	"bytes"
	"sync"

	"gocv.io/x/gocv"
)

// frameSlot holds the most recent frame handed to Predict for the
// detection scheduler to pick up.  Both sides work on their own copies
type frameSlot struct {
	mu    sync.Mutex
	frame gocv.Mat
	set   bool
	// ready is closed when the first frame is stored
	ready chan struct{}
}

// newFrameSlot returns an empty slot
func newFrameSlot() *frameSlot {
	return &frameSlot{
		frame: gocv.NewMat(),
		ready: make(chan struct{}),
	}
}

// Store replaces the slot contents with a copy of frame
func (s *frameSlot) Store(frame gocv.Mat) {

	cp := frame.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.frame.Close()
	s.frame = cp

	if !s.set {
		s.set = true
		close(s.ready)
	}
}

// Load returns a copy of the latest frame which the caller must close.  The
// bool result is false if no frame has been stored yet
func (s *frameSlot) Load() (gocv.Mat, bool) {

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.set {
		return gocv.NewMat(), false
	}

	return s.frame.Clone(), true
}

// Ready returns a channel closed once the first frame has been stored
func (s *frameSlot) Ready() <-chan struct{} {
	return s.ready
}

// Close releases the stored frame
func (s *frameSlot) Close() error {

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.frame.Close()
}

// sameFrame reports if two frames are pixel identical
func sameFrame(a, b gocv.Mat) bool {

	if a.Rows() != b.Rows() || a.Cols() != b.Cols() || a.Type() != b.Type() {
		return false
	}

	return bytes.Equal(a.ToBytes(), b.ToBytes())
}
