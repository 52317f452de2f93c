package visionforge

import (
	"fmt"
	"time"

	"github.com/swdee/go-visionforge/match"
)

// StopReason describes why the detection scheduler exited
type StopReason int

const (
	// StopRequested is a stop through Stop, Close or the end of the stream
	StopRequested StopReason = iota
	// StopStaleInput is a stop because the frame did not change between
	// two detection cycles
	StopStaleInput
	// StopDetectorError is a stop caused by a failed detection
	StopDetectorError
)

// String returns the readable name of the reason
func (r StopReason) String() string {
	switch r {
	case StopRequested:
		return "requested"
	case StopStaleInput:
		return "stale_input"
	case StopDetectorError:
		return "detector_error"
	default:
		return fmt.Sprintf("unknown reason %d", int(r))
	}
}

// CycleStats summarises a completed detection cycle
type CycleStats struct {
	// Cycle is the detection cycle number, starting at 1
	Cycle int64
	// Duration is the time spent in the detector
	Duration time.Duration
	// Detections is the number of detections returned
	Detections int
	// Continued is the number of detections that continued a previous track
	Continued int
	// Created is the number of new tracks
	Created int
	// Skipped is the number of detections dropped for lying outside the frame
	Skipped int
	// Tracks is the number of tracks in the published table
	Tracks int
}

// Observer receives events from a VisionForge instance.  Methods are called
// from the scheduler goroutine and the goroutine calling Predict so
// implementations must be safe for concurrent use
type Observer interface {
	// DetectionCycle is called after each published detection cycle
	DetectionCycle(stats CycleStats)
	// MatchEvaluated is called for every track matched during Predict
	MatchEvaluated(verdict match.Verdict)
	// SchedulerStopped is called once when the scheduler exits
	SchedulerStopped(reason StopReason)
}

// nopObserver discards all events
type nopObserver struct{}

func (nopObserver) DetectionCycle(CycleStats)    {}
func (nopObserver) MatchEvaluated(match.Verdict) {}
func (nopObserver) SchedulerStopped(StopReason)  {}
