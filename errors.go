package visionforge

import "errors"

var (
	// ErrFrameNotFound is returned by Predict when given a nil or empty
	// frame, it also signals the end of the stream to the scheduler
	ErrFrameNotFound = errors.New("frame not found")
	// ErrNoTrackingAxis is returned when neither horizontal nor vertical
	// tracking is enabled
	ErrNoTrackingAxis = errors.New("at least one tracking axis must be enabled")
	// ErrInvalidConfig is returned for out of range configuration values
	ErrInvalidConfig = errors.New("invalid config")
	// ErrSchedulerStopped is returned when the detection scheduler exited
	// before publishing its first set of tracks
	ErrSchedulerStopped = errors.New("detection scheduler stopped")
	// ErrClosed is returned by Predict after Close
	ErrClosed = errors.New("visionforge closed")
)
