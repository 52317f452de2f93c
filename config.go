package visionforge

import (
	"fmt"
	"time"

	"github.com/swdee/go-visionforge/geometry"
	"github.com/swdee/go-visionforge/match"
)

// Config holds the tuning parameters of a VisionForge instance
type Config struct {
	// HorizontalTracking enables search window expansion along the x axis
	HorizontalTracking bool `json:"horizontal_tracking"`
	// VerticalTracking enables search window expansion along the y axis
	VerticalTracking bool `json:"vertical_tracking"`
	// HorizontalExpansion is the number of pixels added to each side of a
	// track box when searching
	HorizontalExpansion int `json:"horizontal_expansion"`
	// VerticalExpansion is the number of pixels added above and below a
	// track box when searching
	VerticalExpansion int `json:"vertical_expansion"`
	// DetectorConfidence is the minimum detector probability for a detection
	// to be used
	DetectorConfidence float32 `json:"detector_confidence"`
	// MatchConfidence is the minimum template matching score
	MatchConfidence float64 `json:"match_confidence"`
	// EuclideanDistance is the maximum histogram distance between a template
	// and its matched region
	EuclideanDistance float64 `json:"euclidean_distance"`
	// MatchMethod is the template matching score function
	MatchMethod match.Method `json:"match_method"`
	// StopOnStaleInput stops the scheduler when two consecutive detection
	// cycles see a pixel identical frame
	StopOnStaleInput bool `json:"stop_on_stale_input"`
	// DetectionPeriod is the pause between detection cycles
	DetectionPeriod time.Duration `json:"detection_period"`
	// AdaptivePeriod replaces DetectionPeriod with the mean detector
	// processing time
	AdaptivePeriod bool `json:"adaptive_period"`
	// SchedulerCPUs pins the scheduler goroutine's OS thread to the given
	// CPU cores, empty leaves scheduling to the OS
	SchedulerCPUs []int `json:"scheduler_cpus"`
}

// DefaultConfig returns a Config populated with standard defaults
func DefaultConfig() Config {
	return Config{
		HorizontalTracking:  true,
		VerticalTracking:    true,
		HorizontalExpansion: 100,
		VerticalExpansion:   100,
		DetectorConfidence:  0.4,
		MatchConfidence:     0.1,
		EuclideanDistance:   0.1,
		MatchMethod:         match.NormedCorrelation,
	}
}

// Validate checks the configuration values are in range
func (c Config) Validate() error {

	if !c.HorizontalTracking && !c.VerticalTracking {
		return ErrNoTrackingAxis
	}

	if c.HorizontalExpansion < 0 || c.VerticalExpansion < 0 {
		return fmt.Errorf("%w: expansion must not be negative", ErrInvalidConfig)
	}

	if c.DetectorConfidence < 0 || c.DetectorConfidence > 1 {
		return fmt.Errorf("%w: detector confidence %v out of range [0,1]",
			ErrInvalidConfig, c.DetectorConfidence)
	}

	if c.MatchConfidence < 0 || c.MatchConfidence > 1 {
		return fmt.Errorf("%w: match confidence %v out of range [0,1]",
			ErrInvalidConfig, c.MatchConfidence)
	}

	if c.EuclideanDistance < 0 {
		return fmt.Errorf("%w: euclidean distance must not be negative", ErrInvalidConfig)
	}

	if err := c.MatchMethod.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if c.DetectionPeriod < 0 {
		return fmt.Errorf("%w: detection period must not be negative", ErrInvalidConfig)
	}

	for _, cpu := range c.SchedulerCPUs {
		if cpu < 0 {
			return fmt.Errorf("%w: invalid cpu core %d", ErrInvalidConfig, cpu)
		}
	}

	return nil
}

// expansion returns the search window expansion described by the config
func (c Config) expansion() geometry.Expansion {
	return geometry.Expansion{
		Horizontal: c.HorizontalTracking,
		Vertical:   c.VerticalTracking,
		HExpand:    c.HorizontalExpansion,
		VExpand:    c.VerticalExpansion,
	}
}

// matchParams returns the matcher thresholds described by the config
func (c Config) matchParams() match.Params {
	return match.Params{
		Method:      c.MatchMethod,
		Threshold:   c.MatchConfidence,
		MaxDistance: c.EuclideanDistance,
	}
}

// clone returns a deep copy of the config
func (c Config) clone() Config {
	c.SchedulerCPUs = append([]int(nil), c.SchedulerCPUs...)
	return c
}
