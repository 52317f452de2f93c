package visionforge

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/swdee/go-visionforge/detector"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"
)

// State is the lifecycle state of the detection scheduler
type State int32

const (
	// StateIdle is the scheduler waiting for its first frame
	StateIdle State = iota
	// StateDetecting is the scheduler running the detector and associating
	// its results
	StateDetecting
	// StatePublished is the scheduler waiting out the detection period after
	// publishing a table
	StatePublished
	// StateStopped is the scheduler having exited
	StateStopped
)

// String returns the readable name of the state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDetecting:
		return "detecting"
	case StatePublished:
		return "published"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown state %d", int32(s))
	}
}

// periodWindow is the number of recent detector timings averaged for the
// adaptive detection period
const periodWindow = 100

// periodEstimator tracks detector processing times to derive the pause
// between detection cycles.  The adaptive period is the mean of the last
// periodWindow cycles and leaves out the first cycle, which includes model
// warm up, rather than averaging every cycle since start
type periodEstimator struct {
	samples []float64
	// warm is set once the first, warm up, cycle has been discarded
	warm bool
}

// Observe records the processing time of a detection cycle
func (p *periodEstimator) Observe(d time.Duration) {

	if !p.warm {
		p.warm = true
		return
	}

	p.samples = append(p.samples, d.Seconds())

	if len(p.samples) > periodWindow {
		p.samples = p.samples[len(p.samples)-periodWindow:]
	}
}

// Period returns the pause to take before the next cycle
func (p *periodEstimator) Period(cfg Config) time.Duration {

	if !cfg.AdaptivePeriod || len(p.samples) == 0 {
		return cfg.DetectionPeriod
	}

	return time.Duration(stat.Mean(p.samples, nil) * float64(time.Second))
}

// pinThread restricts the calling OS thread to cores and returns the cores
// it is then allowed to run on
func pinThread(cores []int) ([]int, error) {

	if err := SetCPUAffinity(cores); err != nil {
		return nil, err
	}

	return GetCPUAffinity()
}

// run is the detection scheduler loop.  It repeatedly snapshots the latest
// frame, detects objects, associates them with the current tracks and
// publishes the new table until stopped
func (v *VisionForge) run() {

	defer close(v.done)

	reason := StopRequested

	defer func() {
		v.state.Store(int32(StateStopped))
		v.log.Info("Detection scheduler stopped", "reason", reason)
		v.obs.SchedulerStopped(reason)
	}()

	if cpus := v.Config().SchedulerCPUs; len(cpus) > 0 {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		if cores, err := pinThread(cpus); err != nil {
			v.log.Warn("Unable to pin detection scheduler", "cpus", cpus, "error", err)
		} else {
			v.log.Debug("Pinned detection scheduler", "cores", cores,
				"mask", fmt.Sprintf("%#x", CPUCoreMask(cores)))
		}
	}

	v.state.Store(int32(StateIdle))

	select {
	case <-v.slot.Ready():
	case <-v.stopCh:
		return
	}

	prev := gocv.NewMat()

	defer func() {
		prev.Close()
	}()

	var period periodEstimator
	var cycle int64

	for {
		if v.stopping.Load() {
			return
		}

		frame, ok := v.slot.Load()

		if !ok {
			frame.Close()
			return
		}

		cfg := v.Config()

		if cfg.StopOnStaleInput && !prev.Empty() && sameFrame(prev, frame) {
			frame.Close()
			reason = StopStaleInput
			return
		}

		v.state.Store(int32(StateDetecting))
		cycle++

		stats, err := v.detectCycle(frame, cfg, cycle)

		if err != nil {
			frame.Close()
			v.setErr(err)
			v.log.Error("Detection cycle failed", "cycle", cycle, "error", err)
			reason = StopDetectorError
			return
		}

		prev.Close()
		prev = frame

		period.Observe(stats.Duration)
		wait := period.Period(cfg)

		v.log.Info("Detection cycle completed",
			slog.Int64("cycle", cycle),
			slog.Duration("processing_time", stats.Duration),
			slog.Int("boxes", stats.Detections),
			slog.Int("tracks", stats.Tracks),
			slog.Duration("period", wait),
		)

		v.obs.DetectionCycle(stats)
		v.state.Store(int32(StatePublished))

		if !v.pause(wait) {
			return
		}
	}
}

// detectCycle runs the detector on frame, associates the detections against
// the current table and publishes the result
func (v *VisionForge) detectCycle(frame gocv.Mat, cfg Config,
	cycle int64) (CycleStats, error) {

	start := time.Now()
	dets, err := v.det.Detect(frame, cfg.DetectorConfidence)
	elapsed := time.Since(start)

	if err != nil {
		return CycleStats{}, fmt.Errorf("detection cycle failed: %w", err)
	}

	dets = filterConfidence(dets, cfg.DetectorConfidence)

	// only the scheduler swaps tables, so the loaded table stays current
	// until the Store below
	old := v.table.Load()

	if old != nil && !old.Acquire() {
		old = nil
	}

	next, assoc := v.assoc.Associate(old, dets, frame, cfg.expansion(), cycle)
	v.table.Store(next)

	if old != nil {
		old.Release()
		old.Retire()
	}

	v.readyOnce.Do(func() {
		close(v.ready)
	})

	return CycleStats{
		Cycle:      cycle,
		Duration:   elapsed,
		Detections: len(dets),
		Continued:  assoc.Continued,
		Created:    assoc.Created,
		Skipped:    assoc.Skipped,
		Tracks:     next.Len(),
	}, nil
}

// pause waits for d or until a stop is requested.  It returns false if the
// scheduler should exit
func (v *VisionForge) pause(d time.Duration) bool {

	if d <= 0 {
		return !v.stopping.Load()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-v.stopCh:
		return false
	}
}

// filterConfidence drops detections below the confidence threshold for
// detectors that do not apply it themselves
func filterConfidence(dets []detector.Detection, min float32) []detector.Detection {

	out := make([]detector.Detection, 0, len(dets))

	for _, d := range dets {
		if d.Confidence >= min {
			out = append(out, d)
		}
	}

	return out
}
