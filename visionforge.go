package visionforge

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/swdee/go-visionforge/detector"
	"github.com/swdee/go-visionforge/match"
	"github.com/swdee/go-visionforge/preprocess"
	"github.com/swdee/go-visionforge/tracker"
	"gocv.io/x/gocv"
)

// VisionForge tracks detected objects across the frames of a video stream.
// Each instance owns its detection scheduler, tracks and identity space so
// several instances may run side by side
type VisionForge struct {
	id  string
	det detector.Detector
	log *slog.Logger
	obs Observer

	cfgMu sync.RWMutex
	cfg   Config

	slot      *frameSlot
	table     atomic.Pointer[tracker.Table]
	assoc     *tracker.Associator
	trailSize int

	state    atomic.Int32
	stopping atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
	// ready is closed after the first published detection cycle
	ready     chan struct{}
	readyOnce sync.Once
	// done is closed when the scheduler exits, or straight away if it was
	// stopped before being started
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
	closed    atomic.Bool

	errMu sync.Mutex
	err   error
}

// Option configures a VisionForge instance
type Option func(*VisionForge)

// WithLogger sets the structured logger, defaults to slog.Default
func WithLogger(l *slog.Logger) Option {
	return func(v *VisionForge) {
		v.log = l
	}
}

// WithObserver sets the receiver of detection and matching events
func WithObserver(o Observer) Option {
	return func(v *VisionForge) {
		v.obs = o
	}
}

// WithID sets the instance identifier used in logs instead of a generated
// UUID
func WithID(id string) Option {
	return func(v *VisionForge) {
		v.id = id
	}
}

// WithTrailSize sets the number of box centers kept in each track's history
func WithTrailSize(n int) Option {
	return func(v *VisionForge) {
		v.trailSize = n
	}
}

// New returns a VisionForge running detections with det.  The detection
// scheduler is started by the first call to Predict
func New(det detector.Detector, cfg Config, opts ...Option) (*VisionForge, error) {

	if det == nil {
		return nil, errors.New("detector is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	v := &VisionForge{
		id:        uuid.NewString(),
		det:       det,
		obs:       nopObserver{},
		cfg:       cfg.clone(),
		slot:      newFrameSlot(),
		trailSize: tracker.DefaultTrailSize,
		stopCh:    make(chan struct{}),
		ready:     make(chan struct{}),
		done:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(v)
	}

	if v.log == nil {
		v.log = slog.Default()
	}

	if v.obs == nil {
		v.obs = nopObserver{}
	}

	v.log = v.log.With("instance", v.id)
	v.assoc = tracker.NewAssociator(tracker.NewIDGenerator(), v.trailSize)

	return v, nil
}

// ID returns the unique identifier of the instance
func (v *VisionForge) ID() string {
	return v.id
}

// Config returns a copy of the current configuration
func (v *VisionForge) Config() Config {
	v.cfgMu.RLock()
	defer v.cfgMu.RUnlock()

	return v.cfg.clone()
}

// SetConfig replaces the configuration.  Changes apply from the next
// detection cycle or Predict call
func (v *VisionForge) SetConfig(cfg Config) error {

	if err := cfg.Validate(); err != nil {
		return err
	}

	v.cfgMu.Lock()
	defer v.cfgMu.Unlock()

	v.cfg = cfg.clone()
	return nil
}

// UpdateConfig applies fn to a copy of the configuration and stores the
// result if it is valid
func (v *VisionForge) UpdateConfig(fn func(*Config)) error {

	v.cfgMu.Lock()
	defer v.cfgMu.Unlock()

	cfg := v.cfg.clone()
	fn(&cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}

	v.cfg = cfg
	return nil
}

// State returns the current state of the detection scheduler
func (v *VisionForge) State() State {
	return State(v.state.Load())
}

// Predict re-localises every current track in frame and returns the tracks
// that were found.  The first call starts the detection scheduler and blocks
// until the first detection cycle has been published.
//
// A nil or empty frame marks the end of the stream, ErrFrameNotFound is
// returned and the scheduler is asked to stop.  Predict must not be called
// concurrently or after Close
func (v *VisionForge) Predict(frame *gocv.Mat) ([]TrackResult, error) {

	if v.closed.Load() {
		return nil, ErrClosed
	}

	if frame == nil || frame.Empty() {
		v.Stop()
		return nil, ErrFrameNotFound
	}

	v.slot.Store(*frame)

	if err := v.bootstrap(); err != nil {
		return nil, err
	}

	return v.track(*frame), nil
}

// bootstrap starts the scheduler on first use and waits for its first
// published table
func (v *VisionForge) bootstrap() error {

	v.startOnce.Do(func() {
		v.log.Info("Starting detection scheduler")
		go v.run()
	})

	select {
	case <-v.ready:
		return nil
	case <-v.done:
	}

	// the scheduler may have published before exiting
	select {
	case <-v.ready:
		return nil
	default:
	}

	if err := v.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrSchedulerStopped, err)
	}

	return nil
}

// acquireTable returns the current table held for a tracking pass, or nil
// if nothing has been published.  It only retries when the scheduler retires
// the table between the load and the Acquire
func (v *VisionForge) acquireTable() *tracker.Table {

	for {
		tbl := v.table.Load()

		if tbl == nil {
			return nil
		}

		if tbl.Acquire() {
			return tbl
		}
	}
}

// track runs one tracking pass over the current table
func (v *VisionForge) track(frame gocv.Mat) []TrackResult {

	tbl := v.acquireTable()

	if tbl == nil {
		return nil
	}

	defer tbl.Release()

	cfg := v.Config()
	exp := cfg.expansion()
	matcher := match.NewMatcher(cfg.matchParams())

	results := make([]TrackResult, 0, tbl.Len())

	// Box and Template are only written by this loop so they are read
	// without the track lock
	for _, trk := range tbl.Tracks() {

		region := preprocess.NewSearchRegion(frame, trk.Box, trk.Template, exp)
		m := matcher.Match(region.Window, region.Template)

		v.obs.MatchEvaluated(m.Verdict)

		if !m.Accepted() {
			region.Close()
			continue
		}

		box := m.Box.Add(region.Bounds.Min())

		var tmpl *gocv.Mat

		if region.Trimmed {
			trimmed := region.Template.Clone()
			tmpl = &trimmed
		}

		region.Close()
		trk.Update(box, tmpl)

		results = append(results, TrackResult{
			ID:                 trk.ID,
			Label:              trk.Label,
			Box:                box,
			DetectionBox:       trk.Detection,
			SearchBox:          region.Bounds,
			Correlation:        m.Correlation,
			HistogramDistance:  m.Distance,
			DetectorConfidence: trk.Confidence,
		})
	}

	return results
}

// History returns the recent box centers of the track with the given
// identity, oldest first
func (v *VisionForge) History(id int64) []image.Point {

	tbl := v.acquireTable()

	if tbl == nil {
		return nil
	}

	defer tbl.Release()

	trk, ok := tbl.Get(id)

	if !ok {
		return nil
	}

	return trk.Trail.Points()
}

// Err returns the error that stopped the detection scheduler, if any
func (v *VisionForge) Err() error {
	v.errMu.Lock()
	defer v.errMu.Unlock()

	return v.err
}

// setErr records the scheduler failure
func (v *VisionForge) setErr(err error) {
	v.errMu.Lock()
	defer v.errMu.Unlock()

	v.err = err
}

// Stop asks the detection scheduler to exit.  A cycle in progress is allowed
// to finish and publish its result.  Tracking with the last published table
// continues to work after a stop
func (v *VisionForge) Stop() {

	v.stopOnce.Do(func() {
		v.stopping.Store(true)
		close(v.stopCh)
	})

	// never start a scheduler once stopped
	v.startOnce.Do(func() {
		v.state.Store(int32(StateStopped))
		close(v.done)
	})
}

// Wait blocks until the detection scheduler has exited
func (v *VisionForge) Wait() {
	<-v.done
}

// Done returns a channel that is closed when the detection scheduler exits
func (v *VisionForge) Done() <-chan struct{} {
	return v.done
}

// Close stops the scheduler, waits for it to exit and releases all tracks
// and frames
func (v *VisionForge) Close() error {

	v.Stop()
	v.Wait()

	v.closeOnce.Do(func() {
		v.closed.Store(true)

		if tbl := v.table.Swap(nil); tbl != nil {
			tbl.Retire()
		}

		v.slot.Close()
	})

	return nil
}
