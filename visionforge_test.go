package visionforge

import (
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/swdee/go-visionforge/detector"
	"github.com/swdee/go-visionforge/geometry"
	"github.com/swdee/go-visionforge/match"
	"gocv.io/x/gocv"
)

const (
	sceneRows = 260
	sceneCols = 340
	frameRows = 240
	frameCols = 320
)

// scene is a grayscale noise image larger than a frame so frames can be cut
// from it at different offsets to simulate camera motion
type scene struct {
	data []byte
}

func newScene(seed int64) *scene {

	rng := rand.New(rand.NewSource(seed))
	data := make([]byte, sceneRows*sceneCols)

	for i := range data {
		data[i] = byte(rng.Intn(256))
	}

	return &scene{data: data}
}

// frame returns a BGR frame showing the scene from offset dx, dy
func (s *scene) frame(t *testing.T, dx, dy int) gocv.Mat {
	t.Helper()

	data := make([]byte, frameRows*frameCols*3)

	for y := 0; y < frameRows; y++ {
		for x := 0; x < frameCols; x++ {
			v := s.data[(y+dy)*sceneCols+x+dx]
			i := (y*frameCols + x) * 3
			data[i], data[i+1], data[i+2] = v, v, v
		}
	}

	img, err := gocv.NewMatFromBytes(frameRows, frameCols, gocv.MatTypeCV8UC3, data)

	if err != nil {
		t.Fatalf("failed to create Mat: %v", err)
	}

	owned := img.Clone()
	img.Close()

	return owned
}

// fixedDetector always reports the given boxes
func fixedDetector(boxes ...geometry.Box) detector.Detector {
	return detector.Func(func(frame gocv.Mat, confidence float32) ([]detector.Detection, error) {

		dets := make([]detector.Detection, 0, len(boxes))

		for _, b := range boxes {
			dets = append(dets, detector.Detection{Label: "boat", Confidence: 0.9, Box: b})
		}

		return dets, nil
	})
}

// recordingObserver collects events for assertions
type recordingObserver struct {
	mu       sync.Mutex
	cycles   []CycleStats
	verdicts []match.Verdict
	reasons  []StopReason
}

func (r *recordingObserver) DetectionCycle(stats CycleStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cycles = append(r.cycles, stats)
}

func (r *recordingObserver) MatchEvaluated(v match.Verdict) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verdicts = append(r.verdicts, v)
}

func (r *recordingObserver) SchedulerStopped(reason StopReason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons = append(r.reasons, reason)
}

func (r *recordingObserver) stopReasons() []StopReason {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]StopReason(nil), r.reasons...)
}

func (r *recordingObserver) cycleStats() []CycleStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]CycleStats(nil), r.cycles...)
}

// gatedDetector reports boxes[n-1] on its nth call, repeating the last entry.
// From call block onwards each call waits until open is called, signalling
// entered on the first of them
type gatedDetector struct {
	mu       sync.Mutex
	calls    int
	block    int
	boxes    [][]geometry.Box
	entered  chan struct{}
	release  chan struct{}
	openOnce sync.Once
}

func newGatedDetector(block int, boxes ...[]geometry.Box) *gatedDetector {
	return &gatedDetector{
		block:   block,
		boxes:   boxes,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gatedDetector) Detect(frame gocv.Mat, confidence float32) ([]detector.Detection, error) {

	g.mu.Lock()
	g.calls++
	n := g.calls
	g.mu.Unlock()

	if n >= g.block {
		if n == g.block {
			close(g.entered)
		}

		<-g.release
	}

	boxes := g.boxes[min(n, len(g.boxes))-1]
	dets := make([]detector.Detection, 0, len(boxes))

	for _, b := range boxes {
		dets = append(dets, detector.Detection{Label: "boat", Confidence: 0.9, Box: b})
	}

	return dets, nil
}

func (g *gatedDetector) open() {
	g.openOnce.Do(func() {
		close(g.release)
	})
}

// waitEntered fails the test if the gated detection cycle does not start
func (g *gatedDetector) waitEntered(t *testing.T) {
	t.Helper()

	select {
	case <-g.entered:
	case <-time.After(10 * time.Second):
		t.Fatalf("detection cycle %d did not start", g.block)
	}
}

// predictWithin runs Predict and fails the test if it does not return in time
func predictWithin(t *testing.T, v *VisionForge, frame *gocv.Mat) []TrackResult {
	t.Helper()

	type outcome struct {
		res []TrackResult
		err error
	}

	out := make(chan outcome, 1)

	go func() {
		res, err := v.Predict(frame)
		out <- outcome{res, err}
	}()

	select {
	case o := <-out:
		if o.err != nil {
			t.Fatalf("unexpected error: %v", o.err)
		}
		return o.res
	case <-time.After(5 * time.Second):
		t.Fatalf("Predict blocked on the detection cycle")
	}

	return nil
}

// waitDone fails the test if the scheduler does not exit in time
func waitDone(t *testing.T, v *VisionForge) {
	t.Helper()

	select {
	case <-v.Done():
	case <-time.After(10 * time.Second):
		t.Fatalf("scheduler did not stop")
	}
}

// slowConfig returns a config where only one detection cycle runs during a
// test
func slowConfig() Config {
	cfg := DefaultConfig()
	cfg.DetectionPeriod = time.Hour
	return cfg
}

func TestPredictNilFrame(t *testing.T) {

	v, err := New(fixedDetector(), DefaultConfig())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	defer v.Close()

	res, err := v.Predict(nil)

	if !errors.Is(err, ErrFrameNotFound) {
		t.Fatalf("expected ErrFrameNotFound, got %v", err)
	}

	if res != nil {
		t.Errorf("expected no results, got %v", res)
	}

	empty := gocv.NewMat()
	defer empty.Close()

	if _, err := v.Predict(&empty); !errors.Is(err, ErrFrameNotFound) {
		t.Errorf("expected ErrFrameNotFound for empty frame, got %v", err)
	}

	waitDone(t, v)
}

func TestPredictTracksMotion(t *testing.T) {

	sc := newScene(1)
	obs := &recordingObserver{}
	box := geometry.NewBox(100, 80, 160, 130)

	v, err := New(fixedDetector(box), slowConfig(), WithObserver(obs))

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	defer v.Close()

	first := sc.frame(t, 0, 0)
	defer first.Close()

	res, err := v.Predict(&first)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res) != 1 {
		t.Fatalf("expected 1 result, got %d", len(res))
	}

	if res[0].ID != 1 || res[0].Label != "boat" {
		t.Errorf("unexpected identity %d %s", res[0].ID, res[0].Label)
	}

	if res[0].Box != box {
		t.Errorf("expected unmoved box %s, got %s", box, res[0].Box)
	}

	if res[0].Correlation < 0.99 || res[0].HistogramDistance > 1e-6 {
		t.Errorf("expected perfect match, got correlation %f distance %f",
			res[0].Correlation, res[0].HistogramDistance)
	}

	if res[0].SearchBox != geometry.NewBox(0, 0, 260, 210) {
		t.Errorf("unexpected search box %s", res[0].SearchBox)
	}

	// camera pans so the object moves up and left in the frame
	second := sc.frame(t, 6, 4)
	defer second.Close()

	res, err = v.Predict(&second)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res) != 1 {
		t.Fatalf("expected 1 result, got %d", len(res))
	}

	want := geometry.NewBox(94, 76, 154, 126)

	if res[0].Box != want {
		t.Errorf("expected box %s, got %s", want, res[0].Box)
	}

	if res[0].DetectionBox != box {
		t.Errorf("expected detection box %s, got %s", box, res[0].DetectionBox)
	}

	hist := v.History(1)

	if len(hist) != 3 {
		t.Fatalf("expected 3 trail points, got %d", len(hist))
	}

	if hist[2] != want.Center() {
		t.Errorf("expected latest trail point %v, got %v", want.Center(), hist[2])
	}

	if v.History(99) != nil {
		t.Errorf("expected no history for unknown track")
	}

	obs.mu.Lock()
	cycles := len(obs.cycles)
	verdicts := len(obs.verdicts)
	obs.mu.Unlock()

	if cycles != 1 || verdicts != 2 {
		t.Errorf("expected 1 cycle and 2 verdicts, got %d and %d", cycles, verdicts)
	}
}

func TestPredictRejectedMatchLeavesTrack(t *testing.T) {

	sc := newScene(2)
	box := geometry.NewBox(100, 80, 160, 130)

	v, err := New(fixedDetector(box), slowConfig())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	defer v.Close()

	first := sc.frame(t, 0, 0)
	defer first.Close()

	if _, err := v.Predict(&first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := v.UpdateConfig(func(c *Config) { c.MatchConfidence = 1 }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// a different scene can not reach a perfect score
	other := newScene(3).frame(t, 0, 0)
	defer other.Close()

	res, err := v.Predict(&other)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res) != 0 {
		t.Errorf("expected no results, got %v", res)
	}

	if got := len(v.History(1)); got != 2 {
		t.Errorf("rejected match should not extend the trail, got %d points", got)
	}
}

func TestStopOnStaleInput(t *testing.T) {

	obs := &recordingObserver{}
	cfg := DefaultConfig()
	cfg.StopOnStaleInput = true

	v, err := New(fixedDetector(geometry.NewBox(10, 10, 60, 60)), cfg, WithObserver(obs))

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	defer v.Close()

	frame := newScene(4).frame(t, 0, 0)
	defer frame.Close()

	if _, err := v.Predict(&frame); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waitDone(t, v)

	reasons := obs.stopReasons()

	if len(reasons) != 1 || reasons[0] != StopStaleInput {
		t.Errorf("expected stale input stop, got %v", reasons)
	}

	if v.State() != StateStopped {
		t.Errorf("expected stopped state, got %s", v.State())
	}

	// tracking continues with the last published tracks
	res, err := v.Predict(&frame)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res) != 1 {
		t.Errorf("expected tracking to continue after stop, got %d results", len(res))
	}
}

func TestStopWakesScheduler(t *testing.T) {

	obs := &recordingObserver{}

	v, err := New(fixedDetector(), slowConfig(), WithObserver(obs))

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	defer v.Close()

	frame := newScene(5).frame(t, 0, 0)
	defer frame.Close()

	if _, err := v.Predict(&frame); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	v.Stop()
	waitDone(t, v)

	reasons := obs.stopReasons()

	if len(reasons) != 1 || reasons[0] != StopRequested {
		t.Errorf("expected requested stop, got %v", reasons)
	}

	if v.Err() != nil {
		t.Errorf("expected no error, got %v", v.Err())
	}
}

func TestStopBeforeFirstPredict(t *testing.T) {

	v, err := New(fixedDetector(geometry.NewBox(10, 10, 60, 60)), DefaultConfig())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	defer v.Close()

	v.Stop()
	waitDone(t, v)

	frame := newScene(6).frame(t, 0, 0)
	defer frame.Close()

	res, err := v.Predict(&frame)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res) != 0 {
		t.Errorf("expected no results without a detection cycle, got %v", res)
	}
}

func TestDetectorErrorStopsScheduler(t *testing.T) {

	errModel := errors.New("model failure")
	obs := &recordingObserver{}

	det := detector.Func(func(frame gocv.Mat, confidence float32) ([]detector.Detection, error) {
		return nil, errModel
	})

	v, err := New(det, DefaultConfig(), WithObserver(obs))

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	defer v.Close()

	frame := newScene(7).frame(t, 0, 0)
	defer frame.Close()

	_, err = v.Predict(&frame)

	if !errors.Is(err, ErrSchedulerStopped) || !errors.Is(err, errModel) {
		t.Fatalf("expected scheduler stopped wrapping detector error, got %v", err)
	}

	if !errors.Is(v.Err(), errModel) {
		t.Errorf("expected Err to report detector error, got %v", v.Err())
	}

	reasons := obs.stopReasons()

	if len(reasons) != 1 || reasons[0] != StopDetectorError {
		t.Errorf("expected detector error stop, got %v", reasons)
	}
}

func TestPredictAfterClose(t *testing.T) {

	v, err := New(fixedDetector(), DefaultConfig())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := v.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	frame := newScene(8).frame(t, 0, 0)
	defer frame.Close()

	if _, err := v.Predict(&frame); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestLowConfidenceDetectionsDropped(t *testing.T) {

	det := detector.Func(func(frame gocv.Mat, confidence float32) ([]detector.Detection, error) {
		return []detector.Detection{
			{Label: "weak", Confidence: 0.1, Box: geometry.NewBox(10, 10, 60, 60)},
			{Label: "strong", Confidence: 0.8, Box: geometry.NewBox(100, 80, 160, 130)},
		}, nil
	})

	v, err := New(det, slowConfig())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	defer v.Close()

	frame := newScene(9).frame(t, 0, 0)
	defer frame.Close()

	res, err := v.Predict(&frame)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res) != 1 || res[0].Label != "strong" {
		t.Errorf("expected only the strong detection, got %v", res)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {

	cfg := DefaultConfig()
	cfg.HorizontalTracking = false
	cfg.VerticalTracking = false

	if _, err := New(fixedDetector(), cfg); !errors.Is(err, ErrNoTrackingAxis) {
		t.Errorf("expected ErrNoTrackingAxis, got %v", err)
	}

	if _, err := New(nil, DefaultConfig()); err == nil {
		t.Errorf("expected error for missing detector")
	}
}

func TestUpdateConfigKeepsValidConfig(t *testing.T) {

	v, err := New(fixedDetector(), DefaultConfig())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	defer v.Close()

	err = v.UpdateConfig(func(c *Config) {
		c.HorizontalTracking = false
		c.VerticalTracking = false
	})

	if !errors.Is(err, ErrNoTrackingAxis) {
		t.Fatalf("expected ErrNoTrackingAxis, got %v", err)
	}

	if !v.Config().HorizontalTracking {
		t.Errorf("invalid update should not be stored")
	}

	cfg := DefaultConfig()
	cfg.HorizontalExpansion = 40

	if err := v.SetConfig(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if v.Config().HorizontalExpansion != 40 {
		t.Errorf("expected new expansion to be stored")
	}
}

func TestWithID(t *testing.T) {

	v, err := New(fixedDetector(), DefaultConfig(), WithID("camera-1"))

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	defer v.Close()

	if v.ID() != "camera-1" {
		t.Errorf("expected custom id, got %s", v.ID())
	}

	other, err := New(fixedDetector(), DefaultConfig())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	defer other.Close()

	if other.ID() == "" || other.ID() == v.ID() {
		t.Errorf("expected a generated id, got %q", other.ID())
	}
}

func TestPredictDoesNotWaitOnDetectionCycle(t *testing.T) {

	sc := newScene(6)
	box := geometry.NewBox(100, 80, 160, 130)
	det := newGatedDetector(2, []geometry.Box{box})

	cfg := DefaultConfig()
	cfg.DetectionPeriod = 10 * time.Millisecond

	v, err := New(det, cfg)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	defer v.Close()
	defer det.open()

	frame := sc.frame(t, 0, 0)
	defer frame.Close()

	if res := predictWithin(t, v, &frame); len(res) != 1 {
		t.Fatalf("expected 1 result, got %d", len(res))
	}

	det.waitEntered(t)

	for i := 0; i < 5; i++ {
		res := predictWithin(t, v, &frame)

		if len(res) != 1 || res[0].ID != 1 {
			t.Fatalf("pass %d: expected track 1 whilst detecting, got %v", i, res)
		}
	}

	if v.State() != StateDetecting {
		t.Errorf("expected scheduler still detecting, got %s", v.State())
	}
}

func TestStopDuringCycleStillPublishes(t *testing.T) {

	sc := newScene(7)
	obs := &recordingObserver{}
	first := geometry.NewBox(100, 80, 160, 130)
	second := geometry.NewBox(220, 160, 300, 220)
	det := newGatedDetector(2, []geometry.Box{first}, []geometry.Box{first, second})

	cfg := DefaultConfig()
	cfg.HorizontalExpansion = 20
	cfg.VerticalExpansion = 20
	cfg.DetectionPeriod = 10 * time.Millisecond

	v, err := New(det, cfg, WithObserver(obs))

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	defer v.Close()
	defer det.open()

	frame := sc.frame(t, 0, 0)
	defer frame.Close()

	if res := predictWithin(t, v, &frame); len(res) != 1 {
		t.Fatalf("expected 1 result, got %d", len(res))
	}

	det.waitEntered(t)
	v.Stop()

	select {
	case <-v.Done():
		t.Fatalf("scheduler exited before the running cycle finished")
	default:
	}

	det.open()
	waitDone(t, v)

	cycles := obs.cycleStats()

	if len(cycles) != 2 {
		t.Fatalf("expected 2 published cycles, got %d", len(cycles))
	}

	if cycles[1].Continued != 1 || cycles[1].Created != 1 {
		t.Errorf("unexpected association of final cycle %+v", cycles[1])
	}

	if reasons := obs.stopReasons(); len(reasons) != 1 || reasons[0] != StopRequested {
		t.Errorf("expected StopRequested, got %v", reasons)
	}

	res := predictWithin(t, v, &frame)

	if len(res) != 2 || res[0].ID != 1 || res[1].ID != 2 {
		t.Fatalf("expected tracks 1 and 2 from the final cycle, got %v", res)
	}

	if res[1].Box != second {
		t.Errorf("expected new track at %s, got %s", second, res[1].Box)
	}
}
