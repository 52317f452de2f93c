package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	visionforge "github.com/swdee/go-visionforge"
	"github.com/swdee/go-visionforge/config"
	"github.com/swdee/go-visionforge/detector"
	"github.com/swdee/go-visionforge/detector/yolo"
	"github.com/swdee/go-visionforge/logger"
	"github.com/swdee/go-visionforge/metrics"
	"github.com/swdee/go-visionforge/recorder"
	"github.com/swdee/go-visionforge/render"
	"github.com/swdee/go-visionforge/tracker"
	"gocv.io/x/gocv"
)

const (
	// defaultMaxWidth and defaultMaxHeight cap the capture resolution
	defaultMaxWidth  = 1024
	defaultMaxHeight = 768
)

// Demo holds the collaborators of a tracking run
type Demo struct {
	vf      *visionforge.VisionForge
	det     *yolo.Detector
	met     *metrics.Metrics
	rec     *recorder.Recorder
	session string
	hub     *frameHub
	writer  *gocv.VideoWriter
	window  *gocv.Window
	log     *slog.Logger
	font    render.Font
	boxes   render.BoxStyle
	trail   render.TrailStyle
	// limitObjs restricts tracking to the given labels
	limitObjs map[string]bool
	// tap holds the latest raw detections when they are drawn
	tap *detectionTap
}

// detectionTap wraps a detector keeping a copy of the most recent detections
// so the annotated output can show what the detector saw
type detectionTap struct {
	det  detector.Detector
	mu   sync.Mutex
	last []detector.Detection
}

// Detect runs the wrapped detector and stores its result
func (t *detectionTap) Detect(frame gocv.Mat, confidence float32) ([]detector.Detection, error) {

	dets, err := t.det.Detect(frame, confidence)

	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.last = append(t.last[:0], dets...)
	t.mu.Unlock()

	return dets, nil
}

// Last returns a copy of the most recent detections
func (t *detectionTap) Last() []detector.Detection {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]detector.Detection(nil), t.last...)
}

// limitDetector wraps a detector dropping detections whose label is not in
// the allow list
func limitDetector(det detector.Detector, allow map[string]bool) detector.Detector {

	if len(allow) == 0 {
		return det
	}

	return detector.Func(func(frame gocv.Mat, confidence float32) ([]detector.Detection, error) {

		dets, err := det.Detect(frame, confidence)

		if err != nil {
			return nil, err
		}

		out := dets[:0]

		for _, d := range dets {
			if allow[d.Label] {
				out = append(out, d)
			}
		}

		return out, nil
	})
}

// parseLimit converts a comma delimited list of labels into a set,
// ignoring labels the model does not know
func parseLimit(lim string, labels []string) map[string]bool {

	known := make(map[string]bool, len(labels))

	for _, l := range labels {
		known[l] = true
	}

	out := make(map[string]bool)

	for _, word := range strings.Split(lim, ",") {
		trimmed := strings.TrimSpace(word)

		if known[trimmed] {
			out[trimmed] = true
		}
	}

	return out
}

// openCapture opens a camera when source is a device number, otherwise a
// video file or stream URL
func openCapture(source string) (*gocv.VideoCapture, error) {

	if dev, err := strconv.Atoi(source); err == nil {
		return gocv.OpenVideoCapture(dev)
	}

	return gocv.VideoCaptureFile(source)
}

// exceedsResolution reports if a width x height source is larger than the
// maximum resolution on either axis
func exceedsResolution(width, height, maxWidth, maxHeight int) bool {
	return width > maxWidth || height > maxHeight
}

// limitResolution asks the capture device to deliver frames no larger than
// maxWidth x maxHeight.  Sources that cannot rescale keep their size
func limitResolution(capture *gocv.VideoCapture, maxWidth, maxHeight int,
	log *slog.Logger) {

	width := int(capture.Get(gocv.VideoCaptureFrameWidth))
	height := int(capture.Get(gocv.VideoCaptureFrameHeight))

	log.Info("Video source resolution", "width", width, "height", height)

	if !exceedsResolution(width, height, maxWidth, maxHeight) {
		return
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(maxWidth))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(maxHeight))

	log.Info(fmt.Sprintf("Resolution adjusted to: %dx%d", maxWidth, maxHeight))
}

// Run reads frames from capture until the stream ends or ctx is cancelled
func (d *Demo) Run(ctx context.Context, capture *gocv.VideoCapture) error {

	frame := gocv.NewMat()
	defer frame.Close()

	annotated := gocv.NewMat()
	defer annotated.Close()

	frameNum := int64(0)
	frameCount := 0
	fps := float64(0)
	startTime := time.Now()

	for {
		if ctx.Err() != nil {
			d.log.Info("Interrupted, stopping tracker")
			d.vf.Stop()
			return nil
		}

		if ok := capture.Read(&frame); !ok || frame.Empty() {
			// end of stream, tells the tracker to stop detecting
			_, err := d.vf.Predict(nil)

			if errors.Is(err, visionforge.ErrFrameNotFound) {
				d.log.Info("End of video stream", "frames", frameNum)
				return nil
			}

			return err
		}

		frameNum++
		procStart := time.Now()

		results, err := d.vf.Predict(&frame)

		if err != nil {
			return fmt.Errorf("tracking failed on frame %d: %w", frameNum, err)
		}

		trackTime := time.Since(procStart)

		if d.met != nil {
			d.met.IncFrames()
		}

		if d.rec != nil {
			if err := d.rec.Record(d.session, frameNum, results); err != nil {
				d.log.Warn("Failed to record frame", "frame", frameNum, "error", err)
			}
		}

		frameCount++
		elapsed := time.Since(startTime).Seconds()

		if elapsed >= 1.0 {
			fps = float64(frameCount) / elapsed
			frameCount = 0
			startTime = time.Now()
		}

		if d.writer == nil && d.window == nil && !d.hub.active() {
			continue
		}

		frame.CopyTo(&annotated)
		d.annotate(&annotated, results, frameNum, fps, trackTime)

		if d.writer != nil {
			if err := d.writer.Write(annotated); err != nil {
				return fmt.Errorf("error writing output video: %w", err)
			}
		}

		if d.window != nil {
			d.window.IMShow(annotated)

			if d.window.WaitKey(1) == 'q' {
				d.log.Info("Quit requested")
				d.vf.Stop()
				return nil
			}
		}

		if d.hub.active() {
			buf, err := gocv.IMEncode(gocv.JPEGFileExt, annotated)

			if err != nil {
				d.log.Warn("Failed to encode frame", "error", err)
				continue
			}

			// copy out of C memory before handing to clients
			d.hub.publish(append([]byte(nil), buf.GetBytes()...))
			buf.Close()
		}
	}
}

// annotate draws the tracking results and statistics on img
func (d *Demo) annotate(img *gocv.Mat, results []visionforge.TrackResult,
	frameNum int64, fps float64, trackTime time.Duration) {

	if d.tap != nil {
		render.DetectionBoxes(img, d.tap.Last(), d.font, 1)
	}

	render.TrackBoxes(img, results, d.font, d.boxes)
	render.Trail(img, results, d.vf.History, d.trail)

	// blank out background video
	gocv.Rectangle(img, image.Rect(0, 0, img.Cols(), 20), render.Black, -1)

	gocv.PutTextWithParams(img,
		fmt.Sprintf("Frame: %d, FPS: %.2f, Tracking: %.2fms, Objects: %d, Scheduler: %s",
			frameNum, fps, float32(trackTime)/float32(time.Millisecond),
			len(results), d.vf.State()),
		image.Pt(4, 14), gocv.FontHersheySimplex, 0.5, render.Pink, 1,
		gocv.LineAA, false)
}

// serve runs the HTTP server exposing /stream and /metrics until ctx ends
func serve(ctx context.Context, addr string, hub *frameHub, met *metrics.Metrics,
	shutdownTimeout time.Duration, log *slog.Logger) {

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/stream", streamHandler(hub, log))
	r.Handle("/metrics", met.Handler())

	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		<-ctx.Done()

		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		srv.Shutdown(shutCtx)
	}()

	log.Info(fmt.Sprintf("Open browser and view video at http://%s/stream", addr))

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
	}
}

func main() {
	// disable logging timestamps
	log.SetFlags(0)

	// read in cli flags
	modelFile := flag.String("m", "../data/yolov8s.onnx", "ONNX exported YOLOv8 model file")
	labelFile := flag.String("l", "../data/coco_80_labels_list.txt", "Text file containing model labels")
	vidFile := flag.String("v", "../data/boats.mp4", "Video file, stream URL or camera number to track objects in")
	device := flag.String("d", "cpu", "Device to run the detector on [cpu|cuda]")
	outFile := flag.String("o", "", "Write the annotated video to this file")
	showWindow := flag.Bool("w", false, "Show the annotated video in a window, press q to quit")
	httpAddr := flag.String("a", "", "HTTP address serving /stream and /metrics, format address:port")
	recordFile := flag.String("r", "", "SQLite database to record tracking results to")
	envFile := flag.String("e", ".env", "Environment file holding VF_* tracker settings")
	limitLabels := flag.String("x", "", "Comma delimited list of labels to restrict object tracking to")
	showDets := flag.Bool("b", false, "Draw the raw detector boxes as well as the tracked boxes")
	maxWidth := flag.Int("maxw", defaultMaxWidth, "Maximum capture width, larger sources are scaled down")
	maxHeight := flag.Int("maxh", defaultMaxHeight, "Maximum capture height, larger sources are scaled down")

	flag.Parse()

	// a missing env file falls back to the process environment
	_ = config.Load(*envFile)

	lg := logger.New(config.GetEnv("LOG_LEVEL", "info"), config.GetEnv("LOG_FORMAT", "text"))

	cfg, err := config.Apply(visionforge.DefaultConfig())

	if err != nil {
		log.Fatalf("Invalid tracker configuration: %v", err)
	}

	*showWindow = *showWindow || config.GetEnvBool(config.EnvShowWindow, false)

	params := yolo.DefaultParams()
	params.NMSThreshold = float32(config.GetEnvFloat(config.EnvNMSThreshold,
		float64(params.NMSThreshold)))

	dev, err := yolo.ParseDevice(*device)

	if err != nil {
		log.Fatalf("Invalid device: %v", err)
	}

	labels, err := detector.LoadLabels(*labelFile)

	if err != nil {
		log.Fatalf("Error loading model labels: %v", err)
	}

	det, err := yolo.New(*modelFile, labels, dev, params)

	if err != nil {
		log.Fatalf("Error loading detector: %v", err)
	}

	defer det.Close()

	id := uuid.NewString()
	met := metrics.New(id)

	d := &Demo{
		det:   det,
		met:   met,
		hub:   newFrameHub(),
		log:   lg,
		font:  render.DefaultFont(),
		boxes: render.DefaultBoxStyle(),
		trail: render.DefaultTrailStyle(),
	}

	if *limitLabels != "" {
		d.limitObjs = parseLimit(*limitLabels, labels)
		lg.Info("Limiting object tracking", "labels", *limitLabels)
	}

	tracked := limitDetector(det, d.limitObjs)

	if *showDets {
		d.tap = &detectionTap{det: tracked}
		tracked = d.tap
	}

	d.vf, err = visionforge.New(tracked, cfg,
		visionforge.WithID(id),
		visionforge.WithTrailSize(config.GetEnvInt(config.EnvTrailSize, tracker.DefaultTrailSize)),
		visionforge.WithLogger(lg),
		visionforge.WithObserver(met),
	)

	if err != nil {
		log.Fatalf("Error creating tracker: %v", err)
	}

	defer d.vf.Close()

	capture, err := openCapture(*vidFile)

	if err != nil {
		log.Fatalf("Error opening video source: %v", err)
	}

	defer capture.Close()

	limitResolution(capture, *maxWidth, *maxHeight, lg)

	if *outFile != "" {
		width := int(capture.Get(gocv.VideoCaptureFrameWidth))
		height := int(capture.Get(gocv.VideoCaptureFrameHeight))
		fps := capture.Get(gocv.VideoCaptureFPS)

		if fps <= 0 {
			fps = 30
		}

		d.writer, err = gocv.VideoWriterFile(*outFile, "mp4v", fps, width, height, true)

		if err != nil {
			log.Fatalf("Error creating output video: %v", err)
		}

		defer d.writer.Close()
	}

	if *showWindow {
		d.window = gocv.NewWindow("VisionForge")
		defer d.window.Close()
	}

	if *recordFile != "" {
		d.rec, err = recorder.Open(*recordFile)

		if err != nil {
			log.Fatalf("Error opening recorder: %v", err)
		}

		defer d.rec.Close()

		d.session, err = d.rec.StartSession(id, *vidFile)

		if err != nil {
			log.Fatalf("Error starting recording session: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *httpAddr != "" {
		go serve(ctx, *httpAddr, d.hub, met,
			config.GetEnvDuration(config.EnvShutdownTimeout, 5*time.Second), lg)
	}

	lg.Info("Tracking started",
		"source", *vidFile,
		"device", dev.String(),
		"match_method", cfg.MatchMethod.String(),
	)

	start := time.Now()
	runErr := d.Run(ctx, capture)

	d.vf.Wait()

	if d.rec != nil {
		frames := int64(capture.Get(gocv.VideoCapturePosFrames))

		if err := d.rec.EndSession(d.session, frames); err != nil {
			lg.Warn("Failed to close recording session", "error", err)
		}
	}

	if runErr != nil {
		lg.Error("Tracking failed", "error", runErr)
	}

	if err := d.vf.Err(); err != nil {
		lg.Error("Detection scheduler failed", "error", err)
	}

	lg.Info("Tracking finished", "duration", time.Since(start))
}
