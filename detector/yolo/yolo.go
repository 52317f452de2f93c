// Package yolo provides a YOLOv8 object detector running an ONNX model
// through the OpenCV DNN module.
package yolo

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/swdee/go-visionforge/detector"
	"github.com/swdee/go-visionforge/preprocess"
	"gocv.io/x/gocv"
)

// padColor is the letterbox fill used when the model was trained
var padColor = color.RGBA{R: 114, G: 114, B: 114, A: 255}

// Params defines the YOLOv8 post processing parameters
type Params struct {
	// NMSThreshold is the maximum Intersection over Union allowed between
	// two boxes of the same class for both to be kept
	NMSThreshold float32
	// InputSize is the width and height of the square model input
	InputSize int
	// MaxObjects is the maximum number of detections returned per frame,
	// zero means no limit
	MaxObjects int
}

// DefaultParams returns the parameters of the standard 640x640 COCO export
func DefaultParams() Params {
	return Params{
		NMSThreshold: 0.45,
		InputSize:    640,
		MaxObjects:   64,
	}
}

// Detector runs a YOLOv8 ONNX model and implements detector.Detector
type Detector struct {
	net    gocv.Net
	labels []string
	params Params
	device Device
	// letterbox is rebuilt whenever the frame size changes
	letterbox *preprocess.Letterbox
	input     gocv.Mat
	mu        sync.Mutex
}

// New loads the ONNX model file and prepares it to run on the given device.
// labels maps class indexes to names
func New(modelFile string, labels []string, dev Device, p Params) (*Detector, error) {

	if p.InputSize <= 0 {
		return nil, fmt.Errorf("invalid input size %d", p.InputSize)
	}

	net := gocv.ReadNetFromONNX(modelFile)

	if net.Empty() {
		return nil, fmt.Errorf("error loading model file: %s", modelFile)
	}

	backend, target := dev.backend()

	if err := net.SetPreferableBackend(backend); err != nil {
		net.Close()
		return nil, fmt.Errorf("error setting %s backend: %w", dev, err)
	}

	if err := net.SetPreferableTarget(target); err != nil {
		net.Close()
		return nil, fmt.Errorf("error setting %s target: %w", dev, err)
	}

	return &Detector{
		net:    net,
		labels: labels,
		params: p,
		device: dev,
		input:  gocv.NewMat(),
	}, nil
}

// Device returns the device the model was loaded for
func (d *Detector) Device() Device {
	return d.device
}

// Detect runs the model on frame and returns the detections scoring at
// least confidence, in descending confidence order
func (d *Detector) Detect(frame gocv.Mat, confidence float32) ([]detector.Detection, error) {

	if frame.Empty() {
		return nil, errors.New("empty frame")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.letterbox == nil || !d.letterbox.Fits(frame.Cols(), frame.Rows()) {
		if d.letterbox != nil {
			d.letterbox.Close()
		}

		d.letterbox = preprocess.NewLetterbox(frame.Cols(), frame.Rows(),
			d.params.InputSize, d.params.InputSize)
	}

	d.letterbox.Resize(frame, &d.input, padColor)

	blob := gocv.BlobFromImage(d.input, 1.0/255.0,
		image.Pt(d.params.InputSize, d.params.InputSize),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")

	out := d.net.Forward("")
	defer out.Close()

	l, err := parseLayout(out.Size())

	if err != nil {
		return nil, err
	}

	data, err := out.DataPtrFloat32()

	if err != nil {
		return nil, fmt.Errorf("error reading output tensor: %w", err)
	}

	cands, err := decode(data, l, confidence)

	if err != nil {
		return nil, err
	}

	keep := suppress(cands, d.params.NMSThreshold, d.params.MaxObjects)
	dets := make([]detector.Detection, 0, len(keep))

	for _, n := range keep {
		x1 := cands.boxes[n*4+0]
		y1 := cands.boxes[n*4+1]
		x2 := x1 + cands.boxes[n*4+2]
		y2 := y1 + cands.boxes[n*4+3]

		box := d.letterbox.Unscale(x1, y1, x2, y2)

		if box.Empty() {
			continue
		}

		dets = append(dets, detector.Detection{
			Label:      detector.LabelFor(d.labels, cands.classID[n]),
			Confidence: cands.probs[n],
			Box:        box,
		})
	}

	return dets, nil
}

// Close releases the network and scratch buffers
func (d *Detector) Close() error {

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.letterbox != nil {
		d.letterbox.Close()
	}

	d.input.Close()

	return d.net.Close()
}
