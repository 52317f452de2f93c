package match

import (
	"image"
	"math"
	"math/rand"
	"testing"

	"github.com/swdee/go-visionforge/geometry"
	"gocv.io/x/gocv"
)

// texture creates a rows x cols image filled with random intensities in the
// range [lo, hi].  When channels is 3 every channel holds the same value so
// the grayscale conversion is exact
func texture(t *testing.T, rng *rand.Rand, rows, cols, channels int, lo, hi int) gocv.Mat {
	t.Helper()

	data := make([]byte, rows*cols*channels)

	for i := 0; i < rows*cols; i++ {
		v := byte(lo + rng.Intn(hi-lo+1))

		for c := 0; c < channels; c++ {
			data[i*channels+c] = v
		}
	}

	mt := gocv.MatTypeCV8UC1
	if channels == 3 {
		mt = gocv.MatTypeCV8UC3
	}

	img, err := gocv.NewMatFromBytes(rows, cols, mt, data)

	if err != nil {
		t.Fatalf("failed to create Mat: %v", err)
	}

	// detach from the Go byte slice
	owned := img.Clone()
	img.Close()

	return owned
}

// invert returns 255 - img
func invert(img gocv.Mat) gocv.Mat {
	inv := gocv.NewMat()
	gocv.BitwiseNot(img, &inv)
	return inv
}

func TestMatchZeroMotion(t *testing.T) {

	rng := rand.New(rand.NewSource(7))

	window := texture(t, rng, 100, 120, 3, 0, 255)
	defer window.Close()

	crop := window.Region(image.Rect(40, 30, 80, 70))
	tmpl := crop.Clone()
	crop.Close()
	defer tmpl.Close()

	m := NewMatcher(Params{
		Method:      NormedCorrelation,
		Threshold:   0.8,
		MaxDistance: 0.1,
	})

	res := m.Match(window, tmpl)

	if !res.Accepted() {
		t.Fatalf("expected match to be accepted, got %s (corr=%f dist=%f)",
			res.Verdict, res.Correlation, res.Distance)
	}

	if res.Box != geometry.NewBox(40, 30, 80, 70) {
		t.Errorf("expected box [40,30,80,70], got %s", res.Box)
	}

	if math.Abs(res.Correlation-1.0) > 1e-3 {
		t.Errorf("expected correlation near 1, got %f", res.Correlation)
	}

	if res.Distance > 1e-6 {
		t.Errorf("expected histogram distance near 0, got %f", res.Distance)
	}
}

func TestMatchInvertedIntensityFailsHistogram(t *testing.T) {

	rng := rand.New(rand.NewSource(11))

	// dark texture inverted into a bright search window, same structure
	// but non overlapping intensity ranges
	dark := texture(t, rng, 100, 120, 1, 0, 60)
	defer dark.Close()

	window := invert(dark)
	defer window.Close()

	crop := dark.Region(image.Rect(40, 30, 80, 70))
	tmpl := crop.Clone()
	crop.Close()
	defer tmpl.Close()

	m := NewMatcher(Params{
		Method:      NormedCorrelation,
		Threshold:   0.5,
		MaxDistance: 0.1,
	})

	res := m.Match(window, tmpl)

	if res.Correlation < 0.5 {
		t.Fatalf("expected correlation gate to pass, got %f", res.Correlation)
	}

	if res.Verdict != VerdictHistogramMismatch {
		t.Errorf("expected histogram mismatch, got %s (dist=%f)", res.Verdict, res.Distance)
	}

	if res.Distance <= 0.1 {
		t.Errorf("expected histogram distance above threshold, got %f", res.Distance)
	}

	// relaxing the histogram gate beyond the largest possible distance
	// accepts the same match
	m.Params.MaxDistance = 1.5
	res = m.Match(window, tmpl)

	if !res.Accepted() {
		t.Errorf("expected match accepted with relaxed histogram gate, got %s", res.Verdict)
	}
}

func TestMatchLowCorrelation(t *testing.T) {

	rng := rand.New(rand.NewSource(3))

	window := texture(t, rng, 60, 60, 1, 0, 255)
	defer window.Close()

	tmpl := texture(t, rng, 20, 20, 1, 0, 255)
	defer tmpl.Close()

	m := NewMatcher(Params{Method: NormedCorrelation, Threshold: 1.01, MaxDistance: 2})

	res := m.Match(window, tmpl)

	if res.Verdict != VerdictLowCorrelation {
		t.Errorf("expected low correlation verdict, got %s", res.Verdict)
	}

	if res.Distance != 0 {
		t.Errorf("histogram should not be evaluated after a correlation rejection")
	}
}

func TestMatchDegenerate(t *testing.T) {

	rng := rand.New(rand.NewSource(5))

	window := texture(t, rng, 20, 20, 1, 0, 255)
	defer window.Close()

	large := texture(t, rng, 30, 30, 1, 0, 255)
	defer large.Close()

	tiny := texture(t, rng, 1, 1, 1, 0, 255)
	defer tiny.Close()

	empty := gocv.NewMat()
	defer empty.Close()

	m := NewMatcher(Params{Threshold: 0.1, MaxDistance: 0.1})

	tests := []struct {
		name     string
		window   gocv.Mat
		template gocv.Mat
	}{
		{"template larger than window", window, large},
		{"template below downsample size", window, tiny},
		{"empty window", empty, tiny},
		{"empty template", window, empty},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if res := m.Match(tc.window, tc.template); res.Verdict != VerdictDegenerate {
				t.Errorf("expected degenerate verdict, got %s", res.Verdict)
			}
		})
	}
}

func TestHistogramHelpers(t *testing.T) {

	a := make([]float64, HistogramBins)
	a[0], a[1] = 2, 2
	normalize(a)

	if a[0] != 0.5 || a[1] != 0.5 {
		t.Errorf("expected normalized bins of 0.5, got %f %f", a[0], a[1])
	}

	if d := histogramDistance(a, a); d != 0 {
		t.Errorf("expected zero distance to self, got %f", d)
	}

	p := make([]float64, HistogramBins)
	q := make([]float64, HistogramBins)
	p[10], q[200] = 1, 1

	if d := histogramDistance(p, q); math.Abs(d-math.Sqrt2) > 1e-9 {
		t.Errorf("expected distance sqrt(2) for disjoint histograms, got %f", d)
	}

	zero := make([]float64, HistogramBins)
	normalize(zero)

	if zero[0] != 0 {
		t.Errorf("empty histogram should stay zero")
	}
}

func TestParseMethod(t *testing.T) {

	m, err := ParseMethod("ccorr_normed")

	if err != nil || m != NormedCorrelation {
		t.Errorf("expected NormedCorrelation, got %v %v", m, err)
	}

	if _, err := ParseMethod("sqdiff"); err == nil {
		t.Errorf("expected error for unsupported method")
	}
}

func TestMethodText(t *testing.T) {

	text, err := NormedCorrelationCoefficient.MarshalText()

	if err != nil || string(text) != "normed_correlation_coefficient" {
		t.Fatalf("unexpected text %q %v", text, err)
	}

	var m Method

	if err := m.UnmarshalText([]byte("ccoeff_normed")); err != nil || m != NormedCorrelationCoefficient {
		t.Errorf("expected NormedCorrelationCoefficient, got %v %v", m, err)
	}

	if _, err := Method(7).MarshalText(); err == nil {
		t.Errorf("expected error for unknown method")
	}
}
