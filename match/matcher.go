package match

import (
	"fmt"
	"image"

	"github.com/swdee/go-visionforge/geometry"
	"gocv.io/x/gocv"
)

// scaleFactor is the integer factor both images are downsampled by before
// running template matching
const scaleFactor = 2

// Verdict describes the outcome of a match attempt
type Verdict int

const (
	// VerdictAccepted is a match that passed both the correlation and
	// histogram gates
	VerdictAccepted Verdict = iota
	// VerdictLowCorrelation is a match whose score was below the threshold
	VerdictLowCorrelation
	// VerdictHistogramMismatch is a match whose intensity histogram was too
	// far from the template
	VerdictHistogramMismatch
	// VerdictDegenerate is returned when the window or template is too small
	// to be matched
	VerdictDegenerate
)

// String returns the readable name of the verdict
func (v Verdict) String() string {
	switch v {
	case VerdictAccepted:
		return "accepted"
	case VerdictLowCorrelation:
		return "low_correlation"
	case VerdictHistogramMismatch:
		return "histogram_mismatch"
	case VerdictDegenerate:
		return "degenerate"
	default:
		return fmt.Sprintf("unknown verdict %d", int(v))
	}
}

// Params defines the thresholds used to accept a match
type Params struct {
	// Method is the template matching score function
	Method Method
	// Threshold is the minimum correlation score for a match
	Threshold float64
	// MaxDistance is the maximum Euclidean distance allowed between the
	// template and matched region intensity histograms
	MaxDistance float64
}

// Match is the result of locating a template inside a search window
type Match struct {
	// Box is the matched region in search window coordinates using the full
	// resolution template size
	Box geometry.Box
	// Correlation is the template matching score of the best location
	Correlation float64
	// Distance is the histogram distance, only set once the correlation
	// gate has passed
	Distance float64
	// Verdict is the outcome of the match
	Verdict Verdict
}

// Accepted reports if the match passed both gates
func (m Match) Accepted() bool {
	return m.Verdict == VerdictAccepted
}

// Matcher locates a template within a search window using downsampled
// template matching, then validates the location by comparing grayscale
// intensity histograms.  The histogram gate catches high correlation false
// positives on textureless or repetitive regions
type Matcher struct {
	Params Params
}

// NewMatcher returns a Matcher using the given parameters
func NewMatcher(p Params) *Matcher {
	return &Matcher{Params: p}
}

// Match searches window for template.  Both are expected to be 8 bit BGR,
// BGRA or grayscale images
func (m *Matcher) Match(window, template gocv.Mat) Match {

	if window.Empty() || template.Empty() {
		return Match{Verdict: VerdictDegenerate}
	}

	tw := template.Cols()
	th := template.Rows()
	smallTW, smallTH := tw/scaleFactor, th/scaleFactor
	smallWW, smallWH := window.Cols()/scaleFactor, window.Rows()/scaleFactor

	// OpenCV rejects templates larger than the image
	if smallTW < 1 || smallTH < 1 || smallTW > smallWW || smallTH > smallWH {
		return Match{Verdict: VerdictDegenerate}
	}

	windowGray := toGray(window)
	defer windowGray.Close()

	templateGray := toGray(template)
	defer templateGray.Close()

	windowSmall := gocv.NewMat()
	defer windowSmall.Close()

	templateSmall := gocv.NewMat()
	defer templateSmall.Close()

	gocv.Resize(windowGray, &windowSmall, image.Pt(smallWW, smallWH), 0, 0,
		gocv.InterpolationLinear)
	gocv.Resize(templateGray, &templateSmall, image.Pt(smallTW, smallTH), 0, 0,
		gocv.InterpolationLinear)

	scores := gocv.NewMat()
	defer scores.Close()

	mask := gocv.NewMat()
	defer mask.Close()

	gocv.MatchTemplate(windowSmall, templateSmall, &scores, m.Params.Method.mode(), mask)

	_, maxVal, _, maxLoc := gocv.MinMaxLoc(scores)

	x := maxLoc.X * scaleFactor
	y := maxLoc.Y * scaleFactor

	res := Match{
		Box:         geometry.NewBox(x, y, x+tw, y+th),
		Correlation: float64(maxVal),
	}

	if res.Correlation < m.Params.Threshold {
		res.Verdict = VerdictLowCorrelation
		return res
	}

	// the upscaled box can overhang an odd sized window by a pixel
	bounds := geometry.NewBox(0, 0, windowGray.Cols(), windowGray.Rows())
	matched := windowGray.Region(res.Box.Intersect(bounds).Rect())
	defer matched.Close()

	res.Distance = histogramDistance(grayHistogram(templateGray), grayHistogram(matched))

	if res.Distance > m.Params.MaxDistance {
		res.Verdict = VerdictHistogramMismatch
		return res
	}

	res.Verdict = VerdictAccepted
	return res
}

// toGray returns a single channel copy of img
func toGray(img gocv.Mat) gocv.Mat {

	gray := gocv.NewMat()

	switch img.Channels() {
	case 1:
		img.CopyTo(&gray)
	case 4:
		gocv.CvtColor(img, &gray, gocv.ColorBGRAToGray)
	default:
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	}

	return gray
}
