package match

import (
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/floats"
)

// HistogramBins is the number of intensity bins used by the histogram gate
const HistogramBins = 256

// grayHistogram calculates the 256 bin intensity histogram of a single
// channel 8 bit image, normalized so the bins sum to one.  An image with no
// pixels returns all zero bins
func grayHistogram(gray gocv.Mat) []float64 {

	bins := make([]float64, HistogramBins)

	if gray.Empty() {
		return bins
	}

	hist := gocv.NewMat()
	defer hist.Close()

	mask := gocv.NewMat()
	defer mask.Close()

	gocv.CalcHist([]gocv.Mat{gray}, []int{0}, mask, &hist,
		[]int{HistogramBins}, []float64{0, HistogramBins}, false)

	for i := 0; i < HistogramBins; i++ {
		bins[i] = float64(hist.GetFloatAt(i, 0))
	}

	return normalize(bins)
}

// normalize scales the histogram in place by its L1 sum
func normalize(bins []float64) []float64 {

	sum := floats.Sum(bins)

	if sum == 0 {
		return bins
	}

	floats.Scale(1/sum, bins)

	return bins
}

// histogramDistance returns the Euclidean distance between two histograms
func histogramDistance(a, b []float64) float64 {
	return floats.Distance(a, b, 2)
}
