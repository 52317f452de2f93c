package yolo

import "math"

// candidates holds the decoded boxes of a single inference pass that scored
// above the confidence threshold.  Boxes are stored flat as x, y, w, h in
// input tensor space
type candidates struct {
	boxes   []float32
	probs   []float32
	classID []int
}

// count returns the number of candidate boxes
func (c *candidates) count() int {
	return len(c.probs)
}

// add appends a candidate
func (c *candidates) add(x, y, w, h, prob float32, class int) {
	c.boxes = append(c.boxes, x, y, w, h)
	c.probs = append(c.probs, prob)
	c.classID = append(c.classID, class)
}

// quickSortIndiceInverse sorts input into descending order and applies the
// same reordering to indices
func quickSortIndiceInverse(input []float32, left int, right int, indices []int) int {

	var key float32
	var keyIndex int

	low := left
	high := right

	if left < right {
		keyIndex = indices[left]
		key = input[left]

		for low < high {
			for low < high && input[high] <= key {
				high--
			}

			input[low] = input[high]
			indices[low] = indices[high]

			for low < high && input[low] >= key {
				low++
			}

			input[high] = input[low]
			indices[high] = indices[low]
		}

		input[low] = key
		indices[low] = keyIndex

		quickSortIndiceInverse(input, left, low-1, indices)
		quickSortIndiceInverse(input, low+1, right, indices)
	}

	return low
}

// nms runs Non-Maximum Suppression for a single class.  order holds the
// candidate indexes sorted by descending probability, suppressed entries are
// set to -1
func nms(c *candidates, order []int, filterID int, threshold float32) {

	validCount := len(order)

	for i := 0; i < validCount; i++ {

		n := order[i]

		if n == -1 || c.classID[n] != filterID {
			continue
		}

		for j := i + 1; j < validCount; j++ {
			m := order[j]

			if m == -1 || c.classID[m] != filterID {
				continue
			}

			xmin0 := c.boxes[n*4+0]
			ymin0 := c.boxes[n*4+1]
			xmax0 := xmin0 + c.boxes[n*4+2]
			ymax0 := ymin0 + c.boxes[n*4+3]

			xmin1 := c.boxes[m*4+0]
			ymin1 := c.boxes[m*4+1]
			xmax1 := xmin1 + c.boxes[m*4+2]
			ymax1 := ymin1 + c.boxes[m*4+3]

			iou := calculateOverlap(xmin0, ymin0, xmax0, ymax0, xmin1, ymin1, xmax1, ymax1)

			if iou > threshold {
				order[j] = -1
			}
		}
	}
}

// calculateOverlap works out the Intersection over Union (IoU) of two boxes
func calculateOverlap(xmin0, ymin0, xmax0, ymax0, xmin1, ymin1,
	xmax1, ymax1 float32) float32 {

	w := math.Max(0.0, math.Min(float64(xmax0), float64(xmax1))-math.Max(float64(xmin0), float64(xmin1))+1.0)
	h := math.Max(0.0, math.Min(float64(ymax0), float64(ymax1))-math.Max(float64(ymin0), float64(ymin1))+1.0)
	intersection := w * h

	// inclusive pixel areas
	area0 := (xmax0 - xmin0 + 1) * (ymax0 - ymin0 + 1)
	area1 := (xmax1 - xmin1 + 1) * (ymax1 - ymin1 + 1)

	union := area0 + area1 - float32(intersection)

	if union <= 0 {
		return 0.0
	}

	return float32(intersection) / union
}

// suppress sorts the candidates by probability, runs class wise NMS and
// returns the surviving candidate indexes in descending probability order,
// limited to maxObjects
func suppress(c *candidates, threshold float32, maxObjects int) []int {

	validCount := c.count()

	if validCount == 0 {
		return nil
	}

	order := make([]int, validCount)

	for i := range order {
		order[i] = i
	}

	// sort a copy so probs stays indexed by candidate
	sorted := make([]float32, validCount)
	copy(sorted, c.probs)
	quickSortIndiceInverse(sorted, 0, validCount-1, order)

	classSet := make(map[int]bool)

	for _, id := range c.classID {
		classSet[id] = true
	}

	for class := range classSet {
		nms(c, order, class, threshold)
	}

	keep := make([]int, 0, validCount)

	for _, n := range order {
		if n == -1 {
			continue
		}

		if maxObjects > 0 && len(keep) >= maxObjects {
			break
		}

		keep = append(keep, n)
	}

	return keep
}
