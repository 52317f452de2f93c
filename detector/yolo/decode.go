package yolo

import "fmt"

// boxAttrs is the number of box values (cx, cy, w, h) that lead each anchor
const boxAttrs = 4

// layout describes the shape of a YOLOv8 output tensor
type layout struct {
	numClasses int
	numAnchors int
	// transposed is set for [1, anchors, 4+classes] exports, the default
	// export is [1, 4+classes, anchors]
	transposed bool
}

// parseLayout works out the tensor layout from the output dimensions
func parseLayout(dims []int) (layout, error) {

	if len(dims) != 3 || dims[0] != 1 {
		return layout{}, fmt.Errorf("unexpected output shape %v", dims)
	}

	attrs, anchors := dims[1], dims[2]
	transposed := false

	// anchors always outnumber attributes for the standard input sizes
	if attrs > anchors {
		attrs, anchors = anchors, attrs
		transposed = true
	}

	if attrs <= boxAttrs {
		return layout{}, fmt.Errorf("output shape %v has no class scores", dims)
	}

	return layout{
		numClasses: attrs - boxAttrs,
		numAnchors: anchors,
		transposed: transposed,
	}, nil
}

// at returns attribute attr of anchor a
func (l layout) at(data []float32, attr, a int) float32 {

	if l.transposed {
		return data[a*(l.numClasses+boxAttrs)+attr]
	}

	return data[attr*l.numAnchors+a]
}

// decode collects every anchor whose best class score reaches threshold.
// YOLOv8 has no objectness score so the class score is used as the
// probability
func decode(data []float32, l layout, threshold float32) (*candidates, error) {

	if want := (l.numClasses + boxAttrs) * l.numAnchors; len(data) < want {
		return nil, fmt.Errorf("output has %d values, expected %d", len(data), want)
	}

	c := &candidates{}

	for a := 0; a < l.numAnchors; a++ {

		maxScore := float32(0)
		maxClassID := -1

		for class := 0; class < l.numClasses; class++ {
			score := l.at(data, boxAttrs+class, a)

			if score > maxScore {
				maxScore = score
				maxClassID = class
			}
		}

		if maxClassID == -1 || maxScore < threshold {
			continue
		}

		cx := l.at(data, 0, a)
		cy := l.at(data, 1, a)
		w := l.at(data, 2, a)
		h := l.at(data, 3, a)

		c.add(cx-w/2, cy-h/2, w, h, maxScore, maxClassID)
	}

	return c, nil
}
