package geometry

import "image"

const (
	// EdgeTrim is the number of pixels removed from a template on each side
	// touching the frame edge
	EdgeTrim = 2
	// MinTrimmedSize is the size a template dimension must stay above after
	// trimming for the trim to be applied
	MinTrimmedSize = 10
)

// Expansion defines the search window margins added around a box
type Expansion struct {
	// Horizontal enables expansion along the x axis
	Horizontal bool
	// Vertical enables expansion along the y axis
	Vertical bool
	// HExpand is the number of pixels added to the left and right sides
	HExpand int
	// VExpand is the number of pixels added to the top and bottom sides
	VExpand int
}

// dx returns the effective horizontal margin
func (e Expansion) dx() int {
	if e.Horizontal {
		return e.HExpand
	}
	return 0
}

// dy returns the effective vertical margin
func (e Expansion) dy() int {
	if e.Vertical {
		return e.VExpand
	}
	return 0
}

// Expand grows the box by the enabled margins.  No clamping is performed so
// the result may fall outside of the frame
func (e Expansion) Expand(b Box) Box {
	return Box{
		XMin: b.XMin - e.dx(),
		YMin: b.YMin - e.dy(),
		XMax: b.XMax + e.dx(),
		YMax: b.YMax + e.dy(),
	}
}

// SearchBounds expands the box then clamps it to a frame of the given size.
// Overflow past the low edge shrinks the far side by the same amount, whilst
// overflow past the high edge shifts the near side inward.  The returned box
// is always in bounds
func (e Expansion) SearchBounds(b Box, width, height int) Box {

	s := e.Expand(b)

	// low edge
	if s.XMin < 0 {
		s.XMax += s.XMin
		s.XMin = 0
	}

	if s.YMin < 0 {
		s.YMax += s.YMin
		s.YMin = 0
	}

	// high edge
	if s.XMax > width {
		diff := s.XMax - width
		s.XMin += diff
		s.XMax = width
	}

	if s.YMax > height {
		diff := s.YMax - height
		s.YMin += diff
		s.YMax = height
	}

	// only reachable for boxes lying mostly outside of the frame
	s.XMax = clampInt(s.XMax, 0, width)
	s.XMin = clampInt(s.XMin, 0, s.XMax)
	s.YMax = clampInt(s.YMax, 0, height)
	s.YMin = clampInt(s.YMin, 0, s.YMax)

	return s
}

// TemplateTrim works out the sub rectangle of a template of size tw x th to
// keep when the track box touches an edge of a width x height frame.  Edges
// are tested in the order left, top, right, bottom and each test sees the
// dimensions left over by the previous ones
func (e Expansion) TemplateTrim(b Box, width, height, tw, th int) image.Rectangle {

	r := image.Rect(0, 0, tw, th)

	if b.XMin == 0 && r.Dx()-EdgeTrim > MinTrimmedSize && e.Horizontal {
		r.Min.X += EdgeTrim
	}

	if b.YMin == 0 && r.Dy()-EdgeTrim > MinTrimmedSize && e.Vertical {
		r.Min.Y += EdgeTrim
	}

	if b.XMax == width && r.Dx()-EdgeTrim > MinTrimmedSize && e.Horizontal {
		r.Max.X -= EdgeTrim
	}

	if b.YMax == height && r.Dy()-EdgeTrim > MinTrimmedSize && e.Vertical {
		r.Max.Y -= EdgeTrim
	}

	return r
}

// clampInt restricts val to the range min and max
func clampInt(val, min, max int) int {

	if val < min {
		return min
	}

	if val > max {
		return max
	}

	return val
}
