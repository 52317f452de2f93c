package preprocess

import (
	"github.com/swdee/go-visionforge/geometry"
	"gocv.io/x/gocv"
)

// SearchRegion holds the frame window a track is searched for in along with
// the template to search with
type SearchRegion struct {
	// Window is a view of the frame cropped to Bounds.  It is empty when
	// Bounds has zero area
	Window gocv.Mat
	// Template is a view of the track template after edge trimming
	Template gocv.Mat
	// Bounds is the clamped search window in full frame coordinates
	Bounds geometry.Box
	// Trimmed indicates if the template had pixels removed for touching
	// the frame edge
	Trimmed bool
}

// NewSearchRegion expands the track box by the given margins, clamps it to
// the frame and crops the search window.  The template is trimmed on any side
// where the track box is flush with the frame edge.  The returned region must
// be closed after use, it does not own the frame or template memory
func NewSearchRegion(frame gocv.Mat, box geometry.Box, template gocv.Mat,
	exp geometry.Expansion) *SearchRegion {

	width := frame.Cols()
	height := frame.Rows()

	r := &SearchRegion{
		Bounds: exp.SearchBounds(box, width, height),
	}

	keep := exp.TemplateTrim(box, width, height, template.Cols(), template.Rows())
	r.Trimmed = keep.Dx() != template.Cols() || keep.Dy() != template.Rows()

	if keep.Empty() {
		r.Template = gocv.NewMat()
	} else {
		r.Template = template.Region(keep)
	}

	if r.Bounds.Empty() {
		r.Window = gocv.NewMat()
	} else {
		r.Window = frame.Region(r.Bounds.Rect())
	}

	return r
}

// Close releases the window and template views
func (r *SearchRegion) Close() error {

	err := r.Window.Close()

	if terr := r.Template.Close(); err == nil {
		err = terr
	}

	return err
}
