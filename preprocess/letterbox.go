package preprocess

import (
	"image"
	"image/color"

	"github.com/swdee/go-visionforge/geometry"
	"gocv.io/x/gocv"
)

// Letterbox scales frames to a detector input size whilst keeping their
// aspect ratio, padding the remainder with a solid color.  It also maps
// detector coordinates back onto the source frame
type Letterbox struct {
	srcWidth   int
	srcHeight  int
	destWidth  int
	destHeight int
	// tempMat holds the scaled image before padding
	tempMat gocv.Mat
	scale   float32
	xPad    int
	yPad    int
	resizeW int
	resizeH int
}

// NewLetterbox returns a Letterbox for scaling srcWidth x srcHeight frames
// into a destWidth x destHeight input tensor
func NewLetterbox(srcWidth, srcHeight, destWidth, destHeight int) *Letterbox {

	l := &Letterbox{
		srcWidth:   srcWidth,
		srcHeight:  srcHeight,
		destWidth:  destWidth,
		destHeight: destHeight,
		tempMat:    gocv.NewMat(),
	}

	l.resizeW = destWidth
	l.resizeH = destHeight

	scaleW := float32(destWidth) / float32(srcWidth)
	scaleH := float32(destHeight) / float32(srcHeight)
	l.scale = scaleH

	if scaleW < scaleH {
		l.scale = scaleW
		l.resizeH = int(float32(srcHeight) * l.scale)
	} else {
		l.resizeW = int(float32(srcWidth) * l.scale)
	}

	l.xPad = (destWidth - l.resizeW) / 2
	l.yPad = (destHeight - l.resizeH) / 2

	return l
}

// Close frees the scratch Mat
func (l *Letterbox) Close() error {
	return l.tempMat.Close()
}

// Fits reports if the Letterbox was built for frames of the given size
func (l *Letterbox) Fits(width, height int) bool {
	return l.srcWidth == width && l.srcHeight == height
}

// Resize scales src into dest padding with clr
func (l *Letterbox) Resize(src gocv.Mat, dest *gocv.Mat, clr color.RGBA) {

	gocv.Resize(src, &l.tempMat, image.Pt(l.resizeW, l.resizeH),
		0, 0, gocv.InterpolationLinear)

	gocv.CopyMakeBorder(l.tempMat, dest, l.yPad, l.destHeight-l.resizeH-l.yPad,
		l.xPad, l.destWidth-l.resizeW-l.xPad, gocv.BorderConstant, clr)
}

// Unscale converts corner coordinates in input tensor space back to a box in
// source frame space, clipped to the source frame
func (l *Letterbox) Unscale(x1, y1, x2, y2 float32) geometry.Box {

	toSrc := func(v float32, pad int, limit int) int {
		s := int((v - float32(pad)) / l.scale)

		if s < 0 {
			return 0
		}

		if s > limit {
			return limit
		}

		return s
	}

	return geometry.NewBox(
		toSrc(x1, l.xPad, l.srcWidth),
		toSrc(y1, l.yPad, l.srcHeight),
		toSrc(x2, l.xPad, l.srcWidth),
		toSrc(y2, l.yPad, l.srcHeight),
	)
}

// ScaleFactor returns the scale factor used in the resize
func (l *Letterbox) ScaleFactor() float32 {
	return l.scale
}

// XPad returns the horizontal padding
func (l *Letterbox) XPad() int {
	return l.xPad
}

// YPad returns the vertical padding
func (l *Letterbox) YPad() int {
	return l.yPad
}
