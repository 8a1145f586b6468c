// Package intensity estimates how filled a bubble region is, using several
// independent pixel-statistics methods over one extracted circular region.
package intensity

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"omr-grader/pkg/geometry"
)

// Quality flags a region extraction problem. Bad regions score intensity 0;
// they never abort the sheet.
type Quality int

const (
	QualityOK Quality = iota
	QualityOutOfBounds
	QualityEmpty
)

func (q Quality) String() string {
	switch q {
	case QualityOK:
		return "ok"
	case QualityOutOfBounds:
		return "out-of-bounds"
	case QualityEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// Region is the circular pixel neighborhood of one bubble. ROI is a square
// grayscale crop, Mask selects the sampling circle inside it, and Samples
// holds the masked pixel values. A thin edge band of the radius is excluded
// so the printed bubble outline does not count as a mark.
type Region struct {
	ROI     gocv.Mat
	Mask    gocv.Mat
	Samples []uint8
	Radius  int
	Quality Quality

	closed bool
}

// OK reports whether the region is usable for scoring.
func (r Region) OK() bool {
	return r.Quality == QualityOK && len(r.Samples) > 0
}

// Close releases the region's mats. Failed regions own no mats, and touching
// their zero-value handles (even via Empty) would dereference a nil cv::Mat,
// so Close only acts once on regions that extracted successfully.
func (r *Region) Close() {
	if r.Quality != QualityOK || r.closed {
		return
	}
	r.closed = true
	r.ROI.Close()
	r.Mask.Close()
}

// ExtractRegion crops the square around center and builds the sampling
// circle. Extraction is recomputed fresh on every call; regions are never
// cached across analyses.
func ExtractRegion(gray gocv.Mat, center geometry.Point2D, radius int) Region {
	if radius < 2 {
		radius = 2
	}

	cx := int(center.X + 0.5)
	cy := int(center.Y + 0.5)
	side := 2*radius + 1

	if cx-radius < 0 || cy-radius < 0 ||
		cx+radius >= gray.Cols() || cy+radius >= gray.Rows() {
		return Region{Quality: QualityOutOfBounds}
	}

	roi := gray.Region(image.Rect(cx-radius, cy-radius, cx+radius+1, cy+radius+1))
	defer roi.Close()
	crop := roi.Clone()

	// Sampling radius excludes the outline band.
	inner := radius - radius/8
	if inner >= radius {
		inner = radius - 1
	}

	mask := gocv.NewMatWithSize(side, side, gocv.MatTypeCV8UC1)
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	gocv.Circle(&mask, image.Point{X: radius, Y: radius}, inner, white, -1)

	var samples []uint8
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			if mask.GetUCharAt(y, x) != 0 {
				samples = append(samples, crop.GetUCharAt(y, x))
			}
		}
	}

	if len(samples) == 0 {
		crop.Close()
		mask.Close()
		return Region{Quality: QualityEmpty}
	}

	return Region{ROI: crop, Mask: mask, Samples: samples, Radius: inner}
}
