package intensity

import (
	"image"

	"gocv.io/x/gocv"

	"omr-grader/internal/config"
)

// Morphological scores a region by the foreground fraction left after a
// close-then-open pass over the inverted dark mask. The morphology joins the
// strokes of a real mark into one blob and erases isolated speckles, so the
// surviving fraction tracks deliberate fill rather than noise.
type Morphological struct {
	DarkThreshold float64
	KernelSize    int
}

// NewMorphological returns the method with its calibration defaults.
func NewMorphological() *Morphological {
	return &Morphological{DarkThreshold: 128, KernelSize: 3}
}

func (m *Morphological) Name() string { return config.MethodMorphological }

func (m *Morphological) Score(r Region) Result {
	if !r.OK() {
		return badRegion(m.Name(), r.Quality)
	}

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(r.ROI, &binary, float32(m.DarkThreshold), 255, gocv.ThresholdBinaryInv)

	masked := gocv.NewMat()
	defer masked.Close()
	binary.CopyToWithMask(&masked, r.Mask)

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: m.KernelSize, Y: m.KernelSize})
	defer kernel.Close()
	gocv.MorphologyEx(masked, &masked, gocv.MorphClose, kernel)
	gocv.MorphologyEx(masked, &masked, gocv.MorphOpen, kernel)

	maskArea := gocv.CountNonZero(r.Mask)
	if maskArea == 0 {
		return badRegion(m.Name(), QualityEmpty)
	}
	fill := float64(gocv.CountNonZero(masked)) / float64(maskArea)

	return Result{
		Method:    m.Name(),
		Intensity: clamp01(fill),
		Stats:     computeStats(r.Samples),
	}
}
