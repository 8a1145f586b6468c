package intensity

import (
	"gocv.io/x/gocv"

	"omr-grader/internal/config"
)

// ContourArea scores a region by the summed area of its Otsu-foreground
// contours relative to the sampling circle. Contours below the noise floor
// are dust and JPEG artifacts, not marks.
type ContourArea struct {
	NoiseFloor float64
}

// NewContourArea returns the method with its calibration defaults.
func NewContourArea() *ContourArea {
	return &ContourArea{NoiseFloor: 4}
}

func (c *ContourArea) Name() string { return config.MethodContour }

func (c *ContourArea) Score(r Region) Result {
	if !r.OK() {
		return badRegion(c.Name(), r.Quality)
	}

	stats := computeStats(r.Samples)

	// Otsu needs two populations to separate. A flat region is all
	// background or all mark; the mean settles it.
	if stats.StdDev < 2 {
		intensity := 0.0
		if stats.Mean < 128 {
			intensity = 1
		}
		return Result{Method: c.Name(), Intensity: intensity, Stats: stats}
	}

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(r.ROI, &binary, 0, 255, gocv.ThresholdBinaryInv|gocv.ThresholdOtsu)

	masked := gocv.NewMat()
	defer masked.Close()
	binary.CopyToWithMask(&masked, r.Mask)

	contours := gocv.FindContours(masked, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var sum float64
	for i := 0; i < contours.Size(); i++ {
		if area := gocv.ContourArea(contours.At(i)); area > c.NoiseFloor {
			sum += area
		}
	}

	maskArea := gocv.CountNonZero(r.Mask)
	if maskArea == 0 {
		return badRegion(c.Name(), QualityEmpty)
	}

	return Result{
		Method:    c.Name(),
		Intensity: clamp01(sum / float64(maskArea)),
		Stats:     stats,
	}
}
