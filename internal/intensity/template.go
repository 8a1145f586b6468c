package intensity

import (
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"omr-grader/internal/config"
)

// TemplateMatch scores a region by normalized correlation between the
// inverted region and a synthetic filled disc of the same size. A properly
// filled bubble is the disc; stray strokes and half marks correlate weakly.
type TemplateMatch struct{}

// NewTemplateMatch returns the method.
func NewTemplateMatch() *TemplateMatch {
	return &TemplateMatch{}
}

func (t *TemplateMatch) Name() string { return config.MethodTemplate }

func (t *TemplateMatch) Score(r Region) Result {
	if !r.OK() {
		return badRegion(t.Name(), r.Quality)
	}

	stats := computeStats(r.Samples)

	// Correlation is undefined on a flat region; fall back to the mean.
	if stats.StdDev < 2 {
		intensity := 0.0
		if stats.Mean < 128 {
			intensity = 1
		}
		return Result{Method: t.Name(), Intensity: intensity, Stats: stats}
	}

	inverted := gocv.NewMat()
	defer inverted.Close()
	gocv.BitwiseNot(r.ROI, &inverted)

	side := r.ROI.Cols()
	tmpl := gocv.NewMatWithSize(side, side, gocv.MatTypeCV8UC1)
	defer tmpl.Close()
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	gocv.Circle(&tmpl, image.Point{X: side / 2, Y: side / 2}, r.Radius, white, -1)

	result := gocv.NewMat()
	defer result.Close()
	noMask := gocv.NewMat()
	defer noMask.Close()
	gocv.MatchTemplate(inverted, tmpl, &result, gocv.TmCcoeffNormed, noMask)

	corr := float64(result.GetFloatAt(0, 0))
	if math.IsNaN(corr) || corr < 0 {
		corr = 0
	}

	return Result{
		Method:    t.Name(),
		Intensity: clamp01(corr),
		Stats:     stats,
	}
}
