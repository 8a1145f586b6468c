package intensity

import "omr-grader/internal/config"

// Darkness scores a region by the fraction of pixels under tiered gray
// thresholds. A region counts as marked once any (ratio, darkness) pair is
// satisfied: a few very dark pixels are as convincing as many medium ones.
// Marked regions are floored and unmarked ones ceilinged so a region sitting
// on a tier boundary cannot flap between filled and blank across runs.
type Darkness struct {
	VeryDark uint8 // pencil core
	Dark     uint8
	Medium   uint8 // light pencil, smudges

	VeryDarkRatio float64
	DarkRatio     float64
	MediumRatio   float64

	MarkedFloor     float64
	UnmarkedCeiling float64
}

// NewDarkness returns the method with its calibration defaults.
func NewDarkness() *Darkness {
	return &Darkness{
		VeryDark: 64,
		Dark:     96,
		Medium:   128,

		VeryDarkRatio: 0.15,
		DarkRatio:     0.30,
		MediumRatio:   0.50,

		MarkedFloor:     0.60,
		UnmarkedCeiling: 0.35,
	}
}

func (d *Darkness) Name() string { return config.MethodDarkness }

func (d *Darkness) Score(r Region) Result {
	if !r.OK() {
		return badRegion(d.Name(), r.Quality)
	}

	var vd, dk, md int
	for _, s := range r.Samples {
		if s < d.VeryDark {
			vd++
		}
		if s < d.Dark {
			dk++
		}
		if s < d.Medium {
			md++
		}
	}
	n := float64(len(r.Samples))
	vdFrac := float64(vd) / n
	dkFrac := float64(dk) / n
	mdFrac := float64(md) / n

	marked := vdFrac >= d.VeryDarkRatio || dkFrac >= d.DarkRatio || mdFrac >= d.MediumRatio

	intensity := clamp01(0.45*vdFrac + 0.35*dkFrac + 0.20*mdFrac)
	if marked && intensity < d.MarkedFloor {
		intensity = d.MarkedFloor
	}
	if !marked && intensity > d.UnmarkedCeiling {
		intensity = d.UnmarkedCeiling
	}

	return Result{
		Method:    d.Name(),
		Intensity: intensity,
		Stats:     computeStats(r.Samples),
	}
}
