package intensity

import "omr-grader/internal/config"

// Statistical blends normalized darkness with uniformity. A deliberate fill
// is both dark and even; a stray stroke darkens the mean a little while the
// spread stays wide.
type Statistical struct {
	DarknessWeight   float64
	UniformityWeight float64
	SpreadScale      float64
}

// NewStatistical returns the method with its calibration defaults.
func NewStatistical() *Statistical {
	return &Statistical{
		DarknessWeight:   0.7,
		UniformityWeight: 0.3,
		SpreadScale:      128,
	}
}

func (s *Statistical) Name() string { return config.MethodStatistical }

func (s *Statistical) Score(r Region) Result {
	if !r.OK() {
		return badRegion(s.Name(), r.Quality)
	}

	stats := computeStats(r.Samples)
	darkness := 1 - stats.Mean/255
	uniformity := clamp01(1 - stats.StdDev/s.SpreadScale)

	return Result{
		Method:    s.Name(),
		Intensity: clamp01(s.DarknessWeight*darkness + s.UniformityWeight*uniformity),
		Stats:     stats,
	}
}
