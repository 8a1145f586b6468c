package intensity

import (
	"gonum.org/v1/gonum/stat"
)

// Stats are the raw pixel statistics a method derived its score from.
type Stats struct {
	Mean         float64 `json:"mean"`
	StdDev       float64 `json:"std_dev"`
	Min          uint8   `json:"min"`
	Max          uint8   `json:"max"`
	DarkFraction float64 `json:"dark_fraction"`
	PixelCount   int     `json:"pixel_count"`
}

// Result is one method's intensity estimate for one bubble region.
type Result struct {
	Method    string  `json:"method"`
	Intensity float64 `json:"intensity"`
	Stats     Stats   `json:"stats"`
	Quality   Quality `json:"quality"`
}

// Method scores a bubble region's fill intensity in [0, 1]. Implementations
// are independent: each sees the same region and must not rely on another
// method's output. The consensus resolver weighs them against each other.
type Method interface {
	Name() string
	Score(r Region) Result
}

// DefaultMethods returns the standard five-method set in consensus order.
func DefaultMethods() []Method {
	return []Method{
		NewDarkness(),
		NewMorphological(),
		NewContourArea(),
		NewTemplateMatch(),
		NewStatistical(),
	}
}

// computeStats derives the shared raw statistics from region samples.
func computeStats(samples []uint8) Stats {
	vals := make([]float64, len(samples))
	minV, maxV := samples[0], samples[0]
	dark := 0
	for i, s := range samples {
		vals[i] = float64(s)
		if s < minV {
			minV = s
		}
		if s > maxV {
			maxV = s
		}
		if s < 128 {
			dark++
		}
	}
	mean, std := stat.MeanStdDev(vals, nil)
	if len(vals) < 2 {
		std = 0
	}
	return Stats{
		Mean:         mean,
		StdDev:       std,
		Min:          minV,
		Max:          maxV,
		DarkFraction: float64(dark) / float64(len(samples)),
		PixelCount:   len(samples),
	}
}

// badRegion is the shared zero-intensity result for unusable regions.
func badRegion(method string, q Quality) Result {
	return Result{Method: method, Intensity: 0, Quality: q}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
