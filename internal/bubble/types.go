// Package bubble extracts answer-bubble candidates from a binarized sheet.
package bubble

import (
	"errors"

	"omr-grader/pkg/geometry"
)

// ErrInsufficientSignal means no contour survived candidate filtering.
// The image carries nothing the pipeline can work with; fatal for this sheet.
var ErrInsufficientSignal = errors.New("no bubble candidates detected")

// Candidate is a contour that passed the shape filters. Candidates are
// ephemeral: the clusterer consumes them and only center and box survive
// into the mapped layout.
type Candidate struct {
	Box         geometry.RectInt `json:"box"`
	Center      geometry.Point2D `json:"center"`
	Area        float64          `json:"area"`
	AspectRatio float64          `json:"aspect_ratio"`
	Circularity float64          `json:"circularity"`
	Solidity    float64          `json:"solidity"`
	Confidence  float64          `json:"confidence"`
}
