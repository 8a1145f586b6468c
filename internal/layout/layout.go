// Package layout classifies the structural variant of an answer sheet from
// its clustered rows and columns.
package layout

import (
	"errors"
	"fmt"

	"omr-grader/internal/bubble"
	"omr-grader/internal/cluster"
	"omr-grader/internal/config"
)

// ErrLayoutUndetected means clustering yielded no usable structure.
// Fatal for this sheet; callers holding a registered fixed template for the
// exam may fall back to it.
var ErrLayoutUndetected = errors.New("no usable sheet layout detected")

// Variant tags the sheet's overall column/section structure. It only steers
// how the coordinate mapper iterates; nothing else depends on it.
type Variant int

const (
	VariantNarrowSingle Variant = iota
	VariantStandardSingle
	VariantWideSingle
	VariantTwoSection
	VariantMultiSection
)

func (v Variant) String() string {
	switch v {
	case VariantNarrowSingle:
		return "narrow-single"
	case VariantStandardSingle:
		return "standard-single"
	case VariantWideSingle:
		return "wide-single"
	case VariantTwoSection:
		return "two-section"
	case VariantMultiSection:
		return "multi-section"
	default:
		return "unknown"
	}
}

// Layout is the immutable structural model of one sheet. It is built once per
// image and read by the coordinate mapper; no detector instance carries state
// across calls. Candidates keeps the full extraction output so recovery can
// search bubbles that row clustering discarded.
type Layout struct {
	Rows       []cluster.Row
	Columns    cluster.Columns
	Variant    Variant
	Candidates []bubble.Candidate
}

// Build infers the column model from clustered rows and classifies the
// variant. It requires cfg.MinRowsForLayout rows; dense 40-question sheets
// should raise that to about 10 so a handful of noise rows cannot pass as
// a layout.
func Build(rows []cluster.Row, candidates []bubble.Candidate, cfg config.DetectionConfig) (Layout, error) {
	if len(rows) < cfg.MinRowsForLayout {
		return Layout{}, fmt.Errorf("%w: %d rows clustered, need %d",
			ErrLayoutUndetected, len(rows), cfg.MinRowsForLayout)
	}

	columns, err := cluster.InferColumns(rows)
	if err != nil {
		return Layout{}, fmt.Errorf("%w: %v", ErrLayoutUndetected, err)
	}

	return Layout{
		Rows:       rows,
		Columns:    columns,
		Variant:    classify(columns),
		Candidates: candidates,
	}, nil
}

// classify picks the variant from section count and modal row length.
func classify(c cluster.Columns) Variant {
	switch {
	case len(c.Sections) >= 3:
		return VariantMultiSection
	case len(c.Sections) == 2:
		return VariantTwoSection
	case c.ModalLength >= 10:
		return VariantWideSingle
	case c.ModalLength >= 5:
		return VariantStandardSingle
	default:
		return VariantNarrowSingle
	}
}
