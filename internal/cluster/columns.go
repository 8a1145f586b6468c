package cluster

import (
	"errors"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ErrNoReferenceRows means no row matched the modal row length, so column
// positions cannot be derived.
var ErrNoReferenceRows = errors.New("no reference rows for column inference")

// Section is a contiguous column-index range representing one visually
// separated block of option-columns.
type Section struct {
	Start  int     `json:"start"`
	End    int     `json:"end"`
	StartX float64 `json:"start_x"`
	EndX   float64 `json:"end_x"`
}

// Width returns the number of columns in the section.
func (s Section) Width() int {
	return s.End - s.Start + 1
}

// Columns is the inferred column model of a sheet.
type Columns struct {
	Positions   []float64 `json:"positions"`
	Sections    []Section `json:"sections"`
	ModalLength int       `json:"modal_length"`
}

// InferColumns derives column positions and section boundaries from clustered
// rows. Only "reference rows" — rows whose member count equals the modal row
// length — contribute, since short or padded rows would shift the per-index
// averages. A spacing gap larger than max(1.5×mean, 1.8×median) of all
// consecutive deltas splits the columns into sections.
func InferColumns(rows []Row) (Columns, error) {
	modal := modalLength(rows)
	if modal == 0 {
		return Columns{}, ErrNoReferenceRows
	}

	// Exact match only. A near-modal row is missing a bubble at an unknown
	// index, so averaging it in would shift every position after the hole
	// one column over.
	var refRows []Row
	for _, r := range rows {
		if len(r.Members) == modal {
			refRows = append(refRows, r)
		}
	}
	if len(refRows) == 0 {
		return Columns{}, ErrNoReferenceRows
	}

	positions := make([]float64, modal)
	for j := 0; j < modal; j++ {
		var sum float64
		for _, r := range refRows {
			sum += r.Members[j].Center.X
		}
		positions[j] = sum / float64(len(refRows))
	}

	return Columns{
		Positions:   positions,
		Sections:    splitSections(positions),
		ModalLength: modal,
	}, nil
}

// modalLength returns the most common row length. Ties resolve to the longer
// length, which favors full rows over clipped ones.
func modalLength(rows []Row) int {
	counts := make(map[int]int)
	for _, r := range rows {
		counts[len(r.Members)]++
	}
	best, bestCount := 0, 0
	for length, count := range counts {
		if count > bestCount || (count == bestCount && length > best) {
			best, bestCount = length, count
		}
	}
	return best
}

// splitSections partitions column indices at spacing gaps. With fewer than
// two spacing samples there is no distribution to compare against, so the
// whole sheet is one section.
func splitSections(positions []float64) []Section {
	n := len(positions)
	single := []Section{{Start: 0, End: n - 1, StartX: positions[0], EndX: positions[n-1]}}

	deltas := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		deltas = append(deltas, positions[i]-positions[i-1])
	}
	if len(deltas) < 2 {
		return single
	}

	mean := stat.Mean(deltas, nil)
	sorted := make([]float64, len(deltas))
	copy(sorted, deltas)
	sort.Float64s(sorted)
	median := sorted[len(sorted)/2]

	gapThreshold := 1.5 * mean
	if t := 1.8 * median; t > gapThreshold {
		gapThreshold = t
	}

	var sections []Section
	start := 0
	for i, d := range deltas {
		if d > gapThreshold {
			sections = append(sections, Section{
				Start: start, End: i,
				StartX: positions[start], EndX: positions[i],
			})
			start = i + 1
		}
	}
	sections = append(sections, Section{
		Start: start, End: n - 1,
		StartX: positions[start], EndX: positions[n-1],
	})

	return sections
}

// MeanColumnSpacing returns the average distance between adjacent columns
// inside sections, skipping the inter-section gaps. Zero when the model has
// fewer than two columns in every section.
func (c Columns) MeanColumnSpacing() float64 {
	var sum float64
	var count int
	for _, s := range c.Sections {
		for i := s.Start + 1; i <= s.End; i++ {
			sum += c.Positions[i] - c.Positions[i-1]
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}
