// Package cluster groups bubble candidates into rows and infers the sheet's
// column and section structure from their spacing.
package cluster

import (
	"sort"

	"omr-grader/internal/bubble"
	"omr-grader/internal/config"
)

// Row is an ordered run of candidates sharing a y-band, sorted by x.
type Row struct {
	Members []bubble.Candidate
	MeanY   float64
}

// GroupRows clusters candidates into rows with a single top-to-bottom scan.
// A candidate joins the current row while its y stays within the tolerance
// around the row's running mean; the tolerance widens slightly once a row has
// enough members, since long rows average out per-bubble jitter. The last row
// is accepted with only two members so a clipped bottom row is not lost.
func GroupRows(cands []bubble.Candidate, cfg config.DetectionConfig) []Row {
	if len(cands) == 0 {
		return nil
	}

	sorted := make([]bubble.Candidate, len(cands))
	copy(sorted, cands)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Center.Y < sorted[j].Center.Y
	})

	var rows []Row
	current := []bubble.Candidate{sorted[0]}
	meanY := sorted[0].Center.Y

	for _, c := range sorted[1:] {
		tol := cfg.RowTolerance
		if len(current) >= cfg.MinBubblesPerRow {
			tol *= 1.25
		}

		dy := c.Center.Y - meanY
		if dy < 0 {
			dy = -dy
		}
		if dy <= tol {
			current = append(current, c)
			meanY += (c.Center.Y - meanY) / float64(len(current))
			continue
		}

		if row, ok := closeRow(current, cfg, false); ok {
			rows = append(rows, row)
		}
		current = []bubble.Candidate{c}
		meanY = c.Center.Y
	}

	if row, ok := closeRow(current, cfg, true); ok {
		rows = append(rows, row)
	}

	return rows
}

// closeRow finalizes a candidate run. Runs outside the configured member
// range get one retry with low-confidence members filtered out; if that
// still misses the range the run is dropped. The final row relaxes the
// lower bound to two members.
func closeRow(members []bubble.Candidate, cfg config.DetectionConfig, last bool) (Row, bool) {
	minPerRow := cfg.MinBubblesPerRow
	if last && minPerRow > 2 {
		minPerRow = 2
	}

	if len(members) < minPerRow {
		return Row{}, false
	}
	if len(members) > cfg.MaxBubblesPerRow {
		members = filterByConfidence(members)
		if len(members) < minPerRow || len(members) > cfg.MaxBubblesPerRow {
			return Row{}, false
		}
	}

	sort.Slice(members, func(i, j int) bool {
		return members[i].Center.X < members[j].Center.X
	})

	var sumY float64
	for _, m := range members {
		sumY += m.Center.Y
	}

	return Row{Members: members, MeanY: sumY / float64(len(members))}, true
}

// filterByConfidence drops members scoring below the run's mean confidence.
// Oversized runs are usually a real row plus stray noise contours, and the
// noise carries the lowest shape scores.
func filterByConfidence(members []bubble.Candidate) []bubble.Candidate {
	var sum float64
	for _, m := range members {
		sum += m.Confidence
	}
	mean := sum / float64(len(members))

	kept := members[:0:0]
	for _, m := range members {
		if m.Confidence >= mean {
			kept = append(kept, m)
		}
	}
	return kept
}
