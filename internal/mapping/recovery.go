package mapping

import (
	"sort"

	"omr-grader/internal/cluster"
	"omr-grader/internal/config"
	"omr-grader/internal/layout"
)

// recoverMissing extrapolates the trailing questions the direct pass missed.
// Question numbers are assigned monotonically, so every missing number sits
// past the highest mapped one. For each missing number the last two mapped
// questions of its section give a row-index delta; the target row is
// projected by that delta and its y-band searched for bubbles inside the
// section's x-range, widening the search window on each failed pass.
// A question is never synthesized from fewer than two bubbles.
// questions is extended in place; the recovered numbers are returned sorted.
func recoverMissing(l layout.Layout, questions map[int]Question, expected int, cfg config.DetectionConfig, pad float64) []int {
	highest := 0
	for num := range questions {
		if num > highest {
			highest = num
		}
	}
	if highest < 2 {
		return nil
	}

	pitch := meanRowPitch(l.Rows)
	used := usedCenters(questions)

	var recovered []int
	for m := highest + 1; m <= expected; m++ {
		prev, ok := questions[m-1]
		if !ok {
			continue
		}
		prev2, ok := latestInSectionBefore(questions, prev.Section, m-1)
		if !ok {
			continue
		}

		delta := prev.Row - prev2.Row
		if delta <= 0 {
			delta = 1
		}
		projRow := prev.Row + delta
		projY := projectRowY(l.Rows, projRow, pitch)
		if projY < 0 {
			continue
		}

		section := l.Columns.Sections[prev.Section]
		var slice []located
		for _, widen := range []float64{1.0, 1.5, 2.0} {
			yTol := cfg.RowTolerance * widen
			xPad := pad * widen
			slice = nil
			for _, c := range l.Candidates {
				dy := c.Center.Y - projY
				if dy < 0 {
					dy = -dy
				}
				if dy > yTol {
					continue
				}
				if c.Center.X < section.StartX-xPad || c.Center.X > section.EndX+xPad {
					continue
				}
				key := centerKey{x: int(c.Center.X), y: int(c.Center.Y)}
				if used[key] {
					continue
				}
				slice = append(slice, located{center: c.Center, box: c.Box})
			}
			if len(slice) >= 3 {
				break
			}
		}
		if len(slice) < 2 {
			continue
		}

		sort.Slice(slice, func(i, j int) bool {
			return slice[i].center.X < slice[j].center.X
		})

		q := newQuestion(m, projRow, prev.Section, slice, optionLimit(cfg))
		questions[m] = q
		recovered = append(recovered, m)
		for _, o := range q.Options {
			c := o.Box.Center()
			used[centerKey{x: int(c.X), y: int(c.Y)}] = true
		}
	}

	return recovered
}

type centerKey struct{ x, y int }

// usedCenters indexes the bubble centers already claimed by mapped questions
// so recovery cannot hand the same bubble to two questions.
func usedCenters(questions map[int]Question) map[centerKey]bool {
	used := make(map[centerKey]bool)
	for _, q := range questions {
		for _, o := range q.Options {
			c := o.Box.Center()
			used[centerKey{x: int(c.X), y: int(c.Y)}] = true
		}
	}
	return used
}

// latestInSectionBefore finds the highest-numbered question below num in the
// given section.
func latestInSectionBefore(questions map[int]Question, section, num int) (Question, bool) {
	for n := num - 1; n >= 1; n-- {
		q, ok := questions[n]
		if ok && q.Section == section {
			return q, true
		}
	}
	return Question{}, false
}

// projectRowY estimates the y coordinate for a row index, extrapolating past
// the last clustered row by the mean row pitch. Returns -1 when there is no
// geometry to extrapolate from.
func projectRowY(rows []cluster.Row, rowIdx int, pitch float64) float64 {
	if rowIdx < 0 {
		return -1
	}
	if rowIdx < len(rows) {
		return rows[rowIdx].MeanY
	}
	if len(rows) == 0 || pitch <= 0 {
		return -1
	}
	last := len(rows) - 1
	return rows[last].MeanY + pitch*float64(rowIdx-last)
}

// meanRowPitch is the average y distance between consecutive rows.
func meanRowPitch(rows []cluster.Row) float64 {
	if len(rows) < 2 {
		return 0
	}
	var sum float64
	for i := 1; i < len(rows); i++ {
		sum += rows[i].MeanY - rows[i-1].MeanY
	}
	return sum / float64(len(rows)-1)
}
