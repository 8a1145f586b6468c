// Package mapping assigns question numbers and per-option pixel coordinates
// from a detected layout, extrapolating questions the clustering missed.
package mapping

import (
	"errors"
	"fmt"

	"omr-grader/internal/cluster"
	"omr-grader/internal/config"
	"omr-grader/internal/layout"
	"omr-grader/pkg/geometry"
)

// ErrMappingFailed means too few questions could be located, even after
// recovery. Fatal for this sheet only.
var ErrMappingFailed = errors.New("question mapping failed")

// maxOptions caps the option set at A through E. Slices with more members
// carry noise beyond the fifth bubble and the extras are ignored.
const maxOptions = 5

// Option pairs an option letter with its bubble's pixel box. A question's
// options are ordered by ascending x, matching ascending letters.
type Option struct {
	Letter rune             `json:"letter"`
	Box    geometry.RectInt `json:"box"`
}

// Question locates one question's bubbles on the sheet. Immutable once built.
type Question struct {
	Number  int      `json:"number"`
	Row     int      `json:"row"`
	Section int      `json:"section"`
	Options []Option `json:"options"`
}

// Option returns the box for a letter, if the question has that option.
func (q Question) Option(letter rune) (geometry.RectInt, bool) {
	for _, o := range q.Options {
		if o.Letter == letter {
			return o.Box, true
		}
	}
	return geometry.RectInt{}, false
}

// Letters returns the question's option letters in order.
func (q Question) Letters() []rune {
	letters := make([]rune, len(q.Options))
	for i, o := range q.Options {
		letters[i] = o.Letter
	}
	return letters
}

// Report describes how the mapping went. Partial is a warning, not an error:
// the pipeline proceeds with the questions it has.
type Report struct {
	Expected  int   `json:"expected"`
	Direct    int   `json:"direct"`
	Recovered []int `json:"recovered,omitempty"`
	Partial   bool  `json:"partial"`
}

// Result is the mapped question set plus its report.
type Result struct {
	Questions map[int]Question `json:"questions"`
	Report    Report           `json:"report"`
}

// Map walks the layout row by row within each section, left-to-right across
// sections, assigning strictly increasing question numbers to every row slice
// with at least three bubbles. When the direct pass falls short of expected
// but reaches the configured recovery ratio, missing trailing questions are
// extrapolated from the geometry of their section neighbors.
func Map(l layout.Layout, expected int, cfg config.DetectionConfig) (*Result, error) {
	if expected <= 0 {
		return nil, fmt.Errorf("expected question count %d must be positive", expected)
	}

	pad := sectionPad(l, cfg)
	limit := optionLimit(cfg)
	questions := make(map[int]Question)
	num := 1

	for sIdx, section := range l.Columns.Sections {
		for rIdx, row := range l.Rows {
			slice := sliceRow(row, section, pad)
			if len(slice) < 3 {
				continue
			}
			questions[num] = newQuestion(num, rIdx, sIdx, slice, limit)
			num++
		}
	}

	direct := len(questions)
	report := Report{Expected: expected, Direct: direct}

	if direct < expected {
		if float64(direct) < cfg.RecoveryMinRatio*float64(expected) {
			return nil, fmt.Errorf("%w: mapped %d of %d questions directly",
				ErrMappingFailed, direct, expected)
		}
		report.Recovered = recoverMissing(l, questions, expected, cfg, pad)
	}

	report.Partial = len(questions) < expected
	return &Result{Questions: questions, Report: report}, nil
}

// located is a bubble position retained past the candidate stage. Only the
// center and box survive into a Question.
type located struct {
	center geometry.Point2D
	box    geometry.RectInt
}

// sliceRow returns the row members whose centers fall inside the section's
// x-range, padded so per-row jitter does not push an edge bubble into the
// neighboring section's gap. Members arrive sorted by x and stay sorted.
func sliceRow(row cluster.Row, section cluster.Section, pad float64) []located {
	var slice []located
	for _, m := range row.Members {
		if m.Center.X >= section.StartX-pad && m.Center.X <= section.EndX+pad {
			slice = append(slice, located{center: m.Center, box: m.Box})
		}
	}
	return slice
}

// sectionPad is half the mean column spacing, falling back to the analysis
// radius when the sheet has a single column of spacing data.
func sectionPad(l layout.Layout, cfg config.DetectionConfig) float64 {
	if spacing := l.Columns.MeanColumnSpacing(); spacing > 0 {
		return spacing / 2
	}
	return float64(cfg.BubbleRadius) * 2
}

// optionLimit is the configured per-question option count, hard-capped at
// A through E. Out-of-range values fall back to the cap.
func optionLimit(cfg config.DetectionConfig) int {
	n := cfg.ExpectedOptionsPerQuestion
	if n < 2 || n > maxOptions {
		return maxOptions
	}
	return n
}

func newQuestion(num, row, section int, slice []located, limit int) Question {
	n := len(slice)
	if n > limit {
		n = limit
	}
	options := make([]Option, n)
	for i := 0; i < n; i++ {
		options[i] = Option{Letter: rune('A' + i), Box: slice[i].box}
	}
	return Question{Number: num, Row: row, Section: section, Options: options}
}
