// Package pipeline wires the detection stages into the per-sheet grading
// flow. Every stage is a pure function over the image and geometry; the only
// intra-sheet parallelism is the per-question intensity analysis.
package pipeline

import (
	"context"
	"runtime"
	"sort"

	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"

	"omr-grader/internal/bubble"
	"omr-grader/internal/cluster"
	"omr-grader/internal/config"
	"omr-grader/internal/consensus"
	"omr-grader/internal/intensity"
	"omr-grader/internal/layout"
	"omr-grader/internal/mapping"
	"omr-grader/internal/sheetimage"
)

// SheetResult is the terminal output for one sheet.
type SheetResult struct {
	Path    string             `json:"path,omitempty"`
	Variant string             `json:"variant,omitempty"`
	Report  mapping.Report     `json:"report"`
	Answers []consensus.Answer `json:"answers"`
}

// ExtractedAnswers returns each question's winning option letter in question
// order, empty string for BLANK.
func (r *SheetResult) ExtractedAnswers() []string {
	letters := make([]string, len(r.Answers))
	for i, a := range r.Answers {
		letters[i] = a.Option
	}
	return letters
}

// DetectLayout runs extraction and clustering on a sheet and builds its
// layout model.
func DetectLayout(sheet *sheetimage.Sheet, cfg config.DetectionConfig) (layout.Layout, error) {
	cands, err := bubble.ExtractCandidates(sheet.Gray, cfg)
	if err != nil {
		return layout.Layout{}, err
	}
	rows := cluster.GroupRows(cands, cfg)
	return layout.Build(rows, cands, cfg)
}

// MapCoordinates assigns question numbers and option coordinates from a
// layout.
func MapCoordinates(l layout.Layout, expected int, cfg config.DetectionConfig) (*mapping.Result, error) {
	return mapping.Map(l, expected, cfg)
}

// ResolveAnswers analyzes every question's bubbles and resolves answers.
// Questions are independent and read the gray mat concurrently on a bounded
// worker pool; results gather by question number, so output order is
// deterministic and repeated calls return identical results.
func ResolveAnswers(ctx context.Context, gray gocv.Mat, questions map[int]mapping.Question, cfg config.DetectionConfig) ([]consensus.Answer, error) {
	nums := make([]int, 0, len(questions))
	for num := range questions {
		nums = append(nums, num)
	}
	sort.Ints(nums)

	methods := intensity.DefaultMethods()
	answers := make([]consensus.Answer, len(nums))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount(cfg))

	for i, num := range nums {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			q := questions[num]
			perOption := make(map[string][]intensity.Result, len(q.Options))
			for _, opt := range q.Options {
				region := intensity.ExtractRegion(gray, opt.Box.Center(), cfg.BubbleRadius)
				results := make([]intensity.Result, len(methods))
				for j, m := range methods {
					results[j] = m.Score(region)
				}
				region.Close()
				perOption[string(opt.Letter)] = results
			}
			answers[i] = consensus.Resolve(num, q.Section, perOption, cfg)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return answers, nil
}

// GradeSheet runs the full pipeline on one sheet.
func GradeSheet(ctx context.Context, sheet *sheetimage.Sheet, expected int, cfg config.DetectionConfig) (*SheetResult, error) {
	l, err := DetectLayout(sheet, cfg)
	if err != nil {
		return nil, err
	}

	mapped, err := MapCoordinates(l, expected, cfg)
	if err != nil {
		return nil, err
	}

	answers, err := ResolveAnswers(ctx, sheet.Gray, mapped.Questions, cfg)
	if err != nil {
		return nil, err
	}

	return &SheetResult{
		Path:    sheet.Path,
		Variant: l.Variant.String(),
		Report:  mapped.Report,
		Answers: answers,
	}, nil
}

// GradeSheetWithTemplate skips layout detection and grades against a fixed
// template's coordinates. The fallback for sheets where detection fails but
// the exam's printed layout is registered.
func GradeSheetWithTemplate(ctx context.Context, sheet *sheetimage.Sheet, tmpl *mapping.FixedTemplate, cfg config.DetectionConfig) (*SheetResult, error) {
	answers, err := ResolveAnswers(ctx, sheet.Gray, tmpl.Questions, cfg)
	if err != nil {
		return nil, err
	}
	return &SheetResult{
		Path:    sheet.Path,
		Variant: "template:" + tmpl.Name,
		Report:  mapping.Report{Expected: len(tmpl.Questions), Direct: len(tmpl.Questions)},
		Answers: answers,
	}, nil
}

func workerCount(cfg config.DetectionConfig) int {
	if cfg.Workers > 0 {
		return cfg.Workers
	}
	return runtime.NumCPU()
}
